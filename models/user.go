package models

import (
	"gorm.io/gorm"
)

// User モデルの定義。登録済みアカウントを表します。
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"` // bcryptハッシュ
}
