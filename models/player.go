package models

import (
	"gorm.io/gorm"
)

// Player モデルの定義。参加成功時に作成され、キックまたは切断で削除されます。
type Player struct {
	gorm.Model
	ConnectionID string `gorm:"uniqueIndex;not null"` // 現在の接続ID。再接続時に上書きされる
	Name         string `gorm:"not null"`             // 表示名。ルーム内での一意性は強制しない
	UserID       uint   `gorm:"index"`                // 認証コラボレータが発行したユーザーID
	RoomID       uint   `gorm:"index;not null"`       // 所属ルーム。生存期間中は不変
}
