package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var logger *zap.Logger

func init() {
	var err error
	// Zapのロガーを設定
	logger, err = zap.NewProduction()
	if err != nil {
		panic(err)
	}
}

// User モデルの定義
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}

// Room モデルの定義
type Room struct {
	gorm.Model
	Code             string `gorm:"size:6;uniqueIndex;not null"`
	HostConnectionID string `gorm:"not null"`
	HostUserID       uint   `gorm:"index"`
	IsActive         bool   `gorm:"not null;default:false"`
	BuzzLocked       bool   `gorm:"not null;default:false"`
	BuzzedPlayerName string `gorm:"default:''"`
}

// Player モデルの定義
type Player struct {
	gorm.Model
	ConnectionID string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	UserID       uint   `gorm:"index"`
	RoomID       uint   `gorm:"index;not null"`
}

// マイグレーションを実行する関数
func AutoMigrateDB(db *gorm.DB) {
	err := db.AutoMigrate(&User{}, &Room{}, &Player{})
	if err != nil {
		panic("Error migrating tables: " + err.Error())
	} else {
		fmt.Println("User, Room and Player tables created successfully")
	}
}

func main() {
	// 環境変数からデータベースの接続情報を取得
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE")

	dsn := "host=" + host + " user=" + user + " dbname=" + dbname + " password=" + password + " sslmode=" + sslmode
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	AutoMigrateDB(db)
}
