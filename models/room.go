package models

import (
	"gorm.io/gorm"
)

// Room モデルの定義。1つのクイズセッション（ルーム）を表します。
type Room struct {
	gorm.Model
	Code             string   `gorm:"size:6;uniqueIndex;not null"` // 参加用の6文字コード（A-Z0-9）
	HostConnectionID string   `gorm:"not null"`                    // ホストの現在の接続ID。再接続時に上書きされる
	HostUserID       uint     `gorm:"index"`                       // 認証コラボレータが発行したホストのユーザーID
	IsActive         bool     `gorm:"not null;default:false"`      // ラウンド進行中はtrue
	BuzzLocked       bool     `gorm:"not null;default:false"`      // 早押し成立後はtrue、以降のbuzzを遮断
	BuzzedPlayerName string   `gorm:"default:''"`                  // 現ラウンドの勝者名。未ロック時は空
	Players          []Player `gorm:"foreignKey:RoomID"`
}

// 1ルームに参加できるプレイヤーの上限
const MaxPlayersPerRoom = 16
