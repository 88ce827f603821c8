package broadcast

import (
	"encoding/json"

	"buzzserver/buzzer/connection"
	"buzzserver/models"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

// Instruction は1件のルーム配信指示です。コーディネーターが返し、
// トランスポート層が配送します。
type Instruction struct {
	RoomID  uint
	Payload map[string]interface{}
}

// ToRoom は配信指示を組み立てるヘルパーです。
func ToRoom(roomID uint, payload map[string]interface{}) Instruction {
	return Instruction{RoomID: roomID, Payload: payload}
}

// Send は単一クライアントへJSONメッセージを送信します。
func Send(client *models.Client, payload map[string]interface{}, logger *zap.Logger) {
	if client == nil || client.Conn == nil {
		return
	}
	messageJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal payload", zap.Error(err))
		return
	}
	if err := client.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
		logger.Error("Failed to send message",
			zap.String("to", client.ConnectionID),
			zap.Error(err),
		)
	}
}

// Deliver は配信指示を対象ルームの全クライアントへ送信します。
// 個々の送信失敗はその接続に閉じた問題としてログに残すのみで、配送は続行します。
func Deliver(instructions []Instruction, clients *connection.ClientList, logger *zap.Logger) {
	for _, instruction := range instructions {
		messageJSON, err := json.Marshal(instruction.Payload)
		if err != nil {
			logger.Error("Failed to marshal broadcast payload", zap.Error(err))
			continue
		}
		for _, client := range clients.InRoom(instruction.RoomID) {
			if err := client.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
				logger.Error("Failed to broadcast to client",
					zap.String("to", client.ConnectionID),
					zap.Uint("roomID", instruction.RoomID),
					zap.Error(err),
				)
			}
		}
	}
}
