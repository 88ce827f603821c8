package database

import (
	"context"
	"encoding/json"
	"time"

	"buzzserver/models"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sessionTTL = 24 * time.Hour

// セッション上の役割
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// SessionInfo は再接続時に接続の素性を復元するための情報です。
type SessionInfo struct {
	UserID   uint   `json:"userID"`
	RoomID   uint   `json:"roomID"`
	PlayerID uint   `json:"playerID,omitempty"` // RolePlayerの場合のみ
	Role     string `json:"role"`
}

// GenerateAndStoreSessionID は新しいセッションIDを発行してRedisに保存し、
// クライアントへ送り返します。
func GenerateAndStoreSessionID(ctx context.Context, client *models.Client, info SessionInfo, rdb *redis.Client, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	sessionInfoJSON, err := json.Marshal(info)
	if err != nil {
		logger.Error("Error encoding session info", zap.Error(err))
		return err
	}

	if err := rdb.Set(ctx, "session:"+sessionID, sessionInfoJSON, sessionTTL).Err(); err != nil {
		logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}

	return sendSessionIDToClient(client, sessionID, logger)
}

// RestoreSession は提示されたセッションIDを検証し、セッション情報を返します。
// 復元できた場合、旧セッションはその場で破棄します（使い捨て）。
func RestoreSession(ctx context.Context, sessionID string, rdb *redis.Client, logger *zap.Logger) (*SessionInfo, error) {
	sessionInfoJSON, err := rdb.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		// 無効または期限切れ
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(sessionInfoJSON), &info); err != nil {
		logger.Error("Failed to decode session info", zap.Error(err))
		return nil, err
	}

	rdb.Del(ctx, "session:"+sessionID)
	return &info, nil
}

func sendSessionIDToClient(client *models.Client, sessionID string, logger *zap.Logger) error {
	response := map[string]interface{}{
		"type":      "session",
		"sessionID": sessionID,
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		logger.Error("Error marshalling session ID response", zap.Error(err))
		return err
	}

	if client.Conn == nil {
		logger.Warn("WebSocket connection is not established, cannot send session ID")
		return nil
	}
	if err := client.WriteMessage(websocket.TextMessage, responseJSON); err != nil {
		logger.Error("Error sending session ID to client", zap.Error(err))
		return err
	}
	return nil
}
