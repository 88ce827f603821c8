package connection

import (
	"time"

	"buzzserver/models"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

const (
	pingPeriod   = 10 * time.Second // Pingの送信間隔
	pongDeadline = 60 * time.Second // Pongが途絶えたと見なすまでの読み取りデッドライン
)

// MaintainWebSocketConnection はPing/Pongで接続の生存を監視します。
// Pingの送信に失敗したら接続を閉じ、読み取りループ側の切断処理に委ねます。
func MaintainWebSocketConnection(c *models.Client, logger *zap.Logger) {
	c.Conn.SetReadDeadline(time.Now().Add(pongDeadline))

	// Pongハンドラの設定: Pongを受信するたびに読み取りデッドラインを延長
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongDeadline))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
			logger.Info("Ping送信に失敗したため接続を閉じます",
				zap.String("connectionID", c.ConnectionID),
				zap.Error(err),
			)
			c.Conn.Close()
			return
		}
	}
}
