package models

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義
type Client struct {
	Conn         *websocket.Conn
	ConnectionID string // 接続ごとに発行されるUUID
	UserID       uint   // JWTから抽出したユーザーID
	RoomID       uint   // 参加またはホスト中のルーム。未参加は0。一覧登録後の更新はClientList経由で行う

	writeMu sync.Mutex // Connへの書き込みを直列化
}

// WriteMessage は接続への書き込みを直列化して行います。Ping送信とルーム配信は
// 別ゴルーチンから走るため、gorilla/websocketが禁じる並行書き込みをここで防ぎます。
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
