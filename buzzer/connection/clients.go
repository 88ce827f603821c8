package connection

import (
	"sync"

	"buzzserver/models"
)

// ClientList は稼働中のWebsocket接続の一覧です。接続IDをキーに保持し、
// 全ての読み書きをミューテックスで保護します。イベント処理は接続ごとの
// ゴルーチンで並行に走るため、素のmap共有は使いません。
type ClientList struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
}

func NewClientList() *ClientList {
	return &ClientList{clients: make(map[string]*models.Client)}
}

// Add はクライアントを一覧に登録します。
func (l *ClientList) Add(client *models.Client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[client.ConnectionID] = client
}

// Remove は接続IDで一覧から取り除きます。
func (l *ClientList) Remove(connectionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, connectionID)
}

// SetRoom は登録済みクライアントの所属ルームを更新します。RoomIDは
// InRoomが他の接続のゴルーチンから読むため、登録後の更新は必ずここを通します。
func (l *ClientList) SetRoom(connectionID string, roomID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if client, ok := l.clients[connectionID]; ok {
		client.RoomID = roomID
	}
}

// Get は接続IDでクライアントを返します。存在しない場合はnil。
func (l *ClientList) Get(connectionID string) *models.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clients[connectionID]
}

// InRoom は指定ルームに属するクライアントのスナップショットを返します。
// 返したスライスへの送信中に一覧が変化しても安全なようコピーを返します。
func (l *ClientList) InRoom(roomID uint) []*models.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var members []*models.Client
	for _, client := range l.clients {
		if client.RoomID == roomID {
			members = append(members, client)
		}
	}
	return members
}
