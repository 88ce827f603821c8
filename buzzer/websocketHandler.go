package buzzer

import (
	"context"
	"encoding/json"
	"net/http"

	"buzzserver/buzzer/broadcast"
	"buzzserver/buzzer/connection"
	"buzzserver/buzzer/database"
	"buzzserver/models"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// クライアントから受信するイベント。typeで閉じた集合にディスパッチする
type inboundEvent struct {
	Type        string `json:"type"`
	RoomCode    string `json:"roomCode,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	RoomID      uint   `json:"roomId,omitempty"`
	PlayerID    uint   `json:"playerId,omitempty"`
}

// HandleConnections はWebSocket接続へのアップグレードと接続の初期化を行います。
// トークン検証で認証済みユーザーIDを確定し、接続ごとにUUIDの接続IDを発行します。
func HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request, rdb *redis.Client, logger *zap.Logger, clients *connection.ClientList, coordinator *Coordinator, upgrader websocket.Upgrader) {
	// ユーザーコンテキストの取得
	clientContext, err := connection.FetchClientContext(r, logger)
	if err != nil {
		logger.Error("Error fetching client context", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// WebSocket接続へのアップグレードと確立
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := &models.Client{
		Conn:         conn,
		ConnectionID: uuid.New().String(),
		UserID:       clientContext.UserID,
	}

	// セッションIDの検証と復元。有効なセッションを提示した再接続は
	// 旧接続の紐づけを新しい接続IDで上書きする
	sessionID := r.Header.Get("SessionID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session")
	}
	if sessionID != "" {
		info, err := database.RestoreSession(ctx, sessionID, rdb, logger)
		if err != nil {
			client.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"セッションが無効か期限切れです"}`))
		} else {
			restoreBinding(client, info, coordinator, logger)
			// 新しいセッションIDを発行して送り返す
			database.GenerateAndStoreSessionID(ctx, client, *info, rdb, logger)
		}
	}

	// クライアントリストに新規クライアントを追加
	clients.Add(client)
	logger.Info("New client added",
		zap.String("connectionID", client.ConnectionID),
		zap.Uint("userID", client.UserID),
	)

	// Ping/Pongを管理するゴルーチンを起動
	go connection.MaintainWebSocketConnection(client, logger)

	// クライアントごとのメッセージ読み取りゴルーチンを起動。
	// リクエストのcontextはハンドラーの終了で破棄されるため、接続の寿命に
	// 合わせたcontextを別に使う
	go handleClient(context.Background(), client, clients, coordinator, rdb, logger)
}

// 復元したセッション情報に基づき、ルーム側の接続IDを付け替える。
// ClientListへの登録前に呼ばれるため、RoomIDへの直接代入で問題ない
func restoreBinding(client *models.Client, info *database.SessionInfo, coordinator *Coordinator, logger *zap.Logger) {
	switch info.Role {
	case database.RolePlayer:
		if err := coordinator.Conns.Bind(client.ConnectionID, info.PlayerID); err != nil {
			logger.Error("プレイヤーの再接続に失敗しました", zap.Error(err))
			return
		}
		client.RoomID = info.RoomID
	case database.RoleHost:
		// ホスト権限は接続IDに紐づくため、再接続時にここで付け替えないと
		// ホストが自分のルームを制御できなくなる
		if err := coordinator.Rooms.UpdateHostConnection(info.RoomID, client.ConnectionID); err != nil {
			logger.Error("ホストの再接続に失敗しました", zap.Error(err))
			return
		}
		client.RoomID = info.RoomID
	}
}

// handleClient は1接続のイベントを順に処理します。接続が閉じたら
// 切断イベントとして退出処理を行います。
func handleClient(ctx context.Context, client *models.Client, clients *connection.ClientList, coordinator *Coordinator, rdb *redis.Client, logger *zap.Logger) {
	defer func() {
		client.Conn.Close()
		clients.Remove(client.ConnectionID)
		result := coordinator.Disconnect(client)
		broadcast.Deliver(result.Broadcasts, clients, logger)
		logger.Info("Client removed", zap.String("connectionID", client.ConnectionID))
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var event inboundEvent
		if err := json.Unmarshal(message, &event); err != nil {
			logger.Error("Error decoding message", zap.Error(err))
			continue
		}

		dispatchEvent(ctx, client, event, clients, coordinator, rdb, logger)
	}
}

// dispatchEvent はイベント種別ごとにコーディネーターのメソッドへ振り分け、
// 結果の応答・配信・強制切断を実行します。
func dispatchEvent(ctx context.Context, client *models.Client, event inboundEvent, clients *connection.ClientList, coordinator *Coordinator, rdb *redis.Client, logger *zap.Logger) {
	var result Result

	switch event.Type {
	case "createRoom":
		result = coordinator.CreateRoom(client)
		if result.RoomID != 0 {
			// 一覧登録後のRoomID更新はInRoomの走査と競合するためClientList経由で行う
			clients.SetRoom(client.ConnectionID, result.RoomID)
			database.GenerateAndStoreSessionID(ctx, client, database.SessionInfo{
				UserID: client.UserID,
				RoomID: result.RoomID,
				Role:   database.RoleHost,
			}, rdb, logger)
		}
	case "joinRoom":
		if event.DisplayName == "" {
			result = errorResult("表示名が必要です")
			break
		}
		result = coordinator.JoinRoom(client, event.RoomCode, event.DisplayName)
		if result.PlayerID != 0 {
			clients.SetRoom(client.ConnectionID, result.RoomID)
			database.GenerateAndStoreSessionID(ctx, client, database.SessionInfo{
				UserID:   client.UserID,
				RoomID:   result.RoomID,
				PlayerID: result.PlayerID,
				Role:     database.RolePlayer,
			}, rdb, logger)
		}
	case "buzz":
		result = coordinator.Buzz(client)
	case "resetRound":
		result = coordinator.ResetRound(client, event.RoomID)
	case "kickPlayer":
		result = coordinator.KickPlayer(client, event.PlayerID)
	default:
		logger.Info("Received unknown message type", zap.String("type", event.Type))
		return
	}

	if result.Reply != nil {
		broadcast.Send(client, result.Reply, logger)
	}
	broadcast.Deliver(result.Broadcasts, clients, logger)

	// キック対象の接続へ直接通知してから切断する。レコードは削除済みのため
	// 切断時の退出処理はno-opになる
	if result.KickTarget != "" {
		if target := clients.Get(result.KickTarget); target != nil {
			broadcast.Send(target, result.KickMessage, logger)
			target.Conn.Close()
		}
	}
}
