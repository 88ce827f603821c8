package buzzer

import (
	"errors"

	"buzzserver/buzzer/arbiter"
	"buzzserver/buzzer/broadcast"
	"buzzserver/buzzer/directory"
	"buzzserver/buzzer/membership"
	"buzzserver/buzzer/registry"
	"buzzserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Coordinator はトランスポート層から受け取ったイベントを各コンポーネントへ
// 振り分け、結果を配信指示として返す窓口です。自身の状態は配線のみです。
type Coordinator struct {
	Rooms   *directory.Directory
	Conns   *registry.Registry
	Members *membership.Manager
	Arbiter *arbiter.Arbiter
	logger  *zap.Logger
}

func NewCoordinator(db *gorm.DB, logger *zap.Logger) *Coordinator {
	rooms := directory.New(db, logger)
	conns := registry.New(db, logger)
	return &Coordinator{
		Rooms:   rooms,
		Conns:   conns,
		Members: membership.New(db, rooms, conns, logger),
		Arbiter: arbiter.New(rooms, conns, logger),
		logger:  logger,
	}
}

// Result は1イベントの処理結果です。配送自体はトランスポート層が行います。
type Result struct {
	Reply       map[string]interface{}  // 発信元接続への応答。nilなら応答なし
	Broadcasts  []broadcast.Instruction // ルーム配信
	KickTarget  string                  // 強制切断すべき接続ID
	KickMessage map[string]interface{}  // キック対象への直接メッセージ
	RoomID      uint                    // 成功したcreate/joinで確定したルーム
	PlayerID    uint                    // 成功したjoinで作成されたプレイヤー
}

// エラーは発信元接続だけに返し、ルームの他の接続には影響させない
func errorResult(message string) Result {
	return Result{Reply: map[string]interface{}{
		"type":    "error",
		"message": message,
	}}
}

// CreateRoom はルーム作成イベントを処理します。作成した接続がホストになります。
func (co *Coordinator) CreateRoom(client *models.Client) Result {
	room, err := co.Members.CreateRoom(client.ConnectionID, client.UserID)
	if err != nil {
		co.logger.Error("ルーム作成に失敗しました", zap.Error(err))
		return errorResult("ルームを作成できませんでした")
	}
	return Result{
		Reply: map[string]interface{}{
			"type":     "roomCreated",
			"roomId":   room.ID,
			"roomCode": room.Code,
		},
		RoomID: room.ID,
	}
}

// JoinRoom は参加イベントを処理します。
func (co *Coordinator) JoinRoom(client *models.Client, code, displayName string) Result {
	room, player, err := co.Members.JoinRoom(client.ConnectionID, code, client.UserID, displayName)
	switch {
	case errors.Is(err, membership.ErrRoomNotFound):
		return errorResult("ルームが見つかりません")
	case errors.Is(err, membership.ErrRoomFull):
		return errorResult("ルームは満員です")
	case err != nil:
		co.logger.Error("ルーム参加に失敗しました", zap.Error(err))
		return errorResult("ルームに参加できませんでした")
	}
	return Result{
		Reply: map[string]interface{}{
			"type":     "joined",
			"playerId": player.ID,
			"name":     player.Name,
		},
		Broadcasts: []broadcast.Instruction{
			broadcast.ToRoom(room.ID, map[string]interface{}{
				"type": "playerJoined",
				"name": player.Name,
			}),
		},
		RoomID:   room.ID,
		PlayerID: player.ID,
	}
}

// Buzz は早押しイベントを処理します。成立した場合のみ配信し、
// 不成立（未参加・非アクティブ・ロック済み・CAS敗北）は黙って落とします。
func (co *Coordinator) Buzz(client *models.Client) Result {
	result, err := co.Arbiter.HandleBuzz(client.ConnectionID)
	if err != nil {
		// 敗者へも通知しない方針のため、内部エラーもログのみ
		co.logger.Error("buzz処理に失敗しました", zap.Error(err))
		return Result{}
	}
	if result == nil {
		return Result{}
	}
	return Result{
		Broadcasts: []broadcast.Instruction{
			broadcast.ToRoom(result.RoomID, map[string]interface{}{
				"type":   "playerBuzzed",
				"winner": result.Winner,
			}),
			broadcast.ToRoom(result.RoomID, map[string]interface{}{
				"type":   "hostActionRequired",
				"winner": result.Winner,
			}),
		},
	}
}

// ResetRound はホストによるラウンド再開イベントを処理します。
func (co *Coordinator) ResetRound(client *models.Client, roomID uint) Result {
	room, err := co.Arbiter.ResetRound(client.ConnectionID, roomID)
	switch {
	case errors.Is(err, arbiter.ErrUnauthorized):
		return errorResult("ホストのみラウンドをリセットできます")
	case errors.Is(err, arbiter.ErrRoomNotFound):
		return errorResult("ルームが見つかりません")
	case err != nil:
		co.logger.Error("ラウンドリセットに失敗しました", zap.Error(err))
		return errorResult("ラウンドをリセットできませんでした")
	}
	return Result{
		Broadcasts: []broadcast.Instruction{
			broadcast.ToRoom(room.ID, map[string]interface{}{
				"type": "roundReset",
			}),
		},
	}
}

// KickPlayer はホストによる強制退出イベントを処理します。対象の接続IDを
// 返し、トランスポート層がその接続を切断します。
func (co *Coordinator) KickPlayer(client *models.Client, playerID uint) Result {
	roomID, removedConnectionID, err := co.Members.KickPlayer(client.ConnectionID, playerID)
	switch {
	case errors.Is(err, membership.ErrUnauthorized),
		errors.Is(err, membership.ErrPlayerNotFound),
		errors.Is(err, membership.ErrRoomNotFound):
		// 権限なし・対象なしはまとめて発信元にのみ通知
		return errorResult("このプレイヤーを退出させられません")
	case err != nil:
		co.logger.Error("キック処理に失敗しました", zap.Error(err))
		return errorResult("このプレイヤーを退出させられません")
	}
	return Result{
		Broadcasts: []broadcast.Instruction{
			broadcast.ToRoom(roomID, map[string]interface{}{
				"type": "playerListUpdated",
				"kind": "remove",
			}),
		},
		KickTarget: removedConnectionID,
		KickMessage: map[string]interface{}{
			"type":    "kicked",
			"message": "ルームから退出させられました",
		},
	}
}

// Disconnect は接続断を処理します。プレイヤーが紐づいていた場合のみ
// 退出をルームへ通知します。
func (co *Coordinator) Disconnect(client *models.Client) Result {
	departure, err := co.Members.HandleDisconnect(client.ConnectionID)
	if err != nil {
		co.logger.Error("切断処理に失敗しました", zap.Error(err))
		return Result{}
	}
	if departure == nil {
		return Result{}
	}
	return Result{
		Broadcasts: []broadcast.Instruction{
			broadcast.ToRoom(departure.RoomID, map[string]interface{}{
				"type":    "playerListUpdated",
				"message": departure.Name + "さんが退出しました",
			}),
		},
	}
}
