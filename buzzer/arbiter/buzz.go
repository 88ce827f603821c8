package arbiter

import (
	"errors"
	"fmt"

	"buzzserver/buzzer/directory"
	"buzzserver/buzzer/registry"
	"buzzserver/models"

	"go.uber.org/zap"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUnauthorized = errors.New("host authority required")
)

// Arbiter はラウンドごとに勝者を必ず1人に定める早押し調停を担当します。
type Arbiter struct {
	rooms  *directory.Directory
	conns  *registry.Registry
	logger *zap.Logger
}

func New(rooms *directory.Directory, conns *registry.Registry, logger *zap.Logger) *Arbiter {
	return &Arbiter{rooms: rooms, conns: conns, logger: logger}
}

// BuzzResult は成立したbuzzの勝者情報です。
type BuzzResult struct {
	RoomID uint
	Winner string
}

// HandleBuzz は早押しイベントを調停します。成立しなかった場合は(nil, nil)を
// 返します。負けたbuzzは敗者側には一切通知されない正常系です。
//
// 事前の読み取りでactive/unlockedを確認した後、遷移そのものは
// UpdateBuzzStateの条件付き更新で確定します。読み取りと更新の間に別のbuzzが
// 割り込んでも、CASに敗れた側はロック済みと同じ扱いで黙って落とすだけです。
// 素朴なread-then-writeでは同時の2件が両方勝ててしまうため、ここは必ず
// CAS経由で遷移させます。
func (a *Arbiter) HandleBuzz(connectionID string) (*BuzzResult, error) {
	player, err := a.conns.LookupPlayerByConnection(connectionID)
	if err != nil {
		return nil, fmt.Errorf("connection lookup failed: %w", err)
	}
	if player == nil {
		// 未参加・古い接続からのbuzz
		return nil, nil
	}

	room, err := a.rooms.FindByID(player.RoomID)
	if err != nil {
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}
	if room == nil || !room.IsActive || room.BuzzLocked {
		return nil, nil
	}

	_, err = a.rooms.UpdateBuzzState(room.ID, false, directory.BuzzState{
		BuzzLocked:       true,
		BuzzedPlayerName: player.Name,
	})
	if errors.Is(err, directory.ErrBuzzConflict) {
		// 別のbuzzが一瞬早かった。再試行も通知もしない
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buzz state update failed: %w", err)
	}

	a.logger.Info("buzzが成立しました",
		zap.Uint("roomID", room.ID),
		zap.String("winner", player.Name),
	)
	return &BuzzResult{RoomID: room.ID, Winner: player.Name}, nil
}

// ResetRound はホストによるラウンドの再開です。ロックと勝者名をクリアし、
// ルームをアクティブにします。ホスト以外の要求はErrUnauthorizedで拒否します。
func (a *Arbiter) ResetRound(requestingConnectionID string, roomID uint) (*models.Room, error) {
	room, err := a.rooms.FindByID(roomID)
	if err != nil {
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.HostConnectionID != requestingConnectionID {
		return nil, ErrUnauthorized
	}

	updated, err := a.rooms.UpdateRoundControl(roomID, directory.RoundControl{
		IsActive:         true,
		BuzzLocked:       false,
		BuzzedPlayerName: "",
	})
	if err != nil {
		return nil, fmt.Errorf("round control update failed: %w", err)
	}
	a.logger.Info("ラウンドをリセットしました", zap.Uint("roomID", roomID))
	return updated, nil
}
