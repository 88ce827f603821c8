package membership

import (
	"errors"
	"fmt"

	"buzzserver/buzzer/directory"
	"buzzserver/buzzer/registry"
	"buzzserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrUnauthorized   = errors.New("host authority required")
	ErrPlayerNotFound = errors.New("player not found")
)

// Manager はルームの作成・入室・退出とホスト権限の強制を担当します。
type Manager struct {
	db     *gorm.DB
	rooms  *directory.Directory
	conns  *registry.Registry
	logger *zap.Logger
}

func New(db *gorm.DB, rooms *directory.Directory, conns *registry.Registry, logger *zap.Logger) *Manager {
	return &Manager{db: db, rooms: rooms, conns: conns, logger: logger}
}

// CreateRoom はルームを作成し、作成した接続をホストとして登録します。
// ホスト自身はプレイヤーとしては登録されません（buzzには参加しない）。
func (m *Manager) CreateRoom(connectionID string, hostUserID uint) (*models.Room, error) {
	room, err := m.rooms.CreateRoom(connectionID, hostUserID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("ルームを作成しました",
		zap.Uint("roomID", room.ID),
		zap.String("code", room.Code),
	)
	return room, nil
}

// Departure は切断したプレイヤーの退出通知に必要な情報です。
type Departure struct {
	RoomID uint
	Name   string
}

// JoinRoom は参加コードでルームを解決し、プレイヤーを作成します。
// 定員の確認と挿入はアトミックではなく、同時参加で一時的に16人を
// 超え得ますが、ソフトリミットとして許容しています。
func (m *Manager) JoinRoom(connectionID, code string, userID uint, displayName string) (*models.Room, *models.Player, error) {
	room, err := m.rooms.FindByCode(code)
	if err != nil {
		return nil, nil, fmt.Errorf("room lookup failed: %w", err)
	}
	if room == nil {
		return nil, nil, ErrRoomNotFound
	}

	var count int64
	if err := m.db.Model(&models.Player{}).Where("room_id = ?", room.ID).Count(&count).Error; err != nil {
		return nil, nil, fmt.Errorf("player count failed: %w", err)
	}
	if count >= models.MaxPlayersPerRoom {
		return nil, nil, ErrRoomFull
	}

	player := &models.Player{
		ConnectionID: connectionID,
		Name:         displayName,
		UserID:       userID,
		RoomID:       room.ID,
	}
	if err := m.db.Create(player).Error; err != nil {
		return nil, nil, fmt.Errorf("player create failed: %w", err)
	}
	m.logger.Info("プレイヤーが参加しました",
		zap.Uint("roomID", room.ID),
		zap.Uint("playerID", player.ID),
		zap.String("name", player.Name),
	)
	return room, player, nil
}

// KickPlayer はホストによるプレイヤーの強制退出です。対象プレイヤーを削除し、
// 呼び出し元がそのトランスポート接続を切断できるよう接続IDを返します。
func (m *Manager) KickPlayer(requestingConnectionID string, playerID uint) (uint, string, error) {
	var player models.Player
	err := m.db.First(&player, playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", ErrPlayerNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("player lookup failed: %w", err)
	}

	room, err := m.rooms.FindByID(player.RoomID)
	if err != nil {
		return 0, "", fmt.Errorf("room lookup failed: %w", err)
	}
	if room == nil {
		return 0, "", ErrRoomNotFound
	}
	if room.HostConnectionID != requestingConnectionID {
		return 0, "", ErrUnauthorized
	}

	// connection_idのユニークインデックスを塞がないよう物理削除する
	if err := m.db.Unscoped().Delete(&models.Player{}, player.ID).Error; err != nil {
		return 0, "", fmt.Errorf("player delete failed: %w", err)
	}
	m.logger.Info("プレイヤーをキックしました",
		zap.Uint("roomID", room.ID),
		zap.Uint("playerID", player.ID),
	)
	return room.ID, player.ConnectionID, nil
}

// HandleDisconnect は切断された接続に紐づくプレイヤーを削除します。
// 紐づくプレイヤーがいない場合（ホスト専用接続や既に削除済みなど）は
// 正常なno-opとして(nil, nil)を返します。
func (m *Manager) HandleDisconnect(connectionID string) (*Departure, error) {
	player, err := m.conns.LookupPlayerByConnection(connectionID)
	if err != nil {
		return nil, fmt.Errorf("connection lookup failed: %w", err)
	}
	if player == nil {
		return nil, nil
	}

	if err := m.conns.Unbind(connectionID); err != nil {
		return nil, fmt.Errorf("player remove failed: %w", err)
	}
	m.logger.Info("プレイヤーが退出しました",
		zap.Uint("roomID", player.RoomID),
		zap.String("name", player.Name),
	)
	return &Departure{RoomID: player.RoomID, Name: player.Name}, nil
}
