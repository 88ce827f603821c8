package registry

import (
	"errors"
	"fmt"

	"buzzserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Registry は接続IDと現在それに紐づくプレイヤーの対応を管理します。
// 実体はPlayerレコードのconnection_id列で、ここを経由してのみ参照・変更します。
type Registry struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{db: db, logger: logger}
}

// Bind は既存プレイヤーを新しい接続に付け替えます（再接続時の上書き）。
func (r *Registry) Bind(connectionID string, playerID uint) error {
	result := r.db.Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("connection_id", connectionID)
	if result.Error != nil {
		return fmt.Errorf("connection bind failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("connection bind failed: player %d not found", playerID)
	}
	return nil
}

// LookupPlayerByConnection は接続に紐づくプレイヤーを返します。
// 紐づくプレイヤーがいない場合は(nil, nil)。これは古い接続や未参加接続からの
// イベントを識別するための正常系であり、エラーではありません。
func (r *Registry) LookupPlayerByConnection(connectionID string) (*models.Player, error) {
	var player models.Player
	err := r.db.Where("connection_id = ?", connectionID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// Unbind は接続に紐づくプレイヤーレコードを削除します。
// 対応するプレイヤーがいない場合は何もしません。
// connection_idにはユニークインデックスがあるため、同じ接続が後で
// 参加し直せるよう論理削除ではなく物理削除します。
func (r *Registry) Unbind(connectionID string) error {
	return r.db.Unscoped().Where("connection_id = ?", connectionID).Delete(&models.Player{}).Error
}
