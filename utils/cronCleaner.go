package utils

import (
	"time"

	"buzzserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 放置されたルームの回収。ホスト接続もプレイヤーもいないまま残った
// ルームはこのプロセスでは明示的に破棄されないため、日次で掃除する
func CronCleaner(db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// 24時間更新のないルームのうち、プレイヤーが残っていないものを削除（毎日3時）
	c.AddFunc("0 3 * * *", func() {
		logger.Info("放置ルームの削除処理を開始")

		staleRoomIDs := []uint{}
		db.Model(&models.Room{}).
			Where("updated_at <= ?", time.Now().Add(-24*time.Hour)).
			Pluck("id", &staleRoomIDs)

		deleted := 0
		for _, roomID := range staleRoomIDs {
			var count int64
			db.Model(&models.Player{}).Where("room_id = ?", roomID).Count(&count)
			if count > 0 {
				continue // まだ誰かいるルームは残す
			}
			if err := db.Unscoped().Delete(&models.Room{}, roomID).Error; err != nil {
				logger.Error("放置ルームの削除に失敗しました", zap.Uint("roomID", roomID), zap.Error(err))
				continue
			}
			deleted++
		}
		logger.Info("放置ルームの削除完了", zap.Int("rooms_deleted", deleted))
	})

	// ルームが消えた後に残ったプレイヤーレコードの掃除（毎日4時）
	c.AddFunc("0 4 * * *", func() {
		logger.Info("孤立プレイヤーの削除処理を開始")
		result := db.Unscoped().Where("room_id NOT IN (?)",
			db.Model(&models.Room{}).Select("id"),
		).Delete(&models.Player{})
		if result.Error != nil {
			logger.Error("孤立プレイヤーの削除に失敗しました", zap.Error(result.Error))
		} else {
			logger.Info("孤立プレイヤーの削除完了", zap.Int("players_deleted", int(result.RowsAffected)))
		}
	})

	c.Start()
}
