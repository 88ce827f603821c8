package screens

import (
	"net/http"

	"buzzserver/buzzer/directory"
	"buzzserver/middlewares"

	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

// RoomList は全ルームを参加人数つきで作成日時の降順に返します。
func RoomList(c *gin.Context, rooms *directory.Directory, logger *zap.Logger) {
	summaries, err := rooms.ListAll()
	if err != nil {
		logger.Error("Failed to list rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ルーム一覧の取得に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"rooms":  summariesToJSON(summaries),
	})
}

func summariesToJSON(summaries []directory.RoomSummary) []map[string]interface{} {
	var roomsData []map[string]interface{}
	for _, summary := range summaries {
		roomsData = append(roomsData, map[string]interface{}{
			"roomId":      summary.Room.ID,
			"roomCode":    summary.Room.Code,
			"isActive":    summary.Room.IsActive,
			"buzzLocked":  summary.Room.BuzzLocked,
			"playerCount": summary.PlayerCount,
			"createdAt":   summary.Room.CreatedAt,
		})
	}
	return roomsData
}

// MyRooms は認証済みユーザーが主催しているルームの一覧を返します。
func MyRooms(c *gin.Context, rooms *directory.Directory, logger *zap.Logger) {
	userID, err := middlewares.GetUserIDFromToken(c, logger)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "認証に失敗しました"})
		return
	}

	summaries, err := rooms.ListByHostUser(userID)
	if err != nil {
		logger.Error("Failed to list hosted rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ルーム一覧の取得に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"rooms":  summariesToJSON(summaries),
	})
}

// RoomInfo は参加コードで1ルームの詳細（プレイヤー一覧を含む）を返します。
func RoomInfo(c *gin.Context, rooms *directory.Directory, logger *zap.Logger) {
	code := c.Param("code")

	room, err := rooms.FindByCodeWithPlayers(code)
	if err != nil {
		logger.Error("Failed to fetch room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ルーム情報の取得に失敗しました"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ルームが見つかりません"})
		return
	}

	var playersData []map[string]interface{}
	for _, player := range room.Players {
		playersData = append(playersData, map[string]interface{}{
			"playerId": player.ID,
			"name":     player.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"roomId":           room.ID,
		"roomCode":         room.Code,
		"isActive":         room.IsActive,
		"buzzLocked":       room.BuzzLocked,
		"buzzedPlayerName": room.BuzzedPlayerName,
		"createdAt":        room.CreatedAt,
		"players":          playersData,
	})
}
