package directory

import (
	"strings"
	"sync"
	"testing"
	"time"

	"buzzserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// インメモリDBは接続ごとに別になるため1本に固定する
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.Player{}))
	return db
}

func newTestDirectory(t *testing.T) (*Directory, *gorm.DB) {
	db := newTestDB(t)
	return New(db, zap.NewNop()), db
}

func TestCreateRoomCodes(t *testing.T) {
	d, _ := newTestDirectory(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := d.CreateRoom("conn-host", 1)
		require.NoError(t, err)

		assert.Len(t, room.Code, codeLength)
		for _, ch := range room.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "code %q contains %q", room.Code, ch)
		}
		assert.False(t, seen[room.Code], "duplicate code %q", room.Code)
		seen[room.Code] = true

		assert.False(t, room.IsActive)
		assert.False(t, room.BuzzLocked)
		assert.Empty(t, room.BuzzedPlayerName)
	}
}

func TestRandomCodeConcurrentDraws(t *testing.T) {
	// 共通の乱数ソースを複数ゴルーチンから同時に引いても安全で、
	// 形式の正しいコードが得られること（go test -race で検出）
	var wg sync.WaitGroup
	codes := make([]string, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = randomCode()
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Len(t, code, codeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch))
		}
	}
}

func TestListByHostUser(t *testing.T) {
	d, _ := newTestDirectory(t)

	mine, err := d.CreateRoom("conn-1", 42)
	require.NoError(t, err)
	_, err = d.CreateRoom("conn-2", 7)
	require.NoError(t, err)

	summaries, err := d.ListByHostUser(42)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, mine.ID, summaries[0].Room.ID)
}

func TestFindNotFoundIsNil(t *testing.T) {
	d, _ := newTestDirectory(t)

	room, err := d.FindByCode("ZZZZZZ")
	require.NoError(t, err)
	assert.Nil(t, room)

	room, err = d.FindByID(12345)
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestFindByCode(t *testing.T) {
	d, _ := newTestDirectory(t)

	created, err := d.CreateRoom("conn-host", 1)
	require.NoError(t, err)

	found, err := d.FindByCode(created.Code)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
}

func TestUpdateBuzzStateCAS(t *testing.T) {
	d, _ := newTestDirectory(t)

	room, err := d.CreateRoom("conn-host", 1)
	require.NoError(t, err)

	// 未ロック→ロックの遷移は成功する
	updated, err := d.UpdateBuzzState(room.ID, false, BuzzState{BuzzLocked: true, BuzzedPlayerName: "Alice"})
	require.NoError(t, err)
	assert.True(t, updated.BuzzLocked)
	assert.Equal(t, "Alice", updated.BuzzedPlayerName)

	// 既にロック済みのため、同じ事前状態を期待する更新は競合で失敗する
	_, err = d.UpdateBuzzState(room.ID, false, BuzzState{BuzzLocked: true, BuzzedPlayerName: "Bob"})
	assert.ErrorIs(t, err, ErrBuzzConflict)

	// 負けた側の名前で上書きされていないこと
	after, err := d.FindByID(room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", after.BuzzedPlayerName)
}

func TestUpdateBuzzStateMissingRoom(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.UpdateBuzzState(999, false, BuzzState{BuzzLocked: true, BuzzedPlayerName: "Alice"})
	assert.ErrorIs(t, err, ErrBuzzConflict)
}

func TestUpdateRoundControl(t *testing.T) {
	d, _ := newTestDirectory(t)

	room, err := d.CreateRoom("conn-host", 1)
	require.NoError(t, err)
	_, err = d.UpdateBuzzState(room.ID, false, BuzzState{BuzzLocked: true, BuzzedPlayerName: "Alice"})
	require.NoError(t, err)

	// リセットは無条件更新でロックと勝者名をクリアする
	updated, err := d.UpdateRoundControl(room.ID, RoundControl{IsActive: true})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.False(t, updated.BuzzLocked)
	assert.Empty(t, updated.BuzzedPlayerName)
}

func TestListAll(t *testing.T) {
	d, db := newTestDirectory(t)

	first, err := d.CreateRoom("conn-1", 1)
	require.NoError(t, err)
	second, err := d.CreateRoom("conn-2", 2)
	require.NoError(t, err)

	// 作成順を確実に区別できるよう作成日時をずらす
	require.NoError(t, db.Model(&models.Room{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Player{
			ConnectionID: "conn-p" + string(rune('a'+i)),
			Name:         "player",
			RoomID:       second.ID,
		}).Error)
	}

	summaries, err := d.ListAll()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// 新しいルームが先
	assert.Equal(t, second.ID, summaries[0].Room.ID)
	assert.EqualValues(t, 3, summaries[0].PlayerCount)
	assert.Equal(t, first.ID, summaries[1].Room.ID)
	assert.EqualValues(t, 0, summaries[1].PlayerCount)
}
