package registry

import (
	"testing"

	"buzzserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRegistry(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.Player{}))
	return New(db, zap.NewNop()), db
}

func TestLookupPlayerByConnection(t *testing.T) {
	r, db := newTestRegistry(t)

	player := &models.Player{ConnectionID: "conn-a", Name: "Alice", RoomID: 1}
	require.NoError(t, db.Create(player).Error)

	found, err := r.LookupPlayerByConnection("conn-a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, player.ID, found.ID)
	assert.Equal(t, "Alice", found.Name)
}

func TestLookupUnknownConnectionIsNil(t *testing.T) {
	r, _ := newTestRegistry(t)

	// 紐づくプレイヤーがいない接続は正常系としてnilを返す
	found, err := r.LookupPlayerByConnection("conn-unknown")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestBindOverwritesConnection(t *testing.T) {
	r, db := newTestRegistry(t)

	player := &models.Player{ConnectionID: "conn-old", Name: "Alice", RoomID: 1}
	require.NoError(t, db.Create(player).Error)

	// 再接続で新しい接続IDに付け替える
	require.NoError(t, r.Bind("conn-new", player.ID))

	found, err := r.LookupPlayerByConnection("conn-new")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, player.ID, found.ID)

	stale, err := r.LookupPlayerByConnection("conn-old")
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestBindUnknownPlayer(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.Error(t, r.Bind("conn-x", 999))
}

func TestUnbind(t *testing.T) {
	r, db := newTestRegistry(t)

	player := &models.Player{ConnectionID: "conn-a", Name: "Alice", RoomID: 1}
	require.NoError(t, db.Create(player).Error)

	require.NoError(t, r.Unbind("conn-a"))

	var count int64
	require.NoError(t, db.Model(&models.Player{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	// 既に存在しない接続のUnbindは何も起きない
	require.NoError(t, r.Unbind("conn-a"))
}
