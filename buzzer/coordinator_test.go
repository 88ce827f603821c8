package buzzer

import (
	"sync"
	"testing"

	"buzzserver/buzzer/broadcast"
	"buzzserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.Player{}))
	return NewCoordinator(db, zap.NewNop())
}

// 配信指示の中から指定typeのものだけを数える
func countEvents(instructions []broadcast.Instruction, eventType string) int {
	count := 0
	for _, instruction := range instructions {
		if instruction.Payload["type"] == eventType {
			count++
		}
	}
	return count
}

func TestCreateAndJoinFlow(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}

	created := co.CreateRoom(host)
	require.NotNil(t, created.Reply)
	assert.Equal(t, "roomCreated", created.Reply["type"])
	require.NotZero(t, created.RoomID)
	code := created.Reply["roomCode"].(string)
	require.Len(t, code, 6)

	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}
	joined := co.JoinRoom(alice, code, "Alice")
	require.NotNil(t, joined.Reply)
	assert.Equal(t, "joined", joined.Reply["type"])
	assert.Equal(t, "Alice", joined.Reply["name"])
	assert.NotZero(t, joined.PlayerID)
	assert.Equal(t, created.RoomID, joined.RoomID)

	require.Equal(t, 1, countEvents(joined.Broadcasts, "playerJoined"))
	assert.Equal(t, created.RoomID, joined.Broadcasts[0].RoomID)
}

func TestJoinUnknownRoomCode(t *testing.T) {
	co := newTestCoordinator(t)
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}

	result := co.JoinRoom(alice, "ZZZZZZ", "Alice")
	require.NotNil(t, result.Reply)
	assert.Equal(t, "error", result.Reply["type"])
	assert.Empty(t, result.Broadcasts)
}

// ルームRをホストHが作成し、AとBが参加して同時にbuzzした場合、
// playerBuzzedはAかBのどちらか一方についてのみ、ちょうど1回配信される
func TestSimultaneousBuzzSingleWinner(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}
	bob := &models.Client{ConnectionID: "conn-b", UserID: 3}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	require.Equal(t, "joined", co.JoinRoom(alice, code, "Alice").Reply["type"])
	require.Equal(t, "joined", co.JoinRoom(bob, code, "Bob").Reply["type"])

	// ホストがラウンドを開始
	reset := co.ResetRound(host, created.RoomID)
	require.Equal(t, 1, countEvents(reset.Broadcasts, "roundReset"))

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, client := range []*models.Client{alice, bob} {
		wg.Add(1)
		go func(i int, client *models.Client) {
			defer wg.Done()
			results[i] = co.Buzz(client)
		}(i, client)
	}
	wg.Wait()

	buzzed := countEvents(results[0].Broadcasts, "playerBuzzed") +
		countEvents(results[1].Broadcasts, "playerBuzzed")
	actionRequired := countEvents(results[0].Broadcasts, "hostActionRequired") +
		countEvents(results[1].Broadcasts, "hostActionRequired")
	assert.Equal(t, 1, buzzed, "両方勝ちでも両方負けでもなく、必ずどちらか一方だけ")
	assert.Equal(t, 1, actionRequired)

	room, err := co.Rooms.FindByID(created.RoomID)
	require.NoError(t, err)
	assert.True(t, room.BuzzLocked)
	assert.Contains(t, []string{"Alice", "Bob"}, room.BuzzedPlayerName)
}

func TestBuzzBeforeRoundStartIsSilent(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	co.JoinRoom(alice, code, "Alice")

	// ラウンド開始前のbuzzは応答も配信もない
	result := co.Buzz(alice)
	assert.Nil(t, result.Reply)
	assert.Empty(t, result.Broadcasts)
}

func TestResetRoundByNonHostReturnsError(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	co.JoinRoom(alice, code, "Alice")

	result := co.ResetRound(alice, created.RoomID)
	require.NotNil(t, result.Reply)
	assert.Equal(t, "error", result.Reply["type"])
	assert.Empty(t, result.Broadcasts)
}

func TestKickPlayerFlow(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	joined := co.JoinRoom(alice, code, "Alice")

	result := co.KickPlayer(host, joined.PlayerID)
	assert.Equal(t, "conn-a", result.KickTarget)
	require.NotNil(t, result.KickMessage)
	assert.Equal(t, "kicked", result.KickMessage["type"])
	require.Equal(t, 1, countEvents(result.Broadcasts, "playerListUpdated"))

	// キック対象のプレイヤーは削除済み
	player, err := co.Conns.LookupPlayerByConnection("conn-a")
	require.NoError(t, err)
	assert.Nil(t, player)
}

func TestKickPlayerByNonHostReturnsError(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}
	bob := &models.Client{ConnectionID: "conn-b", UserID: 3}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	co.JoinRoom(alice, code, "Alice")
	joined := co.JoinRoom(bob, code, "Bob")

	result := co.KickPlayer(alice, joined.PlayerID)
	require.NotNil(t, result.Reply)
	assert.Equal(t, "error", result.Reply["type"])
	assert.Empty(t, result.KickTarget)

	// 対象は残っている
	player, err := co.Conns.LookupPlayerByConnection("conn-b")
	require.NoError(t, err)
	assert.NotNil(t, player)
}

// 権限・対象の問題ではない内部エラーはエラーログに残る
func TestKickPlayerInternalErrorIsLogged(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.Player{}))

	core, logs := observer.New(zap.ErrorLevel)
	co := NewCoordinator(db, zap.New(core))

	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}
	created := co.CreateRoom(host)
	joined := co.JoinRoom(alice, created.Reply["roomCode"].(string), "Alice")
	require.NotZero(t, joined.PlayerID)

	// DBを閉じて内部エラーを誘発する
	require.NoError(t, sqlDB.Close())

	result := co.KickPlayer(host, joined.PlayerID)
	require.NotNil(t, result.Reply)
	assert.Equal(t, "error", result.Reply["type"])
	assert.NotZero(t, logs.Len(), "内部エラーはログに残す")
}

// Aがbuzzせずに切断した場合、退出通知が1件だけ配信され、
// その後のキックは対象なしとして失敗する
func TestDisconnectThenKickFails(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	alice := &models.Client{ConnectionID: "conn-a", UserID: 2}

	created := co.CreateRoom(host)
	code := created.Reply["roomCode"].(string)
	joined := co.JoinRoom(alice, code, "Alice")

	result := co.Disconnect(alice)
	require.Equal(t, 1, countEvents(result.Broadcasts, "playerListUpdated"))
	assert.Contains(t, result.Broadcasts[0].Payload["message"], "Alice")

	kick := co.KickPlayer(host, joined.PlayerID)
	require.NotNil(t, kick.Reply)
	assert.Equal(t, "error", kick.Reply["type"])

	// 二重切断は何も配信しない
	again := co.Disconnect(alice)
	assert.Empty(t, again.Broadcasts)
}

func TestHostDisconnectIsSilent(t *testing.T) {
	co := newTestCoordinator(t)
	host := &models.Client{ConnectionID: "conn-host", UserID: 1}
	co.CreateRoom(host)

	result := co.Disconnect(host)
	assert.Empty(t, result.Broadcasts)
	assert.Nil(t, result.Reply)
}
