package directory

import (
	"errors"
	"fmt"
	"math/rand"

	"buzzserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ルームコードの生成に使う文字集合（6文字、A-Z0-9）
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// コード衝突時の再試行上限。稼働中のルーム数に対して空間は十分広いため通常は1回で確定する
const maxCodeAttempts = 16

// ErrBuzzConflict は条件付き更新（CAS）が他のbuzzに先を越されたことを示します。
var ErrBuzzConflict = errors.New("buzz state conflict")

// Directory はルームコード→ルームの対応を所有するコンポーネントです。
// 全てのルームレコードへのアクセスはここを経由します。
type Directory struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Directory {
	return &Directory{db: db, logger: logger}
}

// BuzzState は早押しロックの遷移先を表します。
type BuzzState struct {
	BuzzLocked       bool
	BuzzedPlayerName string
}

// RoundControl はラウンド制御用の無条件更新の内容を表します。
type RoundControl struct {
	IsActive         bool
	BuzzLocked       bool
	BuzzedPlayerName string
}

// RoomSummary は一覧表示用に現在の参加人数を付与したルーム情報です。
type RoomSummary struct {
	Room        models.Room
	PlayerCount int64
}

// 参加コードの生成はパッケージ共通の乱数ソースを使う。呼び出しごとに
// シードし直すと、同一ナノ秒の同時作成が同じコード列を引いてしまう
func randomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}

// CreateRoom は未使用のコードを引き当てて新しいルームを作成します。
// コードの最終的な一意性はrooms.codeのユニークインデックスが保証し、
// 同時作成で同じコードを引いた側はここで再試行します。
func (d *Directory) CreateRoom(hostConnectionID string, hostUserID uint) (*models.Room, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode()

		// 既存コードとの衝突を先に確認（大半の衝突はここで弾かれる）
		var count int64
		if err := d.db.Model(&models.Room{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("room code check failed: %w", err)
		}
		if count > 0 {
			continue
		}

		room := &models.Room{
			Code:             code,
			HostConnectionID: hostConnectionID,
			HostUserID:       hostUserID,
			IsActive:         false,
			BuzzLocked:       false,
		}
		err := d.db.Create(room).Error
		if err == nil {
			return room, nil
		}
		// 確認と作成の間に同じコードが挿入された残余レース。引き直して再試行
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			d.logger.Info("ルームコードが衝突したため再試行します", zap.String("code", code))
			continue
		}
		return nil, fmt.Errorf("room create failed: %w", err)
	}
	return nil, fmt.Errorf("room code generation exhausted after %d attempts", maxCodeAttempts)
}

// FindByCode はコードでルームを検索します。見つからない場合は(nil, nil)を返します。
func (d *Directory) FindByCode(code string) (*models.Room, error) {
	var room models.Room
	err := d.db.Where("code = ?", code).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByCodeWithPlayers はルームと所属プレイヤーの一覧をまとめて取得します。
func (d *Directory) FindByCodeWithPlayers(code string) (*models.Room, error) {
	var room models.Room
	err := d.db.Preload("Players").Where("code = ?", code).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByID はIDでルームを検索します。見つからない場合は(nil, nil)を返します。
func (d *Directory) FindByID(id uint) (*models.Room, error) {
	var room models.Room
	err := d.db.First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListAll は全ルームを作成日時の降順で返し、各ルームに現在の参加人数を付与します。
func (d *Directory) ListAll() ([]RoomSummary, error) {
	var rooms []models.Room
	if err := d.db.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return d.withPlayerCounts(rooms)
}

// ListByHostUser は指定ユーザーが主催するルームを作成日時の降順で返します。
func (d *Directory) ListByHostUser(hostUserID uint) ([]RoomSummary, error) {
	var rooms []models.Room
	if err := d.db.Where("host_user_id = ?", hostUserID).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return d.withPlayerCounts(rooms)
}

func (d *Directory) withPlayerCounts(rooms []models.Room) ([]RoomSummary, error) {
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		var count int64
		if err := d.db.Model(&models.Player{}).Where("room_id = ?", room.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		summaries = append(summaries, RoomSummary{Room: room, PlayerCount: count})
	}
	return summaries, nil
}

// UpdateBuzzState は早押しロックの条件付き更新です。buzz_lockedが期待した
// 事前状態と一致する行だけを更新し、一致しなければErrBuzzConflictを返します。
// 同一ルームへの同時buzzのうち1件だけが成功することをこの1文のUPDATEが保証します。
func (d *Directory) UpdateBuzzState(roomID uint, expectLocked bool, next BuzzState) (*models.Room, error) {
	result := d.db.Model(&models.Room{}).
		Where("id = ? AND buzz_locked = ?", roomID, expectLocked).
		Updates(map[string]interface{}{
			"buzz_locked":        next.BuzzLocked,
			"buzzed_player_name": next.BuzzedPlayerName,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// 別のbuzzが先に遷移を成立させたか、ルームが消えている
		return nil, ErrBuzzConflict
	}
	return d.FindByID(roomID)
}

// UpdateRoundControl はラウンド制御フィールドの無条件更新です。
// リセットはホスト権限チェックで直列化されるためCASは不要です。
func (d *Directory) UpdateRoundControl(roomID uint, control RoundControl) (*models.Room, error) {
	err := d.db.Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active":          control.IsActive,
			"buzz_locked":        control.BuzzLocked,
			"buzzed_player_name": control.BuzzedPlayerName,
		}).Error
	if err != nil {
		return nil, err
	}
	return d.FindByID(roomID)
}

// UpdateHostConnection はホストの再接続時に接続IDを付け替えます。
func (d *Directory) UpdateHostConnection(roomID uint, connectionID string) error {
	return d.db.Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("host_connection_id", connectionID).Error
}
