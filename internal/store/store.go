package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"door-access-backend/internal/model"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateCredential is returned when a PIN or card value collides with
// an existing credential or temp code. The check runs before any mutation.
var ErrDuplicateCredential = errors.New("credential value already in use")

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	BoardByID(ctx context.Context, id int64) (*model.Board, error)
	BoardByAddress(ctx context.Context, address string) (*model.Board, error)
	TouchBoard(ctx context.Context, id int64, now time.Time) error
	SetBoardEmergency(ctx context.Context, id int64, mode model.EmergencyMode, actor string, now time.Time, autoResetAt *time.Time) error
	ClearBoardEmergency(ctx context.Context, id int64) error

	DoorByID(ctx context.Context, id int64) (*model.Door, error)
	DoorOnBoard(ctx context.Context, boardID int64, doorNumber int) (*model.Door, error)
	SetDoorOverride(ctx context.Context, id int64, mode model.EmergencyMode, actor string, now time.Time) error
	ClearDoorOverride(ctx context.Context, id int64) error

	DoorSchedules(ctx context.Context, doorID int64) ([]model.DoorSchedule, error)

	CreateUser(ctx context.Context, user *model.User) error
	CreateCredential(ctx context.Context, cred *model.Credential) error
	UserByCredential(ctx context.Context, value string, ctype model.CredentialType) (*model.User, error)
	UserHasDoor(ctx context.Context, userID, doorID int64) (bool, error)

	CreateTempCode(ctx context.Context, code *model.TempCode) error
	TempCodeByID(ctx context.Context, id int64) (*model.TempCode, error)
	TempCodeByValue(ctx context.Context, value string) (*model.TempCode, error)
	TempCodes(ctx context.Context) ([]model.TempCode, error)
	DeactivateTempCode(ctx context.Context, id int64) error
	ActivateTempCode(ctx context.Context, id int64, now time.Time) error
	ConsumeTempCodeUse(ctx context.Context, codeID, doorID int64, targetDoorIDs []int64, now time.Time, entry *model.AccessLog) (bool, error)

	AppendAccessLog(ctx context.Context, entry *model.AccessLog) error
	AccessLogs(ctx context.Context, limit, offset int) ([]model.AccessLog, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for read-path handlers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *gormStore) BoardByID(ctx context.Context, id int64) (*model.Board, error) {
	var board model.Board
	if err := s.db.WithContext(ctx).First(&board, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &board, nil
}

func (s *gormStore) BoardByAddress(ctx context.Context, address string) (*model.Board, error) {
	var board model.Board
	if err := s.db.WithContext(ctx).First(&board, "address = ?", address).Error; err != nil {
		return nil, notFound(err)
	}
	return &board, nil
}

// TouchBoard records a heartbeat.
func (s *gormStore) TouchBoard(ctx context.Context, id int64, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).
		Update("last_seen_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) SetBoardEmergency(ctx context.Context, id int64, mode model.EmergencyMode, actor string, now time.Time, autoResetAt *time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).
		Updates(map[string]any{
			"emergency_mode":          mode,
			"emergency_activated_at":  now,
			"emergency_activated_by":  actor,
			"emergency_auto_reset_at": autoResetAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearBoardEmergency restores the board to its normal state. The three
// emergency fields are nulled together so the model invariant holds.
func (s *gormStore) ClearBoardEmergency(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).
		Updates(map[string]any{
			"emergency_mode":          model.EmergencyNone,
			"emergency_activated_at":  nil,
			"emergency_activated_by":  nil,
			"emergency_auto_reset_at": nil,
		}).Error
}

func (s *gormStore) DoorByID(ctx context.Context, id int64) (*model.Door, error) {
	var door model.Door
	if err := s.db.WithContext(ctx).Preload("Board").First(&door, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &door, nil
}

func (s *gormStore) DoorOnBoard(ctx context.Context, boardID int64, doorNumber int) (*model.Door, error) {
	var door model.Door
	err := s.db.WithContext(ctx).
		First(&door, "board_id = ? AND door_number = ?", boardID, doorNumber).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &door, nil
}

func (s *gormStore) SetDoorOverride(ctx context.Context, id int64, mode model.EmergencyMode, actor string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Door{}).Where("id = ?", id).
		Updates(map[string]any{
			"override":        mode,
			"override_set_at": now,
			"override_set_by": actor,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ClearDoorOverride(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&model.Door{}).Where("id = ?", id).
		Updates(map[string]any{
			"override":        model.EmergencyNone,
			"override_set_at": nil,
			"override_set_by": nil,
		}).Error
}

func (s *gormStore) DoorSchedules(ctx context.Context, doorID int64) ([]model.DoorSchedule, error) {
	var rows []model.DoorSchedule
	err := s.db.WithContext(ctx).
		Where("door_id = ? AND active", doorID).
		Order("priority DESC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// CreateCredential rejects values already taken by another credential of the
// same type, or by any temp code when the credential is a PIN.
func (s *gormStore) CreateCredential(ctx context.Context, cred *model.Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Credential{}).
			Where("value = ? AND type = ?", cred.Value, cred.Type).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCredential
		}
		if cred.Type == model.CredentialTypePIN {
			if err := tx.Model(&model.TempCode{}).
				Where("code = ?", cred.Value).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateCredential
			}
		}
		return tx.Create(cred).Error
	})
}

func (s *gormStore) UserByCredential(ctx context.Context, value string, ctype model.CredentialType) (*model.User, error) {
	var cred model.Credential
	err := s.db.WithContext(ctx).
		First(&cred, "value = ? AND type = ? AND active", value, ctype).Error
	if err != nil {
		return nil, notFound(err)
	}

	var user model.User
	err = s.db.WithContext(ctx).
		Preload("Schedules.Windows").
		First(&user, cred.UserID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UserHasDoor reports whether any of the user's groups contains the door.
func (s *gormStore) UserHasDoor(ctx context.Context, userID, doorID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("group_user_mapping gu").
		Joins("JOIN group_door_mapping gd ON gd.access_group_id = gu.access_group_id").
		Where("gu.user_id = ? AND gd.door_id = ?", userID, doorID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTempCode rejects codes colliding with user PINs or other temp codes.
func (s *gormStore) CreateTempCode(ctx context.Context, code *model.TempCode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.TempCode{}).
			Where("code = ?", code.Code).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCredential
		}
		if err := tx.Model(&model.Credential{}).
			Where("value = ? AND type = ?", code.Code, model.CredentialTypePIN).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCredential
		}
		return tx.Create(code).Error
	})
}

func (s *gormStore) tempCodeQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Doors").
		Preload("Groups.Doors").
		Preload("DoorUsages")
}

func (s *gormStore) TempCodeByID(ctx context.Context, id int64) (*model.TempCode, error) {
	var code model.TempCode
	if err := s.tempCodeQuery(ctx).First(&code, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

func (s *gormStore) TempCodeByValue(ctx context.Context, value string) (*model.TempCode, error) {
	var code model.TempCode
	if err := s.tempCodeQuery(ctx).First(&code, "code = ?", value).Error; err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

func (s *gormStore) TempCodes(ctx context.Context) ([]model.TempCode, error) {
	var codes []model.TempCode
	if err := s.tempCodeQuery(ctx).Order("id ASC").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *gormStore) DeactivateTempCode(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&model.TempCode{}).Where("id = ?", id).
		Update("active", false).Error
}

// ActivateTempCode flips a code back on, resetting the usage counters and
// re-anchoring the hours countdown at now. The caller is responsible for
// rejecting codes whose date range has already lapsed.
func (s *gormStore) ActivateTempCode(ctx context.Context, id int64, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TempCode{}).Where("id = ?", id).
			Updates(map[string]any{
				"active":            true,
				"current_uses":      0,
				"last_activated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("temp_code_id = ?", id).
			Delete(&model.TempCodeDoorUsage{}).Error
	})
}

// ConsumeTempCodeUse atomically increments a code's usage counters if the
// relevant counter is still below its threshold, stamps the last-used
// bookkeeping, flips the code inactive once its whole target set is
// exhausted, and appends the audit entry. Everything commits together or not
// at all. Returns false, without writing anything, when the counter had
// already reached its limit: two simultaneous uses of a one-time code cannot
// both succeed.
func (s *gormStore) ConsumeTempCodeUse(ctx context.Context, codeID, doorID int64, targetDoorIDs []int64, now time.Time, entry *model.AccessLog) (bool, error) {
	consumed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var code model.TempCode
		if err := tx.First(&code, codeID).Error; err != nil {
			return notFound(err)
		}
		limit := code.UsageLimit()

		switch code.UsageMode {
		case model.UsageModePerDoor:
			// Ensure the per-door row exists, then increment it only while
			// the door's own counter is below the limit.
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.TempCodeDoorUsage{TempCodeID: codeID, DoorID: doorID, LastUsedAt: now}).Error; err != nil {
				return err
			}
			q := tx.Model(&model.TempCodeDoorUsage{}).
				Where("temp_code_id = ? AND door_id = ?", codeID, doorID)
			if limit >= 0 {
				q = q.Where("uses < ?", limit)
			}
			res := q.Updates(map[string]any{
				"uses":         gorm.Expr("uses + 1"),
				"last_used_at": now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // door already exhausted
			}
			// The global counter stays a monotonic total across doors.
			if err := tx.Model(&model.TempCode{}).Where("id = ?", codeID).
				Updates(map[string]any{
					"current_uses":      gorm.Expr("current_uses + 1"),
					"last_used_at":      now,
					"last_used_door_id": doorID,
				}).Error; err != nil {
				return err
			}
		default: // total
			q := tx.Model(&model.TempCode{}).Where("id = ?", codeID)
			if limit >= 0 {
				q = q.Where("current_uses < ?", limit)
			}
			res := q.Updates(map[string]any{
				"current_uses":      gorm.Expr("current_uses + 1"),
				"last_used_at":      now,
				"last_used_door_id": doorID,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
		}

		exhausted, err := tempCodeExhausted(tx, &code, limit, targetDoorIDs)
		if err != nil {
			return err
		}
		if exhausted {
			if err := tx.Model(&model.TempCode{}).Where("id = ?", codeID).
				Update("active", false).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		consumed = true
		return nil
	})
	return consumed, err
}

// tempCodeExhausted re-evaluates the exhaustion rule after an increment.
// Under total mode the global counter decides; under per_door mode every
// door in the target set must independently have reached the limit.
func tempCodeExhausted(tx *gorm.DB, code *model.TempCode, limit int, targetDoorIDs []int64) (bool, error) {
	if limit < 0 {
		return false, nil
	}
	if code.UsageMode != model.UsageModePerDoor {
		var fresh model.TempCode
		if err := tx.First(&fresh, code.ID).Error; err != nil {
			return false, err
		}
		return fresh.CurrentUses >= limit, nil
	}
	if len(targetDoorIDs) == 0 {
		return false, nil
	}
	var exhaustedDoors int64
	err := tx.Model(&model.TempCodeDoorUsage{}).
		Where("temp_code_id = ? AND door_id IN ? AND uses >= ?", code.ID, targetDoorIDs, limit).
		Count(&exhaustedDoors).Error
	if err != nil {
		return false, err
	}
	return exhaustedDoors == int64(len(targetDoorIDs)), nil
}

func (s *gormStore) AppendAccessLog(ctx context.Context, entry *model.AccessLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append access log: %w", err)
	}
	return nil
}

func (s *gormStore) AccessLogs(ctx context.Context, limit, offset int) ([]model.AccessLog, error) {
	var entries []model.AccessLog
	err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
