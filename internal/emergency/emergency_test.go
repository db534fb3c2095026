package emergency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"door-access-backend/internal/clock"
	"door-access-backend/internal/db"
	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))
	return testDB
}

func seed(t *testing.T, testDB *gorm.DB) (model.Board, model.Door) {
	board := model.Board{Name: "Warehouse", Address: "10.0.0.9"}
	require.NoError(t, testDB.Create(&board).Error)
	door := model.Door{BoardID: board.ID, DoorNumber: 1, Name: "Loading Dock", Override: model.EmergencyNone}
	require.NoError(t, testDB.Create(&door).Error)
	return board, door
}

func TestEffective_DoorOverrideWinsOverBoard(t *testing.T) {
	testDB := newTestDB(t)
	board, door := seed(t, testDB)
	s := store.NewGormStore(testDB)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := NewService(s, clock.Fixed{T: now})
	ctx := context.Background()

	require.NoError(t, svc.SetBoardMode(ctx, board.ID, model.EmergencyUnlock, "ops", 0))
	require.NoError(t, svc.SetDoorOverride(ctx, door.ID, model.EmergencyLock, "ops"))

	fresh, err := s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	freshDoor, err := s.DoorByID(ctx, door.ID)
	require.NoError(t, err)

	mode, err := svc.Effective(ctx, fresh, freshDoor)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyLock, mode, "door lock must win over board unlock")
}

func TestEffective_FallsBackToBoardMode(t *testing.T) {
	testDB := newTestDB(t)
	board, door := seed(t, testDB)
	s := store.NewGormStore(testDB)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := NewService(s, clock.Fixed{T: now})
	ctx := context.Background()

	require.NoError(t, svc.SetBoardMode(ctx, board.ID, model.EmergencyLock, "ops", 0))

	fresh, err := s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	freshDoor, err := s.DoorByID(ctx, door.ID)
	require.NoError(t, err)

	mode, err := svc.Effective(ctx, fresh, freshDoor)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyLock, mode)
}

func TestEffective_ExpiredUnlockClearsLazily(t *testing.T) {
	testDB := newTestDB(t)
	board, door := seed(t, testDB)
	s := store.NewGormStore(testDB)
	activatedAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := NewService(s, clock.Fixed{T: activatedAt})
	require.NoError(t, svc.SetBoardMode(ctx, board.ID, model.EmergencyUnlock, "ops", 10*time.Minute))

	// Before the deadline the unlock is still in effect.
	fresh, err := s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	freshDoor, err := s.DoorByID(ctx, door.ID)
	require.NoError(t, err)
	mode, err := svc.Effective(ctx, fresh, freshDoor)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyUnlock, mode)

	// A read past the deadline clears it, both in the store and on the
	// in-memory board.
	lateSvc := NewService(s, clock.Fixed{T: activatedAt.Add(11 * time.Minute)})
	fresh, err = s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	mode, err = lateSvc.Effective(ctx, fresh, freshDoor)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyNone, mode)
	assert.Equal(t, model.EmergencyNone, fresh.EmergencyMode)
	assert.Nil(t, fresh.EmergencyAutoResetAt)

	stored, err := s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyNone, stored.EmergencyMode)
	assert.Nil(t, stored.EmergencyActivatedAt)
	assert.Nil(t, stored.EmergencyActivatedBy)
}

func TestEffective_LockNeverAutoResets(t *testing.T) {
	testDB := newTestDB(t)
	board, door := seed(t, testDB)
	s := store.NewGormStore(testDB)
	activatedAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := NewService(s, clock.Fixed{T: activatedAt})
	// The auto-reset duration only applies to unlocks; a lockdown stays
	// until an operator clears it.
	require.NoError(t, svc.SetBoardMode(ctx, board.ID, model.EmergencyLock, "ops", 10*time.Minute))

	lateSvc := NewService(s, clock.Fixed{T: activatedAt.Add(24 * time.Hour)})
	fresh, err := s.BoardByID(ctx, board.ID)
	require.NoError(t, err)
	freshDoor, err := s.DoorByID(ctx, door.ID)
	require.NoError(t, err)
	mode, err := lateSvc.Effective(ctx, fresh, freshDoor)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyLock, mode)
}

func TestStateChangesAreAuditLogged(t *testing.T) {
	testDB := newTestDB(t)
	board, door := seed(t, testDB)
	s := store.NewGormStore(testDB)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := NewService(s, clock.Fixed{T: now})
	ctx := context.Background()

	require.NoError(t, svc.SetBoardMode(ctx, board.ID, model.EmergencyUnlock, "ops", 0))
	require.NoError(t, svc.ClearBoardMode(ctx, board.ID, "ops"))
	require.NoError(t, svc.SetDoorOverride(ctx, door.ID, model.EmergencyLock, "ops"))
	require.NoError(t, svc.ClearDoorOverride(ctx, door.ID, "ops"))

	var entries []model.AccessLog
	require.NoError(t, testDB.Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 4)
	assert.Equal(t, "emergency unlock activated by ops", entries[0].Reason)
	assert.True(t, entries[0].Granted)
	assert.Equal(t, "emergency cleared by ops", entries[1].Reason)
	assert.Equal(t, "door override lock set by ops", entries[2].Reason)
	assert.False(t, entries[2].Granted)
	assert.Equal(t, "door override cleared by ops", entries[3].Reason)

	freshDoor, err := s.DoorByID(ctx, door.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyNone, freshDoor.Override)
	assert.Nil(t, freshDoor.OverrideSetAt)
	assert.Nil(t, freshDoor.OverrideSetBy)
}
