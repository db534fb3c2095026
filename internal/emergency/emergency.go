package emergency

import (
	"context"
	"fmt"
	"log"
	"time"

	"door-access-backend/internal/clock"
	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

// Service tracks board-wide and door-specific emergency states. An emergency
// unlock on a board carries an auto-reset deadline that is cleared lazily on
// any read, so status stays correct without a background timer.
type Service struct {
	store store.Store
	clock clock.Clock
}

// NewService creates the emergency override layer.
func NewService(s store.Store, c clock.Clock) *Service {
	return &Service{store: s, clock: c}
}

// Effective returns the emergency mode governing a door: the door-level
// override when set, otherwise the board-level mode. An expired board unlock
// is cleared before evaluation; the tick is idempotent, so concurrent reads
// racing the clear are harmless.
func (s *Service) Effective(ctx context.Context, board *model.Board, door *model.Door) (model.EmergencyMode, error) {
	if door.Override == model.EmergencyLock || door.Override == model.EmergencyUnlock {
		return door.Override, nil
	}
	if err := s.tick(ctx, board); err != nil {
		return model.EmergencyNone, err
	}
	return board.EmergencyMode, nil
}

// tick clears an expired board emergency unlock in the store and on the
// in-memory board.
func (s *Service) tick(ctx context.Context, board *model.Board) error {
	if board.EmergencyMode != model.EmergencyUnlock || board.EmergencyAutoResetAt == nil {
		return nil
	}
	if s.clock.Now().Before(*board.EmergencyAutoResetAt) {
		return nil
	}
	log.Printf("emergency unlock on board %d expired at %s, clearing", board.ID, board.EmergencyAutoResetAt)
	if err := s.store.ClearBoardEmergency(ctx, board.ID); err != nil {
		return err
	}
	board.EmergencyMode = model.EmergencyNone
	board.EmergencyActivatedAt = nil
	board.EmergencyActivatedBy = nil
	board.EmergencyAutoResetAt = nil
	return nil
}

// SetBoardMode activates an emergency on a whole board. An unlock carries an
// auto-reset duration; a duration of zero leaves the unlock in place until
// cleared. The change is audit-logged.
func (s *Service) SetBoardMode(ctx context.Context, boardID int64, mode model.EmergencyMode, actor string, autoReset time.Duration) error {
	board, err := s.store.BoardByID(ctx, boardID)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	var autoResetAt *time.Time
	if mode == model.EmergencyUnlock && autoReset > 0 {
		t := now.Add(autoReset)
		autoResetAt = &t
	}
	if err := s.store.SetBoardEmergency(ctx, boardID, mode, actor, now, autoResetAt); err != nil {
		return err
	}
	return s.store.AppendAccessLog(ctx, &model.AccessLog{
		Timestamp:       now,
		BoardName:       board.Name,
		BoardAddress:    board.Address,
		DoorName:        "all doors",
		CredentialValue: "-",
		CredentialType:  "admin",
		Identity:        actor,
		Granted:         mode == model.EmergencyUnlock,
		Reason:          fmt.Sprintf("emergency %s activated by %s", mode, actor),
	})
}

// ClearBoardMode restores a board to normal operation and logs it.
func (s *Service) ClearBoardMode(ctx context.Context, boardID int64, actor string) error {
	board, err := s.store.BoardByID(ctx, boardID)
	if err != nil {
		return err
	}
	if err := s.store.ClearBoardEmergency(ctx, boardID); err != nil {
		return err
	}
	return s.store.AppendAccessLog(ctx, &model.AccessLog{
		Timestamp:       s.clock.Now(),
		BoardName:       board.Name,
		BoardAddress:    board.Address,
		DoorName:        "all doors",
		CredentialValue: "-",
		CredentialType:  "admin",
		Identity:        actor,
		Granted:         false,
		Reason:          fmt.Sprintf("emergency cleared by %s", actor),
	})
}

// SetDoorOverride forces a single door into an emergency mode, winning over
// the board-level state.
func (s *Service) SetDoorOverride(ctx context.Context, doorID int64, mode model.EmergencyMode, actor string) error {
	door, err := s.store.DoorByID(ctx, doorID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if err := s.store.SetDoorOverride(ctx, doorID, mode, actor, now); err != nil {
		return err
	}
	return s.store.AppendAccessLog(ctx, &model.AccessLog{
		Timestamp:       now,
		DoorID:          &door.ID,
		DoorName:        door.Name,
		BoardName:       door.Board.Name,
		BoardAddress:    door.Board.Address,
		CredentialValue: "-",
		CredentialType:  "admin",
		Identity:        actor,
		Granted:         mode == model.EmergencyUnlock,
		Reason:          fmt.Sprintf("door override %s set by %s", mode, actor),
	})
}

// ClearDoorOverride removes a door-level override and logs it.
func (s *Service) ClearDoorOverride(ctx context.Context, doorID int64, actor string) error {
	door, err := s.store.DoorByID(ctx, doorID)
	if err != nil {
		return err
	}
	if err := s.store.ClearDoorOverride(ctx, doorID); err != nil {
		return err
	}
	return s.store.AppendAccessLog(ctx, &model.AccessLog{
		Timestamp:       s.clock.Now(),
		DoorID:          &door.ID,
		DoorName:        door.Name,
		BoardName:       door.Board.Name,
		BoardAddress:    door.Board.Address,
		CredentialValue: "-",
		CredentialType:  "admin",
		Identity:        actor,
		Granted:         false,
		Reason:          fmt.Sprintf("door override cleared by %s", actor),
	})
}
