package tempcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"door-access-backend/internal/clock"
	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

// ErrDateRangeLapsed is returned when an operator tries to reactivate a
// date_range code whose valid-until has already passed. The date has to be
// edited first; the code is never silently reactivated.
var ErrDateRangeLapsed = errors.New("code date range has expired, edit the date before reactivating")

// Decision is the outcome of presenting a temp code at a door.
type Decision struct {
	Granted bool
	Reason  string
	// Usage / remaining-validity summary for the audit trail.
	Detail string
	// Logged is true when the audit entry was already committed together
	// with the usage increment; the caller must not log again.
	Logged bool
}

// Service owns the temp code state machine: validity checks, usage
// accounting and auto-deactivation.
type Service struct {
	store store.Store
	clock clock.Clock
}

// NewService creates the temp code lifecycle service.
func NewService(s store.Store, c clock.Clock) *Service {
	return &Service{store: s, clock: c}
}

// TargetDoorIDs returns the set of doors the code can open, either directly
// assigned or through its groups.
func TargetDoorIDs(code *model.TempCode) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, d := range code.Doors {
		if !seen[d.ID] {
			seen[d.ID] = true
			ids = append(ids, d.ID)
		}
	}
	for _, g := range code.Groups {
		for _, d := range g.Doors {
			if !seen[d.ID] {
				seen[d.ID] = true
				ids = append(ids, d.ID)
			}
		}
	}
	return ids
}

// targetsDoor reports whether the code can open the given door.
func targetsDoor(code *model.TempCode, doorID int64) bool {
	for _, id := range TargetDoorIDs(code) {
		if id == doorID {
			return true
		}
	}
	return false
}

func doorUses(code *model.TempCode, doorID int64) int {
	for _, u := range code.DoorUsages {
		if u.DoorID == doorID {
			return u.Uses
		}
	}
	return 0
}

// Use runs the full validity check for one presentation of the code at a
// door and applies the side effects of a successful use. The entry carries
// the door/board/credential snapshot prepared by the caller; on a grant it
// is committed atomically with the usage increment, and Decision.Logged is
// set so the caller knows not to write a second entry.
func (s *Service) Use(ctx context.Context, code *model.TempCode, door *model.Door, entry *model.AccessLog) (Decision, error) {
	now := s.clock.Now()
	entry.Identity = code.Name

	if !code.Active {
		return Decision{Reason: "disabled"}, nil
	}

	if !targetsDoor(code, door.ID) {
		return Decision{Reason: "no access to this door"}, nil
	}

	switch code.TimeType {
	case model.TimeTypeHours:
		if now.After(code.ExpiresAt()) {
			if err := s.store.DeactivateTempCode(ctx, code.ID); err != nil {
				return Decision{}, err
			}
			return Decision{Reason: "expired"}, nil
		}
	case model.TimeTypeDateRange:
		if code.ValidFrom != nil && now.Before(*code.ValidFrom) {
			return Decision{Reason: "not yet valid"}, nil
		}
		if code.ValidUntil != nil && now.After(*code.ValidUntil) {
			if err := s.store.DeactivateTempCode(ctx, code.ID); err != nil {
				return Decision{}, err
			}
			return Decision{Reason: "expired"}, nil
		}
	}

	limit := code.UsageLimit()
	targets := TargetDoorIDs(code)

	if limit >= 0 {
		if code.UsageMode == model.UsageModePerDoor {
			if doorUses(code, door.ID) >= limit {
				if err := s.deactivateIfAllDoorsExhausted(ctx, code, limit, targets); err != nil {
					return Decision{}, err
				}
				return Decision{Reason: exhaustedReason(code)}, nil
			}
		} else if code.CurrentUses >= limit {
			if err := s.store.DeactivateTempCode(ctx, code.ID); err != nil {
				return Decision{}, err
			}
			return Decision{Reason: exhaustedReason(code)}, nil
		}
	}

	entry.Granted = true
	entry.Reason = "Access granted"
	entry.Detail = s.grantDetail(code, door.ID, now)

	ok, err := s.store.ConsumeTempCodeUse(ctx, code.ID, door.ID, targets, now, entry)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		// Lost a race with a concurrent use that exhausted the counter.
		// The winning use already handled deactivation.
		return Decision{Reason: exhaustedReason(code)}, nil
	}
	return Decision{Granted: true, Reason: "Access granted", Detail: entry.Detail, Logged: true}, nil
}

func exhaustedReason(code *model.TempCode) string {
	if code.UsageType == model.UsageOneTime {
		return "already used"
	}
	return "usage limit reached"
}

// deactivateIfAllDoorsExhausted flips a per_door code inactive only once
// every door in its target set has independently reached the limit.
func (s *Service) deactivateIfAllDoorsExhausted(ctx context.Context, code *model.TempCode, limit int, targets []int64) error {
	if len(targets) == 0 {
		return nil
	}
	for _, id := range targets {
		if doorUses(code, id) < limit {
			return nil
		}
	}
	return s.store.DeactivateTempCode(ctx, code.ID)
}

// grantDetail builds the usage / remaining-validity summary recorded with a
// successful use. Counters reflect the state after this use.
func (s *Service) grantDetail(code *model.TempCode, doorID int64, now time.Time) string {
	var usage string
	limit := code.UsageLimit()
	switch {
	case limit < 0:
		usage = "unlimited uses"
	case code.UsageMode == model.UsageModePerDoor:
		usage = fmt.Sprintf("use %d of %d at this door", doorUses(code, doorID)+1, limit)
	default:
		usage = fmt.Sprintf("use %d of %d", code.CurrentUses+1, limit)
	}

	switch code.TimeType {
	case model.TimeTypeHours:
		return fmt.Sprintf("%s, valid until %s", usage, code.ExpiresAt().Format("2006-01-02 15:04"))
	case model.TimeTypeDateRange:
		if code.ValidUntil != nil {
			return fmt.Sprintf("%s, valid until %s", usage, code.ValidUntil.Format("2006-01-02"))
		}
		return usage
	default:
		return usage
	}
}

// ProjectStatus derives the display status of a code without mutating
// anything. It replays the same time and usage predicates as Use so the
// listing can never show "active" for a code the engine would deny.
func ProjectStatus(code *model.TempCode, now time.Time) model.TempCodeStatus {
	timeExpired := false
	notYetValid := false
	switch code.TimeType {
	case model.TimeTypeHours:
		timeExpired = now.After(code.ExpiresAt())
	case model.TimeTypeDateRange:
		notYetValid = code.ValidFrom != nil && now.Before(*code.ValidFrom)
		timeExpired = code.ValidUntil != nil && now.After(*code.ValidUntil)
	}

	usedUp := false
	if limit := code.UsageLimit(); limit >= 0 {
		if code.UsageMode == model.UsageModePerDoor {
			targets := TargetDoorIDs(code)
			usedUp = len(targets) > 0
			for _, id := range targets {
				if doorUses(code, id) < limit {
					usedUp = false
					break
				}
			}
		} else {
			usedUp = code.CurrentUses >= limit
		}
	}

	if !code.Active {
		switch {
		case usedUp:
			return model.StatusUsedUp
		case timeExpired:
			return model.StatusExpired
		default:
			return model.StatusDisabled
		}
	}
	switch {
	case notYetValid:
		return model.StatusNotYetValid
	case timeExpired:
		return model.StatusExpired
	case usedUp:
		return model.StatusUsedUp
	default:
		return model.StatusActive
	}
}

// Activate toggles a code from inactive to active, resetting the usage
// counters and, for hours-type codes, restarting the countdown from now.
// A date_range code whose window has already lapsed is rejected with
// ErrDateRangeLapsed.
func (s *Service) Activate(ctx context.Context, id int64) error {
	code, err := s.store.TempCodeByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if code.TimeType == model.TimeTypeDateRange && code.ValidUntil != nil && now.After(*code.ValidUntil) {
		return ErrDateRangeLapsed
	}
	return s.store.ActivateTempCode(ctx, id, now)
}

// Deactivate turns a code off manually.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.store.TempCodeByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeactivateTempCode(ctx, id)
}
