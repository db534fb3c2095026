package engine

import (
	"context"
	"errors"
	"time"

	"door-access-backend/internal/clock"
	"door-access-backend/internal/emergency"
	"door-access-backend/internal/model"
	"door-access-backend/internal/schedule"
	"door-access-backend/internal/store"
	"door-access-backend/internal/tempcode"
)

// Verdict is the engine's output for one credential presentation.
type Verdict struct {
	Granted  bool   `json:"granted"`
	Reason   string `json:"reason"`
	Identity string `json:"identity"`
}

// Pulser physically opens a door. Implementations are best-effort and must
// never block the decision.
type Pulser interface {
	Pulse(door *model.Door)
}

// Engine orchestrates the authorization decision for one credential
// presentation at one door.
type Engine struct {
	store     store.Store
	clock     clock.Clock
	emergency *emergency.Service
	resolver  *schedule.Resolver
	tempCodes *tempcode.Service
	relay     Pulser
}

// New creates the authorization engine. relay may be nil when no physical
// dispatch is wanted (tests, dry runs).
func New(s store.Store, c clock.Clock, em *emergency.Service, r *schedule.Resolver, tc *tempcode.Service, relay Pulser) *Engine {
	return &Engine{
		store:     s,
		clock:     c,
		emergency: em,
		resolver:  r,
		tempCodes: tc,
		relay:     relay,
	}
}

// Authorize decides whether the credential opens the door and why. Except
// for an unknown board/door, which returns store.ErrNotFound before anything
// is written, every call appends exactly one access log entry whose granted
// flag matches the returned verdict.
func (e *Engine) Authorize(ctx context.Context, boardAddress string, doorNumber int, credentialValue string, credentialType model.CredentialType) (Verdict, error) {
	board, err := e.store.BoardByAddress(ctx, boardAddress)
	if err != nil {
		return Verdict{}, err
	}
	door, err := e.store.DoorOnBoard(ctx, board.ID, doorNumber)
	if err != nil {
		return Verdict{}, err
	}
	door.Board = *board

	entry := &model.AccessLog{
		Timestamp:       e.clock.Now(),
		DoorID:          &door.ID,
		DoorName:        door.Name,
		BoardName:       board.Name,
		BoardAddress:    board.Address,
		CredentialValue: credentialValue,
		CredentialType:  string(credentialType),
	}

	emMode, err := e.emergency.Effective(ctx, board, door)
	if err != nil {
		return Verdict{}, err
	}
	switch emMode {
	case model.EmergencyLock:
		return e.finish(ctx, entry, door, Verdict{Granted: false, Reason: "emergency lockdown", Identity: "Unknown"})
	case model.EmergencyUnlock:
		return e.finish(ctx, entry, door, Verdict{Granted: true, Reason: "emergency evacuation", Identity: "N/A (emergency)"})
	}

	res, err := e.resolver.ResolveDoorMode(ctx, door.ID)
	if err != nil {
		return Verdict{}, err
	}
	if res.Mode == model.DoorModeUnlocked {
		return e.finish(ctx, entry, door, Verdict{Granted: true, Reason: "door unlocked by schedule", Identity: "N/A (free access)"})
	}

	// Temp codes are global PINs independent of the user roster; a PIN that
	// matches one never falls through to user evaluation.
	if credentialType == model.CredentialTypePIN {
		code, err := e.store.TempCodeByValue(ctx, credentialValue)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Verdict{}, err
		}
		if err == nil {
			return e.authorizeTempCode(ctx, code, door, entry)
		}
	}

	user, err := e.store.UserByCredential(ctx, credentialValue, credentialType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.finish(ctx, entry, door, Verdict{Granted: false, Reason: "unknown credential", Identity: "Unknown"})
		}
		return Verdict{}, err
	}

	verdict, err := e.evaluateUser(ctx, user, door, res.Mode)
	if err != nil {
		return Verdict{}, err
	}
	return e.finish(ctx, entry, door, verdict)
}

// authorizeTempCode delegates to the temp code lifecycle. A granted use
// commits its own audit entry together with the usage increment, so only
// denials are logged here.
func (e *Engine) authorizeTempCode(ctx context.Context, code *model.TempCode, door *model.Door, entry *model.AccessLog) (Verdict, error) {
	decision, err := e.tempCodes.Use(ctx, code, door, entry)
	if err != nil {
		return Verdict{}, err
	}
	verdict := Verdict{Granted: decision.Granted, Reason: decision.Reason, Identity: code.Name}
	if decision.Logged {
		if verdict.Granted {
			e.pulse(door)
		}
		return verdict, nil
	}
	entry.Granted = verdict.Granted
	entry.Reason = verdict.Reason
	entry.Detail = decision.Detail
	if err := e.store.AppendAccessLog(ctx, entry); err != nil {
		return Verdict{}, err
	}
	if verdict.Granted {
		e.pulse(door)
	}
	return verdict, nil
}

// evaluateUser applies the per-user policy chain: active flag, date window,
// group-door membership, time schedules, then the final door-mode gate.
func (e *Engine) evaluateUser(ctx context.Context, user *model.User, door *model.Door, mode model.DoorMode) (Verdict, error) {
	now := e.clock.Now()

	if !user.Active {
		return Verdict{Granted: false, Reason: "user inactive", Identity: user.Name}, nil
	}

	// Date window is inclusive and compared on dates, not instants.
	today := dateOnly(now)
	if user.ValidFrom != nil && today.Before(dateOnly(*user.ValidFrom)) {
		return Verdict{Granted: false, Reason: "not yet valid", Identity: user.Name}, nil
	}
	if user.ValidUntil != nil && today.After(dateOnly(*user.ValidUntil)) {
		return Verdict{Granted: false, Reason: "expired", Identity: user.Name}, nil
	}

	hasDoor, err := e.store.UserHasDoor(ctx, user.ID, door.ID)
	if err != nil {
		return Verdict{}, err
	}
	if !hasDoor {
		return Verdict{Granted: false, Reason: "no door access", Identity: user.Name}, nil
	}

	// Any one matching schedule admits the user; no schedules means 24/7.
	if len(user.Schedules) > 0 && !anyWindowContains(user.Schedules, now) {
		return Verdict{Granted: false, Reason: "outside allowed schedule", Identity: user.Name}, nil
	}

	if mode == model.DoorModeLocked {
		return Verdict{Granted: false, Reason: "door locked by schedule", Identity: user.Name}, nil
	}

	return Verdict{Granted: true, Reason: "Access granted", Identity: user.Name}, nil
}

func anyWindowContains(schedules []*model.AccessSchedule, now time.Time) bool {
	for _, sched := range schedules {
		for i := range sched.Windows {
			if sched.Windows[i].Contains(now) {
				return true
			}
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// finish appends the audit entry and, on a grant, pulses the relay.
func (e *Engine) finish(ctx context.Context, entry *model.AccessLog, door *model.Door, verdict Verdict) (Verdict, error) {
	entry.Granted = verdict.Granted
	entry.Reason = verdict.Reason
	entry.Identity = verdict.Identity
	if err := e.store.AppendAccessLog(ctx, entry); err != nil {
		return Verdict{}, err
	}
	if verdict.Granted {
		e.pulse(door)
	}
	return verdict, nil
}

func (e *Engine) pulse(door *model.Door) {
	if e.relay != nil {
		e.relay.Pulse(door)
	}
}
