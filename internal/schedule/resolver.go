package schedule

import (
	"context"
	"time"

	"door-access-backend/internal/clock"
	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

// Resolution is the current operating mode of a door and the schedule that
// produced it. ScheduleName is empty when no schedule matched.
type Resolution struct {
	Mode         model.DoorMode
	ScheduleName string
}

// Resolve picks the door mode from a set of schedule rows at the given
// instant: among active rows whose weekly [start, end) window contains now,
// the highest priority wins, ties broken by lowest ID. With no match the
// door defaults to controlled. Pure function of its inputs.
func Resolve(rows []model.DoorSchedule, now time.Time) Resolution {
	var best *model.DoorSchedule
	for i := range rows {
		row := &rows[i]
		if !row.Active || !row.Contains(now) {
			continue
		}
		if best == nil || row.Priority > best.Priority ||
			(row.Priority == best.Priority && row.ID < best.ID) {
			best = row
		}
	}
	if best == nil {
		return Resolution{Mode: model.DoorModeControlled}
	}
	return Resolution{Mode: best.Mode, ScheduleName: best.Name}
}

// Resolver answers "what mode is this door in right now" from stored
// schedule rows.
type Resolver struct {
	store store.Store
	clock clock.Clock
}

// NewResolver creates a store-backed resolver.
func NewResolver(s store.Store, c clock.Clock) *Resolver {
	return &Resolver{store: s, clock: c}
}

// ResolveDoorMode loads the door's active schedules and resolves the mode at
// the clock's current instant.
func (r *Resolver) ResolveDoorMode(ctx context.Context, doorID int64) (Resolution, error) {
	rows, err := r.store.DoorSchedules(ctx, doorID)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(rows, r.clock.Now()), nil
}
