package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"door-access-backend/internal/model"
)

// Monday 2026-08-31 10:30 UTC.
var monday1030 = time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

func TestResolve_NoMatchDefaultsToControlled(t *testing.T) {
	res := Resolve(nil, monday1030)
	assert.Equal(t, model.DoorModeControlled, res.Mode)
	assert.Empty(t, res.ScheduleName)

	// A window on the wrong day must not match.
	rows := []model.DoorSchedule{
		{ID: 1, Name: "Sunday open", DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00", Mode: model.DoorModeUnlocked, Active: true},
	}
	res = Resolve(rows, monday1030)
	assert.Equal(t, model.DoorModeControlled, res.Mode)
}

func TestResolve_WindowIsHalfOpen(t *testing.T) {
	rows := []model.DoorSchedule{
		{ID: 1, Name: "morning", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:30", Mode: model.DoorModeUnlocked, Active: true},
	}

	// 10:30 is exactly the end of the window; [start, end) excludes it.
	res := Resolve(rows, monday1030)
	assert.Equal(t, model.DoorModeControlled, res.Mode)

	res = Resolve(rows, monday1030.Add(-time.Minute))
	assert.Equal(t, model.DoorModeUnlocked, res.Mode)
	assert.Equal(t, "morning", res.ScheduleName)

	// The start instant is included.
	res = Resolve(rows, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, model.DoorModeUnlocked, res.Mode)
}

func TestResolve_HighestPriorityWins(t *testing.T) {
	rows := []model.DoorSchedule{
		{ID: 1, Name: "business hours", DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", Mode: model.DoorModeUnlocked, Priority: 1, Active: true},
		{ID: 2, Name: "maintenance lockdown", DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", Mode: model.DoorModeLocked, Priority: 5, Active: true},
	}

	res := Resolve(rows, monday1030)
	assert.Equal(t, model.DoorModeLocked, res.Mode)
	assert.Equal(t, "maintenance lockdown", res.ScheduleName)

	// Outside the high-priority window the base schedule applies again.
	res = Resolve(rows, time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, model.DoorModeUnlocked, res.Mode)
}

func TestResolve_EqualPriorityTieIsDeterministic(t *testing.T) {
	rows := []model.DoorSchedule{
		{ID: 7, Name: "first", DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", Mode: model.DoorModeUnlocked, Priority: 3, Active: true},
		{ID: 9, Name: "second", DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", Mode: model.DoorModeLocked, Priority: 3, Active: true},
	}

	first := Resolve(rows, monday1030)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve(rows, monday1030))
	}
	// Lowest ID breaks the tie.
	assert.Equal(t, "first", first.ScheduleName)

	// Order of the input slice must not matter.
	swapped := []model.DoorSchedule{rows[1], rows[0]}
	assert.Equal(t, first, Resolve(swapped, monday1030))
}

func TestResolve_InactiveRowsIgnored(t *testing.T) {
	rows := []model.DoorSchedule{
		{ID: 1, Name: "disabled unlock", DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", Mode: model.DoorModeUnlocked, Priority: 10, Active: false},
		{ID: 2, Name: "night lock", DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", Mode: model.DoorModeLocked, Priority: 1, Active: true},
	}
	res := Resolve(rows, monday1030)
	assert.Equal(t, model.DoorModeLocked, res.Mode)
	assert.Equal(t, "night lock", res.ScheduleName)
}
