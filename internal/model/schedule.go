package model

import "time"

// AccessSchedule is a named set of weekly time windows attached to users.
// Any one matching window admits the user; a user with no schedules is
// unrestricted.
type AccessSchedule struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Windows []ScheduleWindow `gorm:"foreignKey:AccessScheduleID"`
	Users   []*User          `gorm:"many2many:user_schedule_mapping;"`
}

// ScheduleWindow is one weekly time range of an access schedule.
// Times are "15:04" strings compared lexically, which is correct for
// zero-padded 24h clock values.
type ScheduleWindow struct {
	ID               int64  `gorm:"primaryKey"`
	AccessScheduleID int64  `gorm:"index;not null"`
	DayOfWeek        int    `gorm:"not null"` // 0 = Sunday .. 6 = Saturday
	StartTime        string `gorm:"size:8;not null"`
	EndTime          string `gorm:"size:8;not null"`
}

// Contains reports whether t falls inside the window, half-open [start, end).
func (w *ScheduleWindow) Contains(t time.Time) bool {
	if int(t.Weekday()) != w.DayOfWeek {
		return false
	}
	hm := t.Format("15:04")
	return hm >= w.StartTime && hm < w.EndTime
}

// DoorSchedule is one weekly window that forces a door into a mode;
// overlapping entries are resolved by priority.
type DoorSchedule struct {
	ID        int64    `gorm:"primaryKey"`
	DoorID    int64    `gorm:"index;not null"`
	Name      string   `gorm:"size:128;not null"`
	DayOfWeek int      `gorm:"not null"`
	StartTime string   `gorm:"size:8;not null"`
	EndTime   string   `gorm:"size:8;not null"`
	Mode      DoorMode `gorm:"size:16;not null"`
	Priority  int      `gorm:"not null;default:0"`
	Active    bool     `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Contains reports whether t falls inside the schedule window, [start, end).
func (s *DoorSchedule) Contains(t time.Time) bool {
	if int(t.Weekday()) != s.DayOfWeek {
		return false
	}
	hm := t.Format("15:04")
	return hm >= s.StartTime && hm < s.EndTime
}
