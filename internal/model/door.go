package model

import "time"

// DoorMode is the schedule-derived operating state of a door.
type DoorMode string

const (
	DoorModeUnlocked   DoorMode = "unlocked"
	DoorModeLocked     DoorMode = "locked"
	DoorModeControlled DoorMode = "controlled"
)

// Door identifies a physical door on a relay board.
type Door struct {
	ID         int64  `gorm:"primaryKey"`
	BoardID    int64  `gorm:"index;not null"`
	DoorNumber int    `gorm:"not null"` // 1 or 2
	Name       string `gorm:"size:128;not null"`

	// Per-door emergency override; wins over the board-level mode when set.
	Override      EmergencyMode `gorm:"size:16;not null;default:'none'"`
	OverrideSetAt *time.Time
	OverrideSetBy *string `gorm:"size:128"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Board     Board          `gorm:"constraint:OnDelete:CASCADE"`
	Groups    []*AccessGroup `gorm:"many2many:group_door_mapping;"`
	Schedules []DoorSchedule `gorm:"foreignKey:DoorID"`
}
