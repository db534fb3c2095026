package model

import "time"

// TempCodeUsageType controls how many uses a temp code allows.
type TempCodeUsageType string

const (
	UsageOneTime   TempCodeUsageType = "one_time"
	UsageLimited   TempCodeUsageType = "limited"
	UsageUnlimited TempCodeUsageType = "unlimited"
)

// TempCodeUsageMode controls whether the usage limit is tracked globally or
// independently per assigned door.
type TempCodeUsageMode string

const (
	UsageModeTotal   TempCodeUsageMode = "total"
	UsageModePerDoor TempCodeUsageMode = "per_door"
)

// TempCodeTimeType controls how a temp code's time validity is computed.
type TempCodeTimeType string

const (
	TimeTypeHours     TempCodeTimeType = "hours"
	TimeTypeDateRange TempCodeTimeType = "date_range"
	TimeTypePermanent TempCodeTimeType = "permanent"
)

// TempCodeStatus is the read-side projection of a code's state.
type TempCodeStatus string

const (
	StatusActive      TempCodeStatus = "active"
	StatusUsedUp      TempCodeStatus = "used_up"
	StatusExpired     TempCodeStatus = "expired"
	StatusNotYetValid TempCodeStatus = "not_yet_valid"
	StatusDisabled    TempCodeStatus = "disabled"
)

// TempCode is a time- and usage-bounded PIN not tied to a user identity.
// It targets either doors directly or groups, never both.
type TempCode struct {
	ID     int64  `gorm:"primaryKey"`
	Code   string `gorm:"uniqueIndex;size:64;not null"`
	Name   string `gorm:"size:128;not null"`
	Active bool   `gorm:"not null"`

	UsageType   TempCodeUsageType `gorm:"size:16;not null"`
	UsageMode   TempCodeUsageMode `gorm:"size:16;not null;default:'total'"`
	MaxUses     int               `gorm:"not null;default:0"` // meaningful for limited
	CurrentUses int               `gorm:"not null;default:0"` // global counter, monotonic while active

	TimeType   TempCodeTimeType `gorm:"size:16;not null"`
	ValidHours int              `gorm:"not null;default:0"`
	ValidFrom  *time.Time
	ValidUntil *time.Time

	// Reset on every inactive→active transition; anchors the hours countdown.
	LastActivatedAt *time.Time
	LastUsedAt      *time.Time
	LastUsedDoorID  *int64

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Doors      []*Door             `gorm:"many2many:temp_code_door_mapping;"`
	Groups     []*AccessGroup      `gorm:"many2many:temp_code_group_mapping;"`
	DoorUsages []TempCodeDoorUsage `gorm:"foreignKey:TempCodeID"`
}

// ExpiresAt returns the hours-type expiry instant: anchor + validHours, where
// the anchor is the last activation if set, else creation time. Returns the
// zero time for other time types.
func (t *TempCode) ExpiresAt() time.Time {
	if t.TimeType != TimeTypeHours {
		return time.Time{}
	}
	anchor := t.CreatedAt
	if t.LastActivatedAt != nil {
		anchor = *t.LastActivatedAt
	}
	return anchor.Add(time.Duration(t.ValidHours) * time.Hour)
}

// UsageLimit returns the per-counter use threshold, or -1 for unlimited.
func (t *TempCode) UsageLimit() int {
	switch t.UsageType {
	case UsageOneTime:
		return 1
	case UsageLimited:
		return t.MaxUses
	default:
		return -1
	}
}

// TempCodeDoorUsage tracks uses of a code at a single door.
type TempCodeDoorUsage struct {
	TempCodeID int64     `gorm:"primaryKey"`
	DoorID     int64     `gorm:"primaryKey"`
	Uses       int       `gorm:"not null;default:0"`
	LastUsedAt time.Time `gorm:"not null"`
}
