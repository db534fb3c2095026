package model

import "time"

// EmergencyMode is an operator-forced state that pre-empts schedule and
// credential evaluation.
type EmergencyMode string

const (
	EmergencyNone   EmergencyMode = "none"
	EmergencyLock   EmergencyMode = "lock"
	EmergencyUnlock EmergencyMode = "unlock"
)

// Board represents a remote relay controller managing up to two doors.
type Board struct {
	ID      int64  `gorm:"primaryKey"`
	Name    string `gorm:"size:128;not null"`
	Address string `gorm:"uniqueIndex;size:64;not null"`

	// Updated by the heartbeat endpoint; online status is derived from it
	// on every read rather than by a background timer.
	LastSeenAt *time.Time

	// The three fields below are nil exactly when EmergencyMode is none.
	EmergencyMode        EmergencyMode `gorm:"size:16;not null;default:'none'"`
	EmergencyActivatedAt *time.Time
	EmergencyActivatedBy *string `gorm:"size:128"`
	EmergencyAutoResetAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Doors []Door `gorm:"foreignKey:BoardID"`
}

// Online reports whether the board heartbeated within the offline threshold.
func (b *Board) Online(now time.Time, threshold time.Duration) bool {
	return b.LastSeenAt != nil && now.Sub(*b.LastSeenAt) <= threshold
}
