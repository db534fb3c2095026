package model

import "time"

// AccessLog is one append-only record of an authorization decision. Door and
// board identity are denormalized so history survives door deletion. The
// engine never updates or deletes rows.
type AccessLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"not null;index"`

	DoorID       *int64 `gorm:"index"`
	DoorName     string `gorm:"size:128;not null"`
	BoardName    string `gorm:"size:128;not null"`
	BoardAddress string `gorm:"size:64;not null"`

	CredentialValue string `gorm:"size:64;not null"`
	CredentialType  string `gorm:"size:16;not null"`

	// Resolved identity: a user name, a temp code name, "Unknown", or
	// "N/A (free access)".
	Identity string `gorm:"size:128;not null"`

	Granted bool   `gorm:"not null"`
	Reason  string `gorm:"size:256;not null"`

	// Usage / remaining-validity summary for temp code events.
	Detail string `gorm:"size:256"`
}
