package model

import "time"

// CredentialType distinguishes cards from keypad PINs.
type CredentialType string

const (
	CredentialTypeCard CredentialType = "card"
	CredentialTypePIN  CredentialType = "pin"
)

// Credential is a card number or PIN owned by a user. PIN values must be
// unique across the union of user PINs and temp codes; the store enforces
// this at creation time.
type Credential struct {
	ID     int64          `gorm:"primaryKey"`
	UserID int64          `gorm:"index;not null"`
	Type   CredentialType `gorm:"size:16;not null"`
	Value  string         `gorm:"index;size:64;not null"`
	Active bool           `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	User User `gorm:"constraint:OnDelete:CASCADE"`
}
