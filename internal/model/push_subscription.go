package model

import "time"

// PushSubscription holds a browser push subscription for an operator who
// wants emergency alerts for specific boards.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Boards []*Board `gorm:"many2many:subscription_board_mapping;"`
}
