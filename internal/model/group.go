package model

import "time"

// AccessGroup is a named set of doors. A user gains access to a door if any
// of the user's groups contains that door.
type AccessGroup struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Doors []*Door `gorm:"many2many:group_door_mapping;"`
	Users []*User `gorm:"many2many:group_user_mapping;"`
}
