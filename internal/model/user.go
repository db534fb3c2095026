package model

import "time"

// User is a person who may be granted access via cards or PINs.
type User struct {
	ID     int64  `gorm:"primaryKey"`
	Name   string `gorm:"size:128;not null"`
	Active bool   `gorm:"not null"`

	// Inclusive date window; nil means unbounded on that side.
	ValidFrom  *time.Time
	ValidUntil *time.Time

	Notes string `gorm:"size:1024"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Credentials []Credential      `gorm:"foreignKey:UserID"`
	Groups      []*AccessGroup    `gorm:"many2many:group_user_mapping;"`
	Schedules   []*AccessSchedule `gorm:"many2many:user_schedule_mapping;"`
}
