package model

import "time"

// PushSubscription holds the information for a browser push subscription
// that wants schedule banners for one identity.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Identity  string    `gorm:"index;size:256;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
