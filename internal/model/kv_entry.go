package model

import "time"

// KVEntry is one row of the persistent key-value store.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:512"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name independently of the struct name.
func (KVEntry) TableName() string {
	return "kv_entries"
}
