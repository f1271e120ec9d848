package models

import "time"

// Announcement stores an admin-posted update shown to resellers.
type Announcement struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title   string `gorm:"type:text;not null"` // Announcement title.
	Message string `gorm:"type:text;not null"` // Announcement body.

	CreatedByID uint64 `gorm:"not null;index"` // Posting admin ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
