package domain

import "time"

const (
	// WatermarkKey stores the last fully processed Gmail history id.
	WatermarkKey = "gmail_history_id"
	// WatermarkUninitialized marks a watermark row with no baseline yet.
	WatermarkUninitialized = "uninitialized"
)

// Setting is a key/value row in the config table
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;column:key"`
	Value     string    `json:"value" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "config"
}
