package models

import (
	"time"
)

// ExportEvent records a successful export for usage statistics
type ExportEvent struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Event      string    `json:"event" gorm:"not null;index"`
	Tool       string    `json:"tool" gorm:"not null;index"`
	Filename   string    `json:"filename"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Bytes      int       `json:"bytes"`
	ExportedAt time.Time `json:"exported_at" gorm:"index"`
}
