package models

import "time"

// Report is a complaint filed by one room member against the other.
// Append-only.
type Report struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RoomID            string    `gorm:"type:uuid;not null;index" json:"room_id"`
	ReporterPseudonym string    `gorm:"type:varchar(64);not null;index" json:"reporter"`
	ReportedPseudonym string    `gorm:"type:varchar(64);not null;index" json:"reported"`
	Reason            string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
}
