package models

import "time"

// Message is one relayed text line. Messages are immutable and ordered by
// CreatedAt, then ID.
type Message struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RoomID          string    `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	SenderPseudonym string    `gorm:"type:varchar(64);not null;index" json:"sender"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	CreatedAt       time.Time `gorm:"not null;index:idx_room_msg" json:"created_at"`
}
