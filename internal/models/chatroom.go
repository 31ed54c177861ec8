package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Room is a 1-on-1 conversation session. A room with a nil ClosedAt is open.
// Rooms are never deleted, only closed.
type Room struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Members   pq.StringArray `gorm:"type:text[];not null" json:"members"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	ClosedAt  *time.Time     `gorm:"index" json:"closed_at,omitempty"`
}

// NewRoom builds an open room for the two given pseudonyms.
func NewRoom(first, second string, now time.Time) *Room {
	return &Room{
		ID:        uuid.New().String(),
		Members:   pq.StringArray{first, second},
		CreatedAt: now,
	}
}

// BeforeCreate generates the room UUID when it is not set yet.
func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// IsOpen reports whether the room has not been closed.
func (r *Room) IsOpen() bool {
	return r.ClosedAt == nil
}

// HasMember reports whether pseudonym is one of the room members.
func (r *Room) HasMember(pseudonym string) bool {
	return lo.Contains(r.Members, pseudonym)
}
