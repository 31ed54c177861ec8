package models

import "time"

// Status is the position of a participant in the pairing state machine:
// free -> matching -> active -> free.
type Status string

const (
	StatusFree     Status = "free"
	StatusMatching Status = "matching"
	StatusActive   Status = "active"
)

// Participant is a known chat user. Only the pseudonym ever leaves the
// storage layer; ExternalID is the transport account key (e.g. "tg:12345").
type Participant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ExternalID   string    `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Pseudonym    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"pseudonym"`
	Status       Status    `gorm:"type:varchar(16);not null;default:free;index" json:"status"`
	Banned       bool      `gorm:"not null;default:false;index" json:"banned"`
	LastActiveAt time.Time `gorm:"not null" json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanMatch reports whether the participant may enter the waiting pool.
func (p *Participant) CanMatch() bool {
	return !p.Banned
}
