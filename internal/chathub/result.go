package chathub

import "anonchat/backend/internal/models"

type MatchOutcome int

const (
	// MatchBanned: the requester is banned, nothing changed.
	MatchBanned MatchOutcome = iota
	// MatchAlreadyActive: the requester already sits in an open room.
	MatchAlreadyActive
	// MatchMatched: a new room was created with a waiting participant.
	MatchMatched
	// MatchQueued: nobody was waiting, the requester is now matching.
	MatchQueued
)

func (o MatchOutcome) String() string {
	switch o {
	case MatchBanned:
		return "banned"
	case MatchAlreadyActive:
		return "already_active"
	case MatchMatched:
		return "matched"
	case MatchQueued:
		return "queued"
	}
	return "unknown"
}

// MatchResult carries the room for AlreadyActive and Matched outcomes.
// Partner is set only when Matched.
type MatchResult struct {
	Outcome MatchOutcome
	Room    *models.Room
	Partner string
}

type EndOutcome int

const (
	EndNoRoom EndOutcome = iota
	EndClosed
)

func (o EndOutcome) String() string {
	if o == EndClosed {
		return "closed"
	}
	return "no_room"
}

// EndResult lists the partners freed by closing Room.
type EndResult struct {
	Outcome  EndOutcome
	Room     *models.Room
	Partners []string
}

// RelayResult is a persisted message and the pseudonyms it was relayed to.
type RelayResult struct {
	Message    *models.Message
	Recipients []string
}
