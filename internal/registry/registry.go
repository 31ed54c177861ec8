// Package registry keeps the participant records: lazy creation on first
// contact and plain status/ban setters. Invariants across participants are
// enforced by the matcher, not here.
package registry

import (
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
	"fmt"
	"time"
)

// Pseudonymizer maps a transport account id to a stable pseudonym.
type Pseudonymizer interface {
	Pseudonymize(externalID string) string
}

type Service struct {
	Storage   storage.Storage
	Anonymize Pseudonymizer
	Now       func() time.Time
}

func NewService(s storage.Storage, a Pseudonymizer) *Service {
	return &Service{
		Storage:   s,
		Anonymize: a,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the participant for externalID, creating it as free and
// unbanned on first contact. LastActiveAt is refreshed on every call.
func (s *Service) Resolve(ctx context.Context, externalID string) (*models.Participant, error) {
	p, err := s.Storage.UpsertParticipant(ctx, externalID, s.Anonymize.Pseudonymize(externalID), s.Now())
	if err != nil {
		return nil, fmt.Errorf("resolve participant: %w", err)
	}
	return p, nil
}

// ByPseudonym returns nil when the pseudonym is unknown.
func (s *Service) ByPseudonym(ctx context.Context, pseudonym string) (*models.Participant, error) {
	p, err := s.Storage.GetParticipantByPseudonym(ctx, pseudonym)
	if err != nil {
		return nil, fmt.Errorf("lookup participant: %w", err)
	}
	return p, nil
}

func (s *Service) SetStatus(ctx context.Context, p *models.Participant, status models.Status) error {
	if err := s.Storage.UpdateParticipantStatus(ctx, status, p.Pseudonym); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	p.Status = status
	return nil
}

func (s *Service) SetBanned(ctx context.Context, p *models.Participant, banned bool) error {
	if err := s.Storage.UpdateParticipantBanned(ctx, p.Pseudonym, banned); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	p.Banned = banned
	return nil
}
