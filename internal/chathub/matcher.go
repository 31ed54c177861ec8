package chathub

import (
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MatcherService відповідає за алгоритм пошуку співрозмовників.
// Every state change runs inside Storage.Atomically, so two concurrent
// requesters always observe each other.
type MatcherService struct {
	Storage storage.Storage
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewMatcherService(s storage.Storage, log *zap.Logger, m *metrics.Metrics) *MatcherService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MatcherService{
		Storage: s,
		Log:     log,
		Metrics: m,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// RequestMatch pairs p with any waiting participant or queues p. The
// participant is updated in place with the committed status.
func (m *MatcherService) RequestMatch(ctx context.Context, p *models.Participant) (MatchResult, error) {
	if p.Banned {
		return MatchResult{Outcome: MatchBanned}, nil
	}

	var (
		res    MatchResult
		status models.Status
		banned bool
	)
	err := m.Storage.Atomically(ctx, func(tx storage.Storage) error {
		current, err := tx.GetParticipantByPseudonym(ctx, p.Pseudonym)
		if err != nil {
			return err
		}
		if current == nil {
			return storage.ErrNotFound
		}
		status, banned = current.Status, current.Banned

		if current.Banned {
			res = MatchResult{Outcome: MatchBanned}
			return nil
		}

		room, err := tx.GetActiveRoomForUser(ctx, p.Pseudonym)
		if err != nil {
			return err
		}
		if room != nil {
			res = MatchResult{Outcome: MatchAlreadyActive, Room: room}
			return nil
		}

		candidate, err := tx.FindWaitingParticipant(ctx, p.Pseudonym)
		if err != nil {
			return err
		}
		if candidate == nil {
			if err := tx.UpdateParticipantStatus(ctx, models.StatusMatching, p.Pseudonym); err != nil {
				return err
			}
			status = models.StatusMatching
			res = MatchResult{Outcome: MatchQueued}
			return nil
		}

		room = models.NewRoom(p.Pseudonym, candidate.Pseudonym, m.Now())
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		if err := tx.UpdateParticipantStatus(ctx, models.StatusActive, p.Pseudonym, candidate.Pseudonym); err != nil {
			return err
		}
		status = models.StatusActive
		res = MatchResult{Outcome: MatchMatched, Room: room, Partner: candidate.Pseudonym}
		return nil
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("request match: %w", err)
	}

	p.Status, p.Banned = status, banned
	switch res.Outcome {
	case MatchMatched:
		m.Metrics.Matched()
		m.Log.Info("match found",
			zap.String("room_id", res.Room.ID),
			zap.String("requester", p.Pseudonym),
			zap.String("partner", res.Partner))
	case MatchQueued:
		m.Metrics.Queued()
		m.Log.Debug("participant queued", zap.String("pseudonym", p.Pseudonym))
	}
	return res, nil
}

// EndActiveRoom closes p's open room, or cancels queueing when p has none.
func (m *MatcherService) EndActiveRoom(ctx context.Context, p *models.Participant) (EndResult, error) {
	var res EndResult
	err := m.Storage.Atomically(ctx, func(tx storage.Storage) error {
		room, partners, err := m.CloseActiveRoom(ctx, tx, p.Pseudonym)
		if err != nil {
			return err
		}
		if room != nil {
			res = EndResult{Outcome: EndClosed, Room: room, Partners: partners}
			return nil
		}

		res = EndResult{Outcome: EndNoRoom}
		current, err := tx.GetParticipantByPseudonym(ctx, p.Pseudonym)
		if err != nil {
			return err
		}
		if current != nil && current.Status != models.StatusFree {
			return tx.UpdateParticipantStatus(ctx, models.StatusFree, p.Pseudonym)
		}
		return nil
	})
	if err != nil {
		return EndResult{}, fmt.Errorf("end active room: %w", err)
	}

	p.Status = models.StatusFree
	if res.Outcome == EndClosed {
		m.Metrics.RoomClosed("stop")
		m.Log.Info("room closed",
			zap.String("room_id", res.Room.ID),
			zap.String("by", p.Pseudonym))
	}
	return res, nil
}

// CloseActiveRoom is the close step shared by stop and ban. It must run on
// a tx obtained from Storage.Atomically. Returns nil room when pseudonym
// has no open room.
func (m *MatcherService) CloseActiveRoom(ctx context.Context, tx storage.Storage, pseudonym string) (*models.Room, []string, error) {
	room, err := tx.GetActiveRoomForUser(ctx, pseudonym)
	if err != nil || room == nil {
		return nil, nil, err
	}

	now := m.Now()
	if err := tx.CloseRoom(ctx, room.ID, now); err != nil {
		return nil, nil, err
	}
	if err := tx.UpdateParticipantStatus(ctx, models.StatusFree, room.Members...); err != nil {
		return nil, nil, err
	}
	room.ClosedAt = &now
	return room, PartnersOf(room, pseudonym), nil
}

// PartnersOf returns the members of room other than excluding.
func PartnersOf(room *models.Room, excluding string) []string {
	if room == nil {
		return nil
	}
	return lo.Without([]string(room.Members), excluding)
}
