// Package moderation is the admin side of the chat: bans, abuse reports and
// the read-only views of the console.
package moderation

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/registry"
	"anonchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrInvalidReport       = errors.New("invalid report")
	ErrParticipantNotFound = errors.New("participant not found")
)

// Notifier tells freed partners that their room was closed.
type Notifier interface {
	NotifyPartnerLeft(ctx context.Context, roomID string, partners []string)
}

// Service handles the business logic for moderation.
type Service struct {
	Storage  storage.Storage
	Registry *registry.Service
	Matcher  *chathub.MatcherService
	Notifier Notifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics

	validate *validator.Validate
}

func NewService(reg *registry.Service, matcher *chathub.MatcherService, n Notifier) *Service {
	return &Service{
		Storage:  matcher.Storage,
		Registry: reg,
		Matcher:  matcher,
		Notifier: n,
		Log:      matcher.Log,
		Metrics:  matcher.Metrics,
		validate: validator.New(),
	}
}

// BanResult describes the room a ban closed, if any.
type BanResult struct {
	Participant *models.Participant
	ClosedRoom  *models.Room
	Partners    []string
}

// Ban forces the participant out of the pairing flow. An open room is closed
// in the same atomic unit and the partner is told it was left.
func (s *Service) Ban(ctx context.Context, pseudonym string) (BanResult, error) {
	var res BanResult
	err := s.Storage.Atomically(ctx, func(tx storage.Storage) error {
		p, err := tx.GetParticipantByPseudonym(ctx, pseudonym)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrParticipantNotFound
		}
		if err := tx.UpdateParticipantBanned(ctx, pseudonym, true); err != nil {
			return err
		}
		room, partners, err := s.Matcher.CloseActiveRoom(ctx, tx, pseudonym)
		if err != nil {
			return err
		}
		if err := tx.UpdateParticipantStatus(ctx, models.StatusFree, pseudonym); err != nil {
			return err
		}
		p.Banned, p.Status = true, models.StatusFree
		res = BanResult{Participant: p, ClosedRoom: room, Partners: partners}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return BanResult{}, err
		}
		return BanResult{}, fmt.Errorf("ban %s: %w", pseudonym, err)
	}

	s.Metrics.Moderated("ban")
	fields := []zap.Field{zap.String("pseudonym", pseudonym)}
	if res.ClosedRoom != nil {
		s.Metrics.RoomClosed("ban")
		fields = append(fields, zap.String("room_id", res.ClosedRoom.ID))
		if s.Notifier != nil {
			s.Notifier.NotifyPartnerLeft(ctx, res.ClosedRoom.ID, res.Partners)
		}
	}
	s.Log.Info("participant banned", fields...)
	return res, nil
}

// Unban lifts the ban. The participant stays free; nothing is restored.
func (s *Service) Unban(ctx context.Context, pseudonym string) (*models.Participant, error) {
	p, err := s.Registry.ByPseudonym(ctx, pseudonym)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	if err := s.Registry.SetBanned(ctx, p, false); err != nil {
		return nil, err
	}
	s.Metrics.Moderated("unban")
	s.Log.Info("participant unbanned", zap.String("pseudonym", pseudonym))
	return p, nil
}

type reportInput struct {
	RoomID   string `validate:"required,uuid"`
	Reporter string `validate:"required"`
	Reported string `validate:"required,nefield=Reporter"`
	Reason   string `validate:"required,max=1000"`
}

// FileReport records an abuse report. The reporter must sit in the open room
// and the reported pseudonym must be the other member.
func (s *Service) FileReport(ctx context.Context, roomID, reporter, reported, reason string) (*models.Report, error) {
	in := reportInput{
		RoomID:   roomID,
		Reporter: reporter,
		Reported: reported,
		Reason:   strings.TrimSpace(reason),
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown room", ErrInvalidReport)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if !room.IsOpen() || !room.HasMember(reporter) || !room.HasMember(reported) {
		return nil, fmt.Errorf("%w: not members of an open room", ErrInvalidReport)
	}

	report := &models.Report{
		RoomID:            roomID,
		ReporterPseudonym: reporter,
		ReportedPseudonym: reported,
		Reason:            in.Reason,
		CreatedAt:         s.Matcher.Now(),
	}
	if err := s.Storage.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	s.Metrics.ReportFiled()
	s.Log.Info("report filed", zap.String("room_id", roomID), zap.Uint("report_id", report.ID))
	return report, nil
}

// ReportPartner files a report against whoever shares reporter's open room.
func (s *Service) ReportPartner(ctx context.Context, reporter *models.Participant, reason string) (*models.Report, error) {
	room, err := s.Storage.GetActiveRoomForUser(ctx, reporter.Pseudonym)
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	if room == nil {
		return nil, chathub.ErrNotInRoom
	}
	partners := chathub.PartnersOf(room, reporter.Pseudonym)
	if len(partners) == 0 {
		return nil, chathub.ErrNotInRoom
	}
	return s.FileReport(ctx, room.ID, reporter.Pseudonym, partners[0], reason)
}
