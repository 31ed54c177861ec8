package storage

import (
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned by lookups that require the record to exist.
	ErrNotFound = errors.New("record not found")
	// ErrRoomClosed is returned when writing into a room that has been closed.
	// The caller raced with a stop or a ban and must re-resolve its room.
	ErrRoomClosed = errors.New("room is closed")
)

// Stats holds the dashboard aggregates. Counts may be slightly stale.
type Stats struct {
	TotalParticipants int64 `json:"total_participants"`
	OpenRooms         int64 `json:"open_rooms"`
	TotalMessages     int64 `json:"total_messages"`
	TotalReports      int64 `json:"total_reports"`
}

type Storage interface {
	// Atomically runs fn as one unit that is serialized against every other
	// Atomically call. fn must use the Storage it receives.
	Atomically(ctx context.Context, fn func(tx Storage) error) error

	UpsertParticipant(ctx context.Context, externalID, pseudonym string, now time.Time) (*models.Participant, error)
	GetParticipantByPseudonym(ctx context.Context, pseudonym string) (*models.Participant, error)
	FindWaitingParticipant(ctx context.Context, excludePseudonym string) (*models.Participant, error)
	UpdateParticipantStatus(ctx context.Context, status models.Status, pseudonyms ...string) error
	UpdateParticipantBanned(ctx context.Context, pseudonym string, banned bool) error

	SaveRoom(ctx context.Context, room *models.Room) error
	CloseRoom(ctx context.Context, roomID string, at time.Time) error
	GetRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	GetActiveRoomForUser(ctx context.Context, pseudonym string) (*models.Room, error)
	ListRooms(ctx context.Context, openOnly bool) ([]models.Room, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.Message, error)

	SaveReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context) ([]models.Report, error)

	GetStats(ctx context.Context) (Stats, error)
}

// Service is the PostgreSQL implementation of Storage.
type Service struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{DB: db, Log: log}
}

// Migrate creates the four record sets and the membership index.
func (s *Service) Migrate() error {
	if err := s.DB.AutoMigrate(
		&models.Participant{},
		&models.Room{},
		&models.Message{},
		&models.Report{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return s.DB.Exec("CREATE INDEX IF NOT EXISTS idx_rooms_members ON rooms USING GIN (members)").Error
}

// Atomically opens a transaction and takes the matching advisory lock, so
// the waiting-pool scan and the writes that consume it never interleave with
// another matcher, stop or ban.
func (s *Service) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", config.MatchingLockKey).Error; err != nil {
			return fmt.Errorf("acquire matching lock: %w", err)
		}
		return fn(&Service{DB: tx, Log: s.Log})
	})
}

// UpsertParticipant inserts the participant on first contact or refreshes
// last_active_at. The unique external_id makes concurrent first contacts safe.
func (s *Service) UpsertParticipant(ctx context.Context, externalID, pseudonym string, now time.Time) (*models.Participant, error) {
	db := s.DB.WithContext(ctx)
	p := models.Participant{
		ExternalID:   externalID,
		Pseudonym:    pseudonym,
		Status:       models.StatusFree,
		LastActiveAt: now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_active_at": now}),
	}).Create(&p).Error
	if err != nil {
		s.Log.Error("failed to upsert participant", zap.String("pseudonym", pseudonym), zap.Error(err))
		return nil, err
	}

	var stored models.Participant
	if err := db.Where("external_id = ?", externalID).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetParticipantByPseudonym returns nil without error when nobody has the pseudonym.
func (s *Service) GetParticipantByPseudonym(ctx context.Context, pseudonym string) (*models.Participant, error) {
	var p models.Participant
	err := s.DB.WithContext(ctx).Where("pseudonym = ?", pseudonym).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindWaitingParticipant returns the first non-banned participant in the
// matching state other than excludePseudonym, or nil.
func (s *Service) FindWaitingParticipant(ctx context.Context, excludePseudonym string) (*models.Participant, error) {
	var p models.Participant
	err := s.DB.WithContext(ctx).
		Where("status = ? AND banned = ? AND pseudonym <> ?", models.StatusMatching, false, excludePseudonym).
		Order("id").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) UpdateParticipantStatus(ctx context.Context, status models.Status, pseudonyms ...string) error {
	if len(pseudonyms) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("pseudonym IN ?", pseudonyms).
		Update("status", status).Error
}

func (s *Service) UpdateParticipantBanned(ctx context.Context, pseudonym string, banned bool) error {
	return s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("pseudonym = ?", pseudonym).
		Update("banned", banned).Error
}

// SaveRoom зберігає кімнату в PostgreSQL
func (s *Service) SaveRoom(ctx context.Context, room *models.Room) error {
	return s.DB.WithContext(ctx).Create(room).Error
}

// CloseRoom stamps closed_at on an open room. Closing a closed room is a no-op.
func (s *Service) CloseRoom(ctx context.Context, roomID string, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND closed_at IS NULL", roomID).
		Update("closed_at", at).Error
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("id = ?", roomID).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.Log.Error("failed to get room", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomForUser знаходить відкриту кімнату, в якій бере участь даний користувач.
func (s *Service) GetActiveRoomForUser(ctx context.Context, pseudonym string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).
		Where("closed_at IS NULL AND ? = ANY(members)", pseudonym).
		Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns rooms newest first.
func (s *Service) ListRooms(ctx context.Context, openOnly bool) ([]models.Room, error) {
	var rooms []models.Room
	q := s.DB.WithContext(ctx).Order("created_at desc")
	if openOnly {
		q = q.Where("closed_at IS NULL")
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// SaveMessage appends msg to its room. The room row is share-locked so a
// concurrent close either waits for the insert or makes it fail with ErrRoomClosed.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", msg.RoomID).Take(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !room.IsOpen() {
			return ErrRoomClosed
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(msg).Error; err != nil {
			s.Log.Error("failed to save message", zap.String("room_id", msg.RoomID), zap.Error(err))
			return err
		}
		return nil
	})
}

// GetChatHistory отримує історію повідомлень для кімнати
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.Message, error) {
	var history []models.Message
	if err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).
		Order("created_at asc, id asc").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Service) SaveReport(ctx context.Context, report *models.Report) error {
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		s.Log.Error("failed to save report", zap.String("room_id", report.RoomID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := s.DB.WithContext(ctx).Order("created_at desc, id desc").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	db := s.DB.WithContext(ctx)
	var st Stats
	if err := db.Model(&models.Participant{}).Count(&st.TotalParticipants).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Room{}).Where("closed_at IS NULL").Count(&st.OpenRooms).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Message{}).Count(&st.TotalMessages).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Report{}).Count(&st.TotalReports).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}
