package storage

import (
	"anonchat/backend/internal/models"
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Storage used by tests and by the
// STORAGE_DRIVER=memory mode. A single mutex serializes every call, and
// Atomically rolls back all writes made by fn when it returns an error.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

type memData struct {
	participants map[string]models.Participant // by pseudonym
	byExternal   map[string]string             // external id -> pseudonym
	rooms        map[string]models.Room
	messages     []models.Message
	reports      []models.Report

	nextParticipantID uint
	nextMessageID     uint
	nextReportID      uint
}

func newMemData() *memData {
	return &memData{
		participants: make(map[string]models.Participant),
		byExternal:   make(map[string]string),
		rooms:        make(map[string]models.Room),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		participants:      make(map[string]models.Participant, len(d.participants)),
		byExternal:        make(map[string]string, len(d.byExternal)),
		rooms:             make(map[string]models.Room, len(d.rooms)),
		messages:          append([]models.Message(nil), d.messages...),
		reports:           append([]models.Report(nil), d.reports...),
		nextParticipantID: d.nextParticipantID,
		nextMessageID:     d.nextMessageID,
		nextReportID:      d.nextReportID,
	}
	for k, v := range d.participants {
		c.participants[k] = v
	}
	for k, v := range d.byExternal {
		c.byExternal[k] = v
	}
	for k, v := range d.rooms {
		c.rooms[k] = copyRoom(v)
	}
	return c
}

func copyRoom(r models.Room) models.Room {
	r.Members = append([]string(nil), r.Members...)
	if r.ClosedAt != nil {
		at := *r.ClosedAt
		r.ClosedAt = &at
	}
	return r
}

func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(memoryTx{data: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) UpsertParticipant(ctx context.Context, externalID, pseudonym string, now time.Time) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.UpsertParticipant(ctx, externalID, pseudonym, now)
}

func (s *MemoryStore) GetParticipantByPseudonym(ctx context.Context, pseudonym string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.GetParticipantByPseudonym(ctx, pseudonym)
}

func (s *MemoryStore) FindWaitingParticipant(ctx context.Context, excludePseudonym string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.FindWaitingParticipant(ctx, excludePseudonym)
}

func (s *MemoryStore) UpdateParticipantStatus(ctx context.Context, status models.Status, pseudonyms ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.UpdateParticipantStatus(ctx, status, pseudonyms...)
}

func (s *MemoryStore) UpdateParticipantBanned(ctx context.Context, pseudonym string, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.UpdateParticipantBanned(ctx, pseudonym, banned)
}

func (s *MemoryStore) SaveRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.SaveRoom(ctx, room)
}

func (s *MemoryStore) CloseRoom(ctx context.Context, roomID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.CloseRoom(ctx, roomID, at)
}

func (s *MemoryStore) GetRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.GetRoomByID(ctx, roomID)
}

func (s *MemoryStore) GetActiveRoomForUser(ctx context.Context, pseudonym string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.GetActiveRoomForUser(ctx, pseudonym)
}

func (s *MemoryStore) ListRooms(ctx context.Context, openOnly bool) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.ListRooms(ctx, openOnly)
}

func (s *MemoryStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.SaveMessage(ctx, msg)
}

func (s *MemoryStore) GetChatHistory(ctx context.Context, roomID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.GetChatHistory(ctx, roomID)
}

func (s *MemoryStore) SaveReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.SaveReport(ctx, report)
}

func (s *MemoryStore) ListReports(ctx context.Context) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.ListReports(ctx)
}

func (s *MemoryStore) GetStats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryTx{data: s.data}.GetStats(ctx)
}

// memoryTx operates on data whose lock is already held.
type memoryTx struct {
	data *memData
}

func (t memoryTx) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	return fn(t)
}

func (t memoryTx) UpsertParticipant(_ context.Context, externalID, pseudonym string, now time.Time) (*models.Participant, error) {
	if existing, ok := t.data.byExternal[externalID]; ok {
		p := t.data.participants[existing]
		p.LastActiveAt = now
		t.data.participants[existing] = p
		return &p, nil
	}
	t.data.nextParticipantID++
	p := models.Participant{
		ID:           t.data.nextParticipantID,
		ExternalID:   externalID,
		Pseudonym:    pseudonym,
		Status:       models.StatusFree,
		LastActiveAt: now,
		CreatedAt:    now,
	}
	t.data.participants[pseudonym] = p
	t.data.byExternal[externalID] = pseudonym
	return &p, nil
}

func (t memoryTx) GetParticipantByPseudonym(_ context.Context, pseudonym string) (*models.Participant, error) {
	p, ok := t.data.participants[pseudonym]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t memoryTx) FindWaitingParticipant(_ context.Context, excludePseudonym string) (*models.Participant, error) {
	var found *models.Participant
	for _, p := range t.data.participants {
		if p.Status != models.StatusMatching || p.Banned || p.Pseudonym == excludePseudonym {
			continue
		}
		if found == nil || p.ID < found.ID {
			candidate := p
			found = &candidate
		}
	}
	return found, nil
}

func (t memoryTx) UpdateParticipantStatus(_ context.Context, status models.Status, pseudonyms ...string) error {
	for _, pseudonym := range pseudonyms {
		if p, ok := t.data.participants[pseudonym]; ok {
			p.Status = status
			t.data.participants[pseudonym] = p
		}
	}
	return nil
}

func (t memoryTx) UpdateParticipantBanned(_ context.Context, pseudonym string, banned bool) error {
	if p, ok := t.data.participants[pseudonym]; ok {
		p.Banned = banned
		t.data.participants[pseudonym] = p
	}
	return nil
}

func (t memoryTx) SaveRoom(_ context.Context, room *models.Room) error {
	if err := room.BeforeCreate(nil); err != nil {
		return err
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	t.data.rooms[room.ID] = copyRoom(*room)
	return nil
}

func (t memoryTx) CloseRoom(_ context.Context, roomID string, at time.Time) error {
	room, ok := t.data.rooms[roomID]
	if !ok || !room.IsOpen() {
		return nil
	}
	room.ClosedAt = &at
	t.data.rooms[roomID] = room
	return nil
}

func (t memoryTx) GetRoomByID(_ context.Context, roomID string) (*models.Room, error) {
	room, ok := t.data.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	room = copyRoom(room)
	return &room, nil
}

func (t memoryTx) GetActiveRoomForUser(_ context.Context, pseudonym string) (*models.Room, error) {
	for _, room := range t.data.rooms {
		if room.IsOpen() && room.HasMember(pseudonym) {
			room = copyRoom(room)
			return &room, nil
		}
	}
	return nil, nil
}

func (t memoryTx) ListRooms(_ context.Context, openOnly bool) ([]models.Room, error) {
	rooms := make([]models.Room, 0, len(t.data.rooms))
	for _, room := range t.data.rooms {
		if openOnly && !room.IsOpen() {
			continue
		}
		rooms = append(rooms, copyRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID > rooms[j].ID
		}
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (t memoryTx) SaveMessage(_ context.Context, msg *models.Message) error {
	room, ok := t.data.rooms[msg.RoomID]
	if !ok {
		return ErrNotFound
	}
	if !room.IsOpen() {
		return ErrRoomClosed
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	t.data.nextMessageID++
	msg.ID = t.data.nextMessageID
	t.data.messages = append(t.data.messages, *msg)
	return nil
}

func (t memoryTx) GetChatHistory(_ context.Context, roomID string) ([]models.Message, error) {
	var history []models.Message
	for _, m := range t.data.messages {
		if m.RoomID == roomID {
			history = append(history, m)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].CreatedAt.Equal(history[j].CreatedAt) {
			return history[i].ID < history[j].ID
		}
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

func (t memoryTx) SaveReport(_ context.Context, report *models.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	t.data.nextReportID++
	report.ID = t.data.nextReportID
	t.data.reports = append(t.data.reports, *report)
	return nil
}

func (t memoryTx) ListReports(_ context.Context) ([]models.Report, error) {
	reports := append([]models.Report(nil), t.data.reports...)
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].ID > reports[j].ID })
	return reports, nil
}

func (t memoryTx) GetStats(_ context.Context) (Stats, error) {
	st := Stats{
		TotalParticipants: int64(len(t.data.participants)),
		TotalMessages:     int64(len(t.data.messages)),
		TotalReports:      int64(len(t.data.reports)),
	}
	for _, room := range t.data.rooms {
		if room.IsOpen() {
			st.OpenRooms++
		}
	}
	return st, nil
}
