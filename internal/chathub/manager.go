package chathub

import (
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNotInRoom is returned when relaying without an open room.
	ErrNotInRoom = errors.New("participant is not in a room")
	// ErrEmptyMessage is returned for blank relay text.
	ErrEmptyMessage = errors.New("message is empty")
)

// ClientRestorer builds a client for a pseudonym that has no live
// connection in this process, e.g. a Telegram chat.
type ClientRestorer func(ctx context.Context, pseudonym string) (Client, error)

// Reporter files a report against the reporter's current partner.
type Reporter interface {
	ReportPartner(ctx context.Context, reporter *models.Participant, reason string) (*models.Report, error)
}

// ManagerService is the hub: it wraps the matcher with notifications, relays
// messages, and delivers bus notifications to the clients it holds.
type ManagerService struct {
	// Clients is owned by the Run goroutine.
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	done         chan struct{}

	Matcher *MatcherService
	Storage storage.Storage
	Bus     Publisher
	Reports Reporter
	Log     *zap.Logger
	Metrics *metrics.Metrics

	ClientRestorer ClientRestorer
}

func NewManagerService(matcher *MatcherService, bus Publisher) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
		Matcher:      matcher,
		Storage:      matcher.Storage,
		Bus:          bus,
		Log:          matcher.Log,
		Metrics:      matcher.Metrics,
	}
}

func (m *ManagerService) SetClientRestorer(restorer ClientRestorer) {
	m.ClientRestorer = restorer
}

// Register hands c to the Run loop. It returns immediately once Run has stopped.
func (m *ManagerService) Register(c Client) {
	select {
	case m.RegisterCh <- c:
	case <-m.done:
		c.Close()
	}
}

func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Find requests a match and tells the partner when one was found.
func (m *ManagerService) Find(ctx context.Context, p *models.Participant) (MatchResult, error) {
	res, err := m.Matcher.RequestMatch(ctx, p)
	if err != nil {
		return res, err
	}
	if res.Outcome == MatchMatched {
		m.notify(ctx, models.Notification{
			Type:      models.NotificationMatchFound,
			Recipient: res.Partner,
			RoomID:    res.Room.ID,
		})
	}
	return res, nil
}

// Stop ends p's room and tells the freed partners.
func (m *ManagerService) Stop(ctx context.Context, p *models.Participant) (EndResult, error) {
	res, err := m.Matcher.EndActiveRoom(ctx, p)
	if err != nil {
		return res, err
	}
	if res.Outcome == EndClosed {
		m.NotifyPartnerLeft(ctx, res.Room.ID, res.Partners)
	}
	return res, nil
}

// NotifyPartnerLeft publishes partner_left to every pseudonym in partners.
func (m *ManagerService) NotifyPartnerLeft(ctx context.Context, roomID string, partners []string) {
	for _, partner := range partners {
		m.notify(ctx, models.Notification{
			Type:      models.NotificationPartnerLeft,
			Recipient: partner,
			RoomID:    roomID,
		})
	}
}

// RelayText persists text in the sender's open room and notifies the partner.
func (m *ManagerService) RelayText(ctx context.Context, sender *models.Participant, text string) (RelayResult, error) {
	if strings.TrimSpace(text) == "" {
		return RelayResult{}, ErrEmptyMessage
	}

	room, err := m.Storage.GetActiveRoomForUser(ctx, sender.Pseudonym)
	if err != nil {
		return RelayResult{}, fmt.Errorf("find room: %w", err)
	}
	if room == nil {
		return RelayResult{}, ErrNotInRoom
	}

	msg := &models.Message{
		RoomID:          room.ID,
		SenderPseudonym: sender.Pseudonym,
		Text:            text,
		CreatedAt:       m.Matcher.Now(),
	}
	if err := m.Storage.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrRoomClosed) {
			return RelayResult{}, fmt.Errorf("%w: %w", ErrNotInRoom, err)
		}
		return RelayResult{}, fmt.Errorf("save message: %w", err)
	}

	recipients := PartnersOf(room, sender.Pseudonym)
	for _, r := range recipients {
		m.notify(ctx, models.Notification{
			Type:      models.NotificationMessage,
			Recipient: r,
			RoomID:    room.ID,
			MessageID: msg.ID,
			Text:      text,
		})
	}
	m.Metrics.MessageRelayed()
	return RelayResult{Message: msg, Recipients: recipients}, nil
}

// HandleFrame executes a web client command and publishes the status reply
// back to the sender.
func (m *ManagerService) HandleFrame(ctx context.Context, pseudonym string, frame models.ChatMessage) (models.Notification, error) {
	reply := models.Notification{Type: models.NotificationStatus, Recipient: pseudonym}

	p, err := m.Storage.GetParticipantByPseudonym(ctx, pseudonym)
	if err != nil {
		return reply, fmt.Errorf("load participant: %w", err)
	}
	if p == nil {
		return reply, storage.ErrNotFound
	}

	switch frame.Type {
	case "find":
		res, err := m.Find(ctx, p)
		if err != nil {
			return reply, err
		}
		reply.Text = res.Outcome.String()
		if res.Room != nil {
			reply.RoomID = res.Room.ID
		}
	case "stop":
		res, err := m.Stop(ctx, p)
		if err != nil {
			return reply, err
		}
		reply.Text = res.Outcome.String()
		if res.Room != nil {
			reply.RoomID = res.Room.ID
		}
	case "message":
		_, err := m.RelayText(ctx, p, frame.Content)
		switch {
		case errors.Is(err, ErrNotInRoom):
			reply.Text = "not_in_room"
		case errors.Is(err, ErrEmptyMessage):
			reply.Text = "empty_message"
		case err != nil:
			return reply, err
		default:
			// no echo to the sender
			return reply, nil
		}
	case "report":
		if m.Reports == nil {
			reply.Text = "unsupported"
			break
		}
		report, err := m.Reports.ReportPartner(ctx, p, frame.Content)
		if err != nil {
			if errors.Is(err, ErrNotInRoom) {
				reply.Text = "not_in_room"
				break
			}
			reply.Text = "invalid_report"
			m.Log.Debug("report rejected", zap.String("pseudonym", pseudonym), zap.Error(err))
			break
		}
		reply.Text = "reported"
		reply.RoomID = report.RoomID
	default:
		reply.Text = "unknown_command"
	}

	m.notify(ctx, reply)
	return reply, nil
}

func (m *ManagerService) notify(ctx context.Context, n models.Notification) {
	if m.Bus == nil {
		return
	}
	if err := m.Bus.Publish(ctx, n); err != nil {
		m.Log.Error("failed to publish notification",
			zap.String("type", string(n.Type)),
			zap.String("recipient", n.Recipient),
			zap.Error(err))
	}
}

// RestoreClientSession returns the client for pseudonym, building it with the
// restorer when none is registered. Must be called from the Run goroutine.
func (m *ManagerService) RestoreClientSession(ctx context.Context, pseudonym string) (Client, error) {
	if client, ok := m.Clients[pseudonym]; ok {
		return client, nil
	}
	if m.ClientRestorer == nil {
		return nil, nil
	}

	client, err := m.ClientRestorer(ctx, pseudonym)
	if err != nil || client == nil {
		return nil, err
	}

	m.Clients[pseudonym] = client
	client.Run()
	m.Metrics.ClientsConnected(len(m.Clients))
	m.Log.Debug("restored client session", zap.String("pseudonym", pseudonym))
	return client, nil
}

// Run delivers bus notifications to registered clients until ctx is done.
func (m *ManagerService) Run(ctx context.Context, sub Subscriber) error {
	defer close(m.done)

	notifications, err := sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	m.Log.Info("chat hub started")

	defer func() {
		for id, client := range m.Clients {
			client.Close()
			delete(m.Clients, id)
		}
		m.Metrics.ClientsConnected(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-m.RegisterCh:
			id := client.GetUserID()
			if old, ok := m.Clients[id]; ok && old != client {
				old.Close()
			}
			m.Clients[id] = client
			m.Metrics.ClientsConnected(len(m.Clients))

		case client := <-m.UnregisterCh:
			id := client.GetUserID()
			if current, ok := m.Clients[id]; ok && current == client {
				delete(m.Clients, id)
				client.Close()
				m.Metrics.ClientsConnected(len(m.Clients))
			}

		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			m.deliver(ctx, n)
		}
	}
}

func (m *ManagerService) deliver(ctx context.Context, n models.Notification) {
	client, err := m.RestoreClientSession(ctx, n.Recipient)
	if err != nil {
		m.Log.Warn("failed to restore client", zap.String("recipient", n.Recipient), zap.Error(err))
	}
	if client == nil {
		m.Metrics.NotificationDropped()
		return
	}

	select {
	case client.GetSendChannel() <- n:
	default:
		// slow client
		m.Log.Warn("client send buffer full, disconnecting", zap.String("recipient", n.Recipient))
		delete(m.Clients, n.Recipient)
		client.Close()
		m.Metrics.NotificationDropped()
		m.Metrics.ClientsConnected(len(m.Clients))
	}
}
