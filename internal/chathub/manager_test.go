package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func notificationFor(typ models.NotificationType, recipient string) interface{} {
	return mock.MatchedBy(func(n models.Notification) bool {
		return n.Type == typ && n.Recipient == recipient
	})
}

// pair matches two fresh participants and returns them with the room.
func pair(t *testing.T, e *engine) (*models.Participant, *models.Participant, *models.Room) {
	t.Helper()
	ctx := context.Background()
	a := e.participant(t, "tg:1")
	b := e.participant(t, "tg:2")
	_, err := e.matcher.RequestMatch(ctx, a)
	require.NoError(t, err)
	res, err := e.matcher.RequestMatch(ctx, b)
	require.NoError(t, err)
	require.Equal(t, chathub.MatchMatched, res.Outcome)
	a.Status = models.StatusActive
	return a, b, res.Room
}

func TestManager_RelayText(t *testing.T) {
	// Arrange
	e := newEngine()
	bus := new(MockPublisher)
	hub := chathub.NewManagerService(e.matcher, bus)
	a, b, room := pair(t, e)
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Type == models.NotificationMessage && n.Recipient == b.Pseudonym &&
			n.RoomID == room.ID && n.Text == "hi"
	})).Return(nil).Once()

	// Act
	res, err := hub.RelayText(context.Background(), a, "hi")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{b.Pseudonym}, res.Recipients)
	assert.Equal(t, room.ID, res.Message.RoomID)
	assert.Equal(t, a.Pseudonym, res.Message.SenderPseudonym)

	history, err := e.store.GetChatHistory(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)
	bus.AssertExpectations(t)
}

func TestManager_RelayText_NotInRoom(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	hub := chathub.NewManagerService(e.matcher, bus)
	a := e.participant(t, "tg:1")

	_, err := hub.RelayText(context.Background(), a, "hello?")

	assert.ErrorIs(t, err, chathub.ErrNotInRoom)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestManager_RelayText_AfterStop(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	bus.On("Publish", mock.Anything, mock.Anything).Return(nil)
	hub := chathub.NewManagerService(e.matcher, bus)
	a, b, _ := pair(t, e)
	_, err := hub.Stop(context.Background(), a)
	require.NoError(t, err)

	_, err = hub.RelayText(context.Background(), b, "still there?")

	assert.ErrorIs(t, err, chathub.ErrNotInRoom)
}

func TestManager_RelayText_Empty(t *testing.T) {
	e := newEngine()
	hub := chathub.NewManagerService(e.matcher, new(MockPublisher))
	a, _, _ := pair(t, e)

	_, err := hub.RelayText(context.Background(), a, "   ")

	assert.ErrorIs(t, err, chathub.ErrEmptyMessage)
}

func TestManager_FindNotifiesPartner(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	hub := chathub.NewManagerService(e.matcher, bus)
	ctx := context.Background()
	a := e.participant(t, "tg:1")
	b := e.participant(t, "tg:2")
	bus.On("Publish", mock.Anything, notificationFor(models.NotificationMatchFound, a.Pseudonym)).Return(nil).Once()

	first, err := hub.Find(ctx, a)
	require.NoError(t, err)
	second, err := hub.Find(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, chathub.MatchQueued, first.Outcome)
	assert.Equal(t, chathub.MatchMatched, second.Outcome)
	bus.AssertExpectations(t)
	bus.AssertNumberOfCalls(t, "Publish", 1)
}

func TestManager_StopNotifiesPartner(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	hub := chathub.NewManagerService(e.matcher, bus)
	a, b, room := pair(t, e)
	bus.On("Publish", mock.Anything, notificationFor(models.NotificationPartnerLeft, b.Pseudonym)).Return(nil).Once()

	res, err := hub.Stop(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, chathub.EndClosed, res.Outcome)
	assert.Equal(t, room.ID, res.Room.ID)
	bus.AssertExpectations(t)
}

func TestManager_PublishFailureDoesNotFailCommittedStop(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	bus.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	hub := chathub.NewManagerService(e.matcher, bus)
	a, _, _ := pair(t, e)

	res, err := hub.Stop(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, chathub.EndClosed, res.Outcome)
}

func TestManager_HandleFrame(t *testing.T) {
	e := newEngine()
	bus := new(MockPublisher)
	bus.On("Publish", mock.Anything, mock.Anything).Return(nil)
	hub := chathub.NewManagerService(e.matcher, bus)
	ctx := context.Background()
	a := e.participant(t, "ws:1")

	reply, err := hub.HandleFrame(ctx, a.Pseudonym, models.ChatMessage{Type: "find"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatus, reply.Type)
	assert.Equal(t, "queued", reply.Text)

	reply, err = hub.HandleFrame(ctx, a.Pseudonym, models.ChatMessage{Type: "message", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "not_in_room", reply.Text)

	reply, err = hub.HandleFrame(ctx, a.Pseudonym, models.ChatMessage{Type: "report", Content: "spam"})
	require.NoError(t, err)
	assert.Equal(t, "unsupported", reply.Text)

	reply, err = hub.HandleFrame(ctx, a.Pseudonym, models.ChatMessage{Type: "stop"})
	require.NoError(t, err)
	assert.Equal(t, "no_room", reply.Text)

	reply, err = hub.HandleFrame(ctx, a.Pseudonym, models.ChatMessage{Type: "dance"})
	require.NoError(t, err)
	assert.Equal(t, "unknown_command", reply.Text)

	bus.AssertCalled(t, "Publish", mock.Anything, notificationFor(models.NotificationStatus, a.Pseudonym))
}

func receive(t *testing.T, c *MockClient) models.Notification {
	t.Helper()
	select {
	case n := <-c.RecvChannel:
		return n
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive a notification", c.UserID)
	}
	return models.Notification{}
}

func TestManager_RunDeliversToRegisteredClient(t *testing.T) {
	e := newEngine()
	bus := chathub.NewLocalBus()
	hub := chathub.NewManagerService(e.matcher, bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, bus) }()

	client := newMockClient("user_B")
	client.On("Close").Return().Maybe()
	hub.Register(client)

	require.NoError(t, bus.Publish(ctx, models.Notification{
		Type:      models.NotificationMessage,
		Recipient: "user_B",
		Text:      "hello",
	}))
	n := receive(t, client)
	assert.Equal(t, "hello", n.Text)

	cancel()
	require.NoError(t, <-done)
	client.AssertCalled(t, "Close")
}

func TestManager_RunRestoresMissingClient(t *testing.T) {
	e := newEngine()
	bus := chathub.NewLocalBus()
	hub := chathub.NewManagerService(e.matcher, bus)

	restored := newMockClient("user_T")
	restored.On("Run").Return().Once()
	restored.On("Close").Return().Maybe()
	hub.SetClientRestorer(func(ctx context.Context, pseudonym string) (chathub.Client, error) {
		if pseudonym != "user_T" {
			return nil, nil
		}
		return restored, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, bus)

	// Register a probe so the subscription is known to be live.
	probe := newMockClient("probe")
	probe.On("Close").Return().Maybe()
	hub.Register(probe)

	require.NoError(t, bus.Publish(ctx, models.Notification{Type: models.NotificationMessage, Recipient: "nobody"}))
	require.NoError(t, bus.Publish(ctx, models.Notification{Type: models.NotificationPartnerLeft, Recipient: "user_T"}))

	n := receive(t, restored)
	assert.Equal(t, models.NotificationPartnerLeft, n.Type)
	restored.AssertExpectations(t)
}

func TestManager_UnregisterClosesClient(t *testing.T) {
	e := newEngine()
	bus := chathub.NewLocalBus()
	hub := chathub.NewManagerService(e.matcher, bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, bus) }()

	client := newMockClient("user_A")
	client.On("Close").Return()
	hub.Register(client)
	hub.Unregister(client)

	cancel()
	require.NoError(t, <-done)
	client.AssertNumberOfCalls(t, "Close", 1)
}

func TestManager_RegisterAfterStop(t *testing.T) {
	e := newEngine()
	bus := chathub.NewLocalBus()
	hub := chathub.NewManagerService(e.matcher, bus)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, hub.Run(ctx, bus))

	client := newMockClient("late")
	client.On("Close").Return().Once()

	hub.Register(client)

	client.AssertExpectations(t)
}

func TestSetClientRestorer(t *testing.T) {
	hub := chathub.NewManagerService(newEngine().matcher, nil)
	hub.SetClientRestorer(func(ctx context.Context, pseudonym string) (chathub.Client, error) {
		return newMockClient(pseudonym), nil
	})
	assert.NotNil(t, hub.ClientRestorer)
}
