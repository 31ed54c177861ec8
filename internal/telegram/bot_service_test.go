package telegram_test

import (
	"anonchat/backend/internal/anonymizer"
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/moderation"
	"anonchat/backend/internal/registry"
	"anonchat/backend/internal/storage"
	"anonchat/backend/internal/telegram"
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type botFixture struct {
	bot      *telegram.BotService
	sender   *MockSender
	store    *storage.MemoryStore
	registry *registry.Service
	mod      *moderation.Service
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	reg := registry.NewService(store, anonymizer.New("test-secret"))
	matcher := chathub.NewMatcherService(store, zap.NewNop(), nil)
	hub := chathub.NewManagerService(matcher, chathub.NewLocalBus())
	mod := moderation.NewService(reg, matcher, hub)
	l, err := localization.Default("en")
	require.NoError(t, err)

	sender := newMockSender()
	return &botFixture{
		bot: &telegram.BotService{
			Sender:    sender,
			Hub:       hub,
			Registry:  reg,
			Reports:   mod,
			Localizer: l,
			Log:       zap.NewNop(),
		},
		sender:   sender,
		store:    store,
		registry: reg,
		mod:      mod,
	}
}

// command builds a message the way Telegram marks bot commands.
func command(chatID int64, text string) *tgbotapi.Message {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}
	return &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		},
		From: &tgbotapi.User{ID: chatID, LanguageCode: "en"},
		Chat: tgbotapi.Chat{ID: chatID},
	}
}

func text(chatID int64, body string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: body,
		From: &tgbotapi.User{ID: chatID, LanguageCode: "en"},
		Chat: tgbotapi.Chat{ID: chatID},
	}
}

func (f *botFixture) lastReply(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	select {
	case msg := <-f.sender.Sent:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no reply sent")
	}
	return tgbotapi.MessageConfig{}
}

func (f *botFixture) participant(t *testing.T, chatID int64) *models.Participant {
	t.Helper()
	p, err := f.registry.Resolve(context.Background(), telegram.ExternalID(chatID))
	require.NoError(t, err)
	return p
}

func TestBot_Start(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleMessage(context.Background(), command(1, "/start"))

	reply := f.lastReply(t)
	assert.Equal(t, int64(1), reply.ChatID)
	assert.Contains(t, reply.Text, "/find")
}

func TestBot_FindStopFlow(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, command(1, "/find"))
	assert.Equal(t, "Looking for a partner... Please wait.", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(2, "/find"))
	assert.Equal(t, "Partner found! You can start writing.", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(2, "/find"))
	assert.Equal(t, "You are already in a chat. Send a message or /stopchat.", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, text(1, "hello"))
	history, err := f.store.ListRooms(ctx, true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	messages, err := f.store.GetChatHistory(ctx, history[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, f.participant(t, 1).Pseudonym, messages[0].SenderPseudonym)

	f.bot.HandleMessage(ctx, command(1, "/stopchat"))
	assert.Equal(t, "Chat ended.", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(1, "/stopchat"))
	assert.Equal(t, "You have no active chat. To search: /find", f.lastReply(t).Text)
}

func TestBot_StopWhileSearching(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	f.bot.HandleMessage(ctx, command(1, "/find"))
	f.lastReply(t)

	f.bot.HandleMessage(ctx, command(1, "/stopchat"))

	assert.Equal(t, "Search cancelled.", f.lastReply(t).Text)
	assert.Equal(t, models.StatusFree, f.participant(t, 1).Status)
}

func TestBot_TextOutsideChat(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleMessage(context.Background(), text(1, "anyone?"))

	assert.Equal(t, "You are not in a chat. Press /find", f.lastReply(t).Text)
}

func TestBot_NonText(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleMessage(context.Background(), text(1, ""))

	assert.Equal(t, "Only text messages are supported for now.", f.lastReply(t).Text)
}

func TestBot_Banned(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	p := f.participant(t, 1)
	_, err := f.mod.Ban(ctx, p.Pseudonym)
	require.NoError(t, err)

	f.bot.HandleMessage(ctx, command(1, "/find"))

	assert.Equal(t, "Your account has been restricted by a moderator.", f.lastReply(t).Text)
}

func TestBot_Report(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, command(1, "/report"))
	assert.Equal(t, "Usage: /report reason", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(1, "/report spam"))
	assert.Equal(t, "Reports can only be sent during an active chat.", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(1, "/find"))
	f.lastReply(t)
	f.bot.HandleMessage(ctx, command(2, "/find"))
	f.lastReply(t)

	f.bot.HandleMessage(ctx, command(1, "/report spam links"))
	assert.Equal(t, "Your report was sent to a moderator.", f.lastReply(t).Text)

	reports, err := f.store.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "spam links", reports[0].Reason)
	assert.Equal(t, f.participant(t, 2).Pseudonym, reports[0].ReportedPseudonym)
}

func TestBot_Feedback(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, command(1, "/feedback"))
	assert.Equal(t, "Usage: /feedback text", f.lastReply(t).Text)

	f.bot.HandleMessage(ctx, command(1, "/feedback great bot"))
	assert.Equal(t, "Thanks for the feedback! We will consider it in future versions.", f.lastReply(t).Text)
}

func TestBot_UnknownCommand(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleMessage(context.Background(), command(1, "/dance"))

	assert.Equal(t, "Unknown command. Command list: /start", f.lastReply(t).Text)
}

func TestBot_RestoreClient(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	p := f.participant(t, 42)
	web, err := f.registry.Resolve(ctx, "ws:abc")
	require.NoError(t, err)

	client, err := f.bot.RestoreClient(ctx, p.Pseudonym)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, p.Pseudonym, client.GetUserID())
	assert.Equal(t, int64(42), client.(*telegram.Client).ChatID)

	none, err := f.bot.RestoreClient(ctx, web.Pseudonym)
	require.NoError(t, err)
	assert.Nil(t, none, "web participants are not Telegram chats")

	missing, err := f.bot.RestoreClient(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExternalIDRoundTrip(t *testing.T) {
	id := telegram.ExternalID(-100123)
	assert.Equal(t, "tg:-100123", id)

	chatID, ok := telegram.ChatIDFromExternal(id)
	assert.True(t, ok)
	assert.Equal(t, int64(-100123), chatID)

	_, ok = telegram.ChatIDFromExternal("ws:1")
	assert.False(t, ok)
}
