package telegram

import (
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Client реалізує інтерфейс chathub.Client
type Client struct {
	Pseudonym string
	ChatID    int64
	Send      chan models.Notification
	Sender    Sender
	Localizer *localization.Localizer
	Log       *zap.Logger

	closeOnce sync.Once
}

func NewClient(pseudonym string, chatID int64, sender Sender, l *localization.Localizer, log *zap.Logger) *Client {
	return &Client{
		Pseudonym: pseudonym,
		ChatID:    chatID,
		Send:      make(chan models.Notification, 32),
		Sender:    sender,
		Localizer: l,
		Log:       log,
	}
}

func (c *Client) GetUserID() string                           { return c.Pseudonym }
func (c *Client) GetSendChannel() chan<- models.Notification { return c.Send }

// Run запускає 'write pump'. 'Read pump' обробляється централізовано.
func (c *Client) Run() {
	go c.writePump()
}

// Close закриває Send канал
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// writePump слухає канал Send і надсилає повідомлення в Telegram
func (c *Client) writePump() {
	for n := range c.Send {
		text := c.Render(n)
		if text == "" {
			continue
		}
		if _, err := c.Sender.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
			c.Log.Warn("failed to send telegram message",
				zap.String("pseudonym", c.Pseudonym),
				zap.String("type", string(n.Type)),
				zap.Error(err))
		}
	}
}

// Render returns the chat text for n, or "" when Telegram has nothing to show.
func (c *Client) Render(n models.Notification) string {
	switch n.Type {
	case models.NotificationMatchFound:
		return c.Localizer.GetString("", "match_found")
	case models.NotificationPartnerLeft:
		return c.Localizer.GetString("", "partner_left")
	case models.NotificationMessage:
		return fmt.Sprintf("%s: %s", c.Localizer.GetString("", "anonymous_prefix"), n.Text)
	}
	return ""
}
