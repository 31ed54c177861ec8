// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, processing them,
// and communicating with the central chat hub.
package telegram

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/moderation"
	"anonchat/backend/internal/registry"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API the bot writes through.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotService is responsible for receiving Telegram updates and routing them to the hub.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Sender    Sender
	Hub       *chathub.ManagerService
	Registry  *registry.Service
	Reports   chathub.Reporter
	Localizer *localization.Localizer
	Log       *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, hub *chathub.ManagerService, reg *registry.Service, reports chathub.Reporter, l *localization.Localizer) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Debug = false
	hub.Log.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI:    bot,
		Sender:    bot,
		Hub:       hub,
		Registry:  reg,
		Reports:   reports,
		Localizer: l,
		Log:       hub.Log,
	}, nil
}

// ExternalID is the registry key of a Telegram chat.
func ExternalID(chatID int64) string {
	return config.TelegramIDPrefix + strconv.FormatInt(chatID, 10)
}

// ChatIDFromExternal reverses ExternalID. ok is false for other transports.
func ChatIDFromExternal(externalID string) (int64, bool) {
	raw, found := strings.CutPrefix(externalID, config.TelegramIDPrefix)
	if !found {
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return chatID, true
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	s.Log.Info("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				s.HandleMessage(ctx, update.Message)
			}
		}
	}
}

// HandleMessage processes one incoming message: a command or text to relay.
func (s *BotService) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}

	p, err := s.Registry.Resolve(ctx, ExternalID(chatID))
	if err != nil {
		s.Log.Error("failed to resolve participant", zap.Int64("chat_id", chatID), zap.Error(err))
		s.reply(chatID, lang, "internal_error")
		return
	}

	if msg.IsCommand() {
		s.handleCommand(ctx, p, msg, lang)
		return
	}

	if msg.Text == "" {
		s.reply(chatID, lang, "text_only")
		return
	}

	_, err = s.Hub.RelayText(ctx, p, msg.Text)
	switch {
	case err == nil, errors.Is(err, chathub.ErrEmptyMessage):
	case errors.Is(err, chathub.ErrNotInRoom):
		s.reply(chatID, lang, "not_in_chat")
	default:
		s.Log.Error("failed to relay message", zap.String("pseudonym", p.Pseudonym), zap.Error(err))
		s.reply(chatID, lang, "internal_error")
	}
}

func (s *BotService) handleCommand(ctx context.Context, p *models.Participant, msg *tgbotapi.Message, lang string) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		s.reply(chatID, lang, "welcome")

	case "find":
		res, err := s.Hub.Find(ctx, p)
		if err != nil {
			s.fail(chatID, lang, p, "find", err)
			return
		}
		s.reply(chatID, lang, findReply[res.Outcome])

	case "stopchat", "stop":
		wasMatching := p.Status == models.StatusMatching
		res, err := s.Hub.Stop(ctx, p)
		if err != nil {
			s.fail(chatID, lang, p, "stop", err)
			return
		}
		switch {
		case res.Outcome == chathub.EndClosed:
			s.reply(chatID, lang, "chat_ended")
		case wasMatching:
			s.reply(chatID, lang, "search_cancelled")
		default:
			s.reply(chatID, lang, "no_active_chat")
		}

	case "report":
		if args == "" {
			s.reply(chatID, lang, "report_usage")
			return
		}
		_, err := s.Reports.ReportPartner(ctx, p, args)
		switch {
		case err == nil:
			s.reply(chatID, lang, "report_sent")
		case errors.Is(err, chathub.ErrNotInRoom):
			s.reply(chatID, lang, "report_not_in_chat")
		case errors.Is(err, moderation.ErrInvalidReport):
			s.reply(chatID, lang, "report_usage")
		default:
			s.fail(chatID, lang, p, "report", err)
		}

	case "feedback":
		if args == "" {
			s.reply(chatID, lang, "feedback_usage")
			return
		}
		s.Log.Info("feedback received", zap.String("pseudonym", p.Pseudonym), zap.String("text", args))
		s.reply(chatID, lang, "feedback_thanks")

	default:
		s.reply(chatID, lang, "unknown_command")
	}
}

var findReply = map[chathub.MatchOutcome]string{
	chathub.MatchBanned:        "banned",
	chathub.MatchAlreadyActive: "already_in_chat",
	chathub.MatchMatched:       "match_found",
	chathub.MatchQueued:        "searching",
}

func (s *BotService) fail(chatID int64, lang string, p *models.Participant, op string, err error) {
	s.Log.Error("command failed", zap.String("command", op), zap.String("pseudonym", p.Pseudonym), zap.Error(err))
	s.reply(chatID, lang, "internal_error")
}

func (s *BotService) reply(chatID int64, lang, key string) {
	msg := tgbotapi.NewMessage(chatID, s.Localizer.GetString(lang, key))
	if _, err := s.Sender.Send(msg); err != nil {
		s.Log.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.String("key", key), zap.Error(err))
	}
}

// RestoreClient is the hub's ClientRestorer: it builds a Telegram client for
// pseudonyms that belong to a Telegram chat.
func (s *BotService) RestoreClient(ctx context.Context, pseudonym string) (chathub.Client, error) {
	p, err := s.Registry.ByPseudonym(ctx, pseudonym)
	if err != nil || p == nil {
		return nil, err
	}
	chatID, ok := ChatIDFromExternal(p.ExternalID)
	if !ok {
		return nil, nil
	}
	return NewClient(pseudonym, chatID, s.Sender, s.Localizer, s.Log), nil
}
