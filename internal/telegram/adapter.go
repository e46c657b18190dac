package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/gophersearch/internal/gateway"
	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/types"
)

const maxTelegramMessage = 4096

// Bot is the part of the Telegram Bot API the adapter uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Submitter queues a turn for a transport-keyed conversation.
type Submitter interface {
	HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error
}

// Adapter bridges Telegram chats to the gateway. Each chat is one
// conversation; research progress shows up as a typing indicator and the
// answer arrives as one or more messages.
type Adapter struct {
	bot     Bot
	gateway Submitter
	store   types.ConversationStore
}

// New creates a Telegram adapter for the bot with the given token.
func New(token string, gw Submitter, store types.ConversationStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return NewWithBot(bot, gw, store), nil
}

// NewWithBot creates an adapter around an existing bot client.
func NewWithBot(bot Bot, gw Submitter, store types.ConversationStore) *Adapter {
	return &Adapter{bot: bot, gateway: gw, store: store}
}

// Start begins long-polling for Telegram updates. It returns when ctx is done.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	event := &types.InboundEvent{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, chatID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Text:       msg.Text,
	}

	err := a.gateway.HandleInbound(ctx, event,
		gateway.WithEmitter(a.progress(chatID)),
		gateway.WithOnComplete(func(response string) {
			a.sendResponse(chatID, response)
		}),
	)
	if err != nil {
		slog.Error("handle inbound failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

// progress turns think events into a typing indicator. Content chunks are
// dropped; the complete answer is sent once the turn finishes.
func (a *Adapter) progress(chatID int64) runtime.Emitter {
	return runtime.EmitterFunc(func(_ context.Context, ev runtime.Event) error {
		if ev.Type != runtime.EventThink {
			return nil
		}
		if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			slog.Debug("send chat action failed", "chat_id", chatID, "error", err)
		}
		return nil
	})
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id := buildSessionKey(msg.From.ID, chatID).SessionID()

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Gophersearch. Ask me anything and I'll search the web when it helps.")

	case "new":
		if err := a.store.DeleteSession(ctx, id); err != nil && !errors.Is(err, types.ErrSessionNotFound) {
			slog.Error("clear session failed", "session_id", string(id), "error", err)
			a.sendResponse(chatID, "Could not clear the conversation.")
			return
		}
		a.sendResponse(chatID, "Starting a new session. The previous conversation has been cleared.")

	case "status":
		sess, err := a.store.GetSession(ctx, id)
		if errors.Is(err, types.ErrSessionNotFound) {
			a.sendResponse(chatID, "No conversation yet.")
			return
		}
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nMessages: %d", sess.ID, sess.TurnCount))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /status")
	}
}

// Deliver sends message to the chat named by a "telegram:<user>:<chat>"
// session key.
func (a *Adapter) Deliver(_ context.Context, sessionKey, message string) error {
	chatID, err := parseChatID(sessionKey)
	if err != nil {
		return err
	}
	a.sendResponse(chatID, message)
	return nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

// splitMessage cuts text into Telegram-sized parts on rune boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end >= len(text) {
			end = len(text)
		} else {
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

func parseChatID(sessionKey string) (int64, error) {
	parts := strings.Split(sessionKey, ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return 0, fmt.Errorf("not a telegram session key: %q", sessionKey)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad chat id in %q: %w", sessionKey, err)
	}
	return id, nil
}
