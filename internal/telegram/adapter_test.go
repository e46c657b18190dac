package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/internal/gateway"
	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/state"
	"github.com/user/gophersearch/internal/types"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	actions  []tgbotapi.ChatActionConfig
	failMode bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := c.(tgbotapi.MessageConfig)
	if b.failMode && msg.ParseMode != "" {
		return tgbotapi.Message{}, errors.New("can't parse entities")
	}
	b.sent = append(b.sent, msg)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, c.(tgbotapi.ChatActionConfig))
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (b *fakeBot) StopReceivingUpdates() {}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent {
		out = append(out, m.Text)
	}
	return out
}

// fakeGateway runs a turn inline: one think event, then the answer.
type fakeGateway struct {
	events []*types.InboundEvent
	err    error
}

func (g *fakeGateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error {
	if g.err != nil {
		return g.err
	}
	g.events = append(g.events, event)
	run := gateway.NewRun(event.SessionKey.SessionID(), event)
	for _, opt := range opts {
		opt(run)
	}
	_ = run.Emitter.Emit(ctx, runtime.Event{Type: runtime.EventThink, Text: "searching"})
	_ = run.Emitter.Emit(ctx, runtime.Event{Type: runtime.EventChunk, Text: "partial"})
	run.OnComplete("answer to " + event.Text)
	return nil
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 7},
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestHandleMessage(t *testing.T) {
	bot := &fakeBot{}
	gw := &fakeGateway{}
	a := NewWithBot(bot, gw, state.NewFileStore(t.TempDir()))

	a.handleMessage(context.Background(), message("what is htmx?"))

	require.Len(t, gw.events, 1)
	assert.Equal(t, types.SessionKey("telegram:42:7"), gw.events[0].SessionKey)
	assert.Equal(t, "42", gw.events[0].UserID)
	assert.Equal(t, []string{"answer to what is htmx?"}, bot.texts())
	require.Len(t, bot.actions, 1)
	assert.Equal(t, tgbotapi.ChatTyping, bot.actions[0].Action)
}

func TestHandleMessageGatewayError(t *testing.T) {
	bot := &fakeBot{}
	a := NewWithBot(bot, &fakeGateway{err: errors.New("queue not running")}, state.NewFileStore(t.TempDir()))
	a.handleMessage(context.Background(), message("hi"))
	assert.Equal(t, []string{"Sorry, I encountered an error processing your message."}, bot.texts())
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{}
	store := state.NewFileStore(t.TempDir())
	a := NewWithBot(bot, &fakeGateway{}, store)

	a.handleMessage(ctx, message("/status"))
	assert.Equal(t, "No conversation yet.", bot.texts()[0])

	_, _, err := store.CreateSession(ctx, "telegram:42:7", types.DefaultSessionTitle)
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, &types.Turn{SessionID: "telegram:42:7", Role: types.RoleUser, Content: "hi"}))

	a.handleMessage(ctx, message("/status"))
	assert.Equal(t, "Session: telegram:42:7\nMessages: 1", bot.texts()[1])

	a.handleMessage(ctx, message("/new"))
	_, err = store.GetSession(ctx, "telegram:42:7")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	a.handleMessage(ctx, message("/bogus"))
	assert.Contains(t, bot.texts()[3], "Unknown command")
}

func TestSendFallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{failMode: true}
	a := NewWithBot(bot, &fakeGateway{}, nil)
	a.sendResponse(7, "*unbalanced")
	require.Len(t, bot.sent, 1)
	assert.Empty(t, bot.sent[0].ParseMode)
}

func TestDeliver(t *testing.T) {
	bot := &fakeBot{}
	a := NewWithBot(bot, &fakeGateway{}, nil)

	require.NoError(t, a.Deliver(context.Background(), "telegram:42:-100123", "digest"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(-100123), bot.sent[0].ChatID)

	assert.Error(t, a.Deliver(context.Background(), "task:daily", "digest"))
	assert.Error(t, a.Deliver(context.Background(), "telegram:42:abc", "digest"))
}

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	assert.Equal(t, []string{short}, splitMessage(short))
}

func TestSplitMessageLong(t *testing.T) {
	parts := splitMessage(strings.Repeat("a", 5000))
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], maxTelegramMessage)
}

func TestSplitMessageRuneBoundary(t *testing.T) {
	text := "a" + strings.Repeat("é", 3000)
	parts := splitMessage(text)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p))
		assert.LessOrEqual(t, len(p), maxTelegramMessage)
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestBuildSessionKey(t *testing.T) {
	assert.Equal(t, types.SessionKey("telegram:12345:67890"), buildSessionKey(12345, 67890))
}
