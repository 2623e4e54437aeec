package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// TelegramConfig configures a TelegramBridge.
type TelegramConfig struct {
	Token          string
	AdminChatIDs   map[string]bool
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// TelegramBridge is the reference Bridge implementation, using long
// polling against the Telegram Bot API.
type TelegramBridge struct {
	cfg    TelegramConfig
	logger *slog.Logger

	mu        sync.RWMutex
	client    *tgbot.Bot
	connected bool
}

// NewTelegramBridge builds a bridge; Token is required.
func NewTelegramBridge(cfg TelegramConfig) (*TelegramBridge, error) {
	if cfg.Token == "" {
		return nil, errkind.New(errkind.Config, "telegram bot token is required", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &TelegramBridge{cfg: cfg, logger: cfg.Logger}, nil
}

// Name identifies this bridge.
func (b *TelegramBridge) Name() string { return "telegram" }

// Connect starts long-polling Telegram updates, delivering each
// inbound text message to handler until ctx is canceled.
func (b *TelegramBridge) Connect(ctx context.Context, handler InboundHandler) error {
	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(func(ctx context.Context, botAPI *tgbot.Bot, update *models.Update) {
			b.handleUpdate(ctx, update, handler)
		}),
	}

	client, err := tgbot.New(b.cfg.Token, opts...)
	if err != nil {
		return errkind.New(errkind.Bridge, "create telegram client", err)
	}

	b.mu.Lock()
	b.client = client
	b.connected = true
	b.mu.Unlock()

	client.Start(ctx)

	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

func (b *TelegramBridge) handleUpdate(ctx context.Context, update *models.Update, handler InboundHandler) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	isGroup := update.Message.Chat.Type == models.ChatTypeGroup || update.Message.Chat.Type == models.ChatTypeSupergroup
	var senderID string
	if update.Message.From != nil {
		senderID = strconv.FormatInt(update.Message.From.ID, 10)
	}

	dc := domain.DispatchContext{
		ChatID:   chatID,
		IsGroup:  isGroup,
		IsAdmin:  b.cfg.AdminChatIDs[senderID],
		SenderID: senderID,
	}
	msg := domain.Message{
		ChatID:    chatID,
		Sender:    senderID,
		Role:      domain.RoleUser,
		Text:      update.Message.Text,
		Timestamp: time.Unix(int64(update.Message.Date), 0).UTC(),
	}
	handler(ctx, msg, dc)
}

// Send delivers text to chatID.
func (b *TelegramBridge) Send(ctx context.Context, chatID, text string) error {
	b.mu.RLock()
	client := b.client
	connected := b.connected
	b.mu.RUnlock()

	if !connected || client == nil {
		return &ErrNotConnected{Bridge: b.Name()}
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return errkind.New(errkind.Bridge, fmt.Sprintf("invalid telegram chat id %q", chatID), err)
	}

	_, err = client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: id,
		Text:   text,
	})
	if err != nil {
		return errkind.New(errkind.Bridge, "send telegram message", err)
	}
	return nil
}

// Close marks the bridge disconnected, so later Send calls return
// ErrNotConnected; the polling loop itself exits when Connect's context
// is canceled.
func (b *TelegramBridge) Close() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}
