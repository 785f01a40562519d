package discordadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mrwong99/rollbot/internal/command"
)

// Config holds the settings needed to run the Discord adapter.
type Config struct {
	// Token is the Discord bot token (e.g. "Bot MTIz...").
	Token string

	// ClientType identifies this transport to the storage layer, e.g.
	// "discord". Every tenant id handled by this Bot is scoped under it.
	ClientType string

	// AdminRoleID gates mutating commands (SetCommandPrefix, AddRollPrefix,
	// RemoveRollPrefix, AddAlias, RemoveAlias). Empty permits everyone.
	AdminRoleID string

	// EvalTimeout bounds how long a single message's dispatch may take,
	// independent of the roll executor's own per-job timeout.
	EvalTimeout time.Duration
}

// Bot owns the Discord gateway connection and feeds inbound messages to a
// command.Dispatcher.
type Bot struct {
	mu         sync.RWMutex
	session    *discordgo.Session
	dispatcher *command.Dispatcher
	perms      *PermissionChecker
	timeout    time.Duration
	closeOnce  sync.Once
}

// New creates a Bot and opens the Discord gateway connection.
func New(cfg Config, dispatcher *command.Dispatcher) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discordadapter: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsDirectMessages

	timeout := cfg.EvalTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	b := &Bot{
		session:    session,
		dispatcher: dispatcher,
		perms:      NewPermissionChecker(cfg.AdminRoleID),
		timeout:    timeout,
	}
	session.AddHandler(b.onMessageCreate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discordadapter: open session: %w", err)
	}
	return b, nil
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discordadapter: close session: %w", err)
		}
		slog.Info("discordadapter: bot closed")
	})
	return closeErr
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	id := m.GuildID
	if id == "" {
		id = m.ChannelID
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	checkPermission := command.PermissionFunc(func(context.Context) bool { return b.perms.IsAdmin(m) })

	result, matched, err := b.dispatcher.Eval(ctx, id, m.Content, checkPermission)
	if err != nil {
		slog.Error("discordadapter: dispatch failed", "channel", m.ChannelID, "err", err)
		return
	}
	if !matched {
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, Render(result)); err != nil {
		slog.Warn("discordadapter: failed to send reply", "channel", m.ChannelID, "err", err)
	}
}
