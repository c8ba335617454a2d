// Package discord is the chat command surface of the bot. It parses prefixed
// text commands from Discord messages and calls the application services.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ericfisherdev/johnnycage/internal/application"
	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
	"github.com/ericfisherdev/johnnycage/internal/observability"
)

const commandTimeout = 30 * time.Second

// session is the subset of *discordgo.Session used by the bot, so tests can
// substitute a fake.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// NewSession creates a Discord session with the intents the bot needs to read
// prefixed commands in guild channels and DMs.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	return dg, nil
}

// Bot routes chat commands to the link and media services.
type Bot struct {
	session session
	links   *application.LinkService
	media   *application.MediaService
	prefix  string
	metrics *observability.Metrics
	logger  *slog.Logger

	ctx      context.Context
	handlers []func()
	wg       sync.WaitGroup
}

// NewBot creates a Bot with all required dependencies. *discordgo.Session
// satisfies the session interface.
func NewBot(
	s session,
	links *application.LinkService,
	media *application.MediaService,
	prefix string,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		session: s,
		links:   links,
		media:   media,
		prefix:  prefix,
		metrics: metrics,
		logger:  logger.With("component", "discord_bot"),
		ctx:     context.Background(),
	}
}

// Start registers event handlers and opens the gateway connection. Link
// attempts started by commands live until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	b.handlers = append(b.handlers,
		b.session.AddHandler(b.handleReady),
		b.session.AddHandler(b.handleMessageCreate),
	)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection and waits for link watchers to post
// their final replies.
func (b *Bot) Stop() error {
	for _, remove := range b.handlers {
		remove()
	}
	b.handlers = nil

	err := b.session.Close()
	b.wg.Wait()
	if err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

func (b *Bot) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	b.logger.Info("discord connected",
		"user", r.User.Username,
		"user_id", r.User.ID,
		"guilds", len(r.Guilds),
	)
}

func (b *Bot) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}

	name, args, ok := parseCommand(b.prefix, m.Content)
	if !ok {
		return
	}

	start := time.Now()
	status := b.dispatch(m.ChannelID, m.Author.ID, name, args)
	b.metrics.RecordCommand(name, status, time.Since(start))
}

// parseCommand splits "<prefix><name> <args>" into a lower-case name and the
// trimmed remainder.
func parseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, prefix)
	if rest == "" || strings.HasPrefix(rest, " ") {
		return "", "", false
	}

	name, args, _ = strings.Cut(rest, " ")
	if i := strings.IndexAny(name, "\n\t"); i >= 0 {
		args = name[i:] + " " + args
		name = name[:i]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// dispatch runs one command and returns "ok", "error" or "unknown" for metrics.
func (b *Bot) dispatch(channelID, userID, name, args string) (status string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("command panicked", "command", name, "user_id", userID, "panic", r)
			b.reply(channelID, msgBroke)
			status = "error"
		}
	}()

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var err error
	switch name {
	case "search":
		err = b.search(ctx, channelID, args)
	case "request":
		err = b.request(ctx, channelID, userID, args)
	case "link":
		b.link(channelID, userID)
	case "unlink":
		err = b.unlink(ctx, channelID, userID)
	case "status":
		err = b.status(ctx, channelID, userID)
	case "help":
		b.reply(channelID, msgHelp(b.prefix))
	default:
		b.reply(channelID, msgUnknownCommand(b.prefix))
		return "unknown"
	}

	if err != nil {
		b.logger.Error("command failed", "command", name, "user_id", userID, "error", err)
		return "error"
	}
	return "ok"
}

func (b *Bot) search(ctx context.Context, channelID, query string) error {
	if query == "" {
		b.reply(channelID, msgSearchUsage(b.prefix))
		return nil
	}

	results, err := b.media.Search(ctx, query)
	if err != nil {
		b.reply(channelID, msgSearchError)
		return err
	}
	if len(results) == 0 {
		b.reply(channelID, msgNoResults)
		return nil
	}

	if _, err := b.session.ChannelMessageSendEmbed(channelID, searchEmbed(query, results)); err != nil {
		return fmt.Errorf("send search embed: %w", err)
	}
	b.reply(channelID, msgSearchQuip)
	return nil
}

func (b *Bot) request(ctx context.Context, channelID, userID, args string) error {
	tmdbID, err := strconv.Atoi(args)
	if err != nil || tmdbID <= 0 {
		b.reply(channelID, msgRequestUsage(b.prefix))
		return nil
	}

	res, err := b.media.Request(ctx, userID, tmdbID)
	var reqErr *driven.RequestError
	switch {
	case err == nil && res.Status == model.RequestStatusAlreadyRequested:
		b.reply(channelID, msgAlreadyAsked)
	case err == nil:
		b.reply(channelID, msgRequested(res))
	case errors.Is(err, application.ErrNotLinked):
		b.reply(channelID, msgNotLinked(b.prefix))
	case errors.Is(err, driven.ErrMediaNotFound):
		b.reply(channelID, msgNotFound)
	case errors.As(err, &reqErr):
		b.reply(channelID, msgRequestFailed(reqErr.StatusCode, reqErr.Detail))
		return err
	case errors.Is(err, driven.ErrCatalogUnavailable):
		b.reply(channelID, msgCatalogDown)
		return err
	default:
		b.reply(channelID, msgBroke)
		return err
	}
	return nil
}

// link starts an attempt and hands it to a watcher goroutine so the event
// handler returns immediately.
func (b *Bot) link(channelID, userID string) {
	attempt := b.links.Start(b.ctx, userID)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.watchLink(channelID, attempt)
	}()
}

func (b *Bot) watchLink(channelID string, attempt *application.LinkAttempt) {
	select {
	case <-attempt.Awaiting():
		b.reply(channelID, msgLinkDMSent)
	case <-attempt.Done():
		// The code may have gone out just before the attempt ended.
		select {
		case <-attempt.Awaiting():
			b.reply(channelID, msgLinkDMSent)
		default:
		}
	}

	out := attempt.Outcome()
	if out.State != model.LinkStateFailed {
		// linked and expired are reported by DM.
		return
	}

	switch out.Reason {
	case model.FailReasonStartError:
		b.reply(channelID, msgLinkStartFailed)
	case model.FailReasonNotifyError:
		b.reply(channelID, msgDMRefused(b.prefix))
	case model.FailReasonPollError:
		b.reply(channelID, msgPollFailed(b.prefix))
	case model.FailReasonStorageError:
		b.reply(channelID, msgBroke)
	case model.FailReasonCanceled:
		// Superseded, unlinked or shutting down.
	}
}

func (b *Bot) unlink(ctx context.Context, channelID, userID string) error {
	if err := b.links.Unlink(ctx, userID); err != nil {
		b.reply(channelID, msgBroke)
		return err
	}
	b.reply(channelID, msgUnlinked)
	return nil
}

func (b *Bot) status(ctx context.Context, channelID, userID string) error {
	if b.links.Pending(userID) {
		b.reply(channelID, msgLinkPending)
		return nil
	}

	rec, err := b.links.Status(ctx, userID)
	if err != nil {
		b.reply(channelID, msgBroke)
		return err
	}
	if rec == nil || !rec.Linked {
		b.reply(channelID, msgNoLink(b.prefix))
		return nil
	}
	b.reply(channelID, msgLinkedSince(rec.LinkedAt))
	return nil
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		b.logger.Warn("failed to send reply", "channel_id", channelID, "error", err)
	}
}
