// Package discord implements the Notifier port with Discord direct messages.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Notifier)(nil)

// dmSession is the subset of *discordgo.Session needed to send direct messages.
type dmSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier sends private messages through a Discord session.
type Notifier struct {
	session dmSession
	logger  *slog.Logger
}

// NewNotifier wraps a Discord session. *discordgo.Session satisfies dmSession.
func NewNotifier(session dmSession, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{session: session, logger: logger.With("adapter", "discord_dm")}
}

// SendPrivate opens (or reuses) the DM channel with userID and posts text.
// Users who block DMs from server members yield driven.ErrRecipientUnreachable.
func (n *Notifier) SendPrivate(ctx context.Context, userID, text string) error {
	ch, err := n.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return n.wrap("open dm channel", userID, err)
	}

	if _, err := n.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return n.wrap("send dm", userID, err)
	}
	return nil
}

func (n *Notifier) wrap(op, userID string, err error) error {
	if isUnreachable(err) {
		n.logger.Info("user does not accept direct messages", "user_id", userID)
		return fmt.Errorf("%s for %s: %w: %w", op, userID, driven.ErrRecipientUnreachable, err)
	}
	return fmt.Errorf("%s for %s: %w", op, userID, err)
}

// isUnreachable reports whether Discord refused the DM because of the
// recipient's privacy settings.
func isUnreachable(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}
