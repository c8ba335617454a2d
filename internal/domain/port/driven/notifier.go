package driven

import (
	"context"
	"errors"
)

// ErrRecipientUnreachable is returned when the chat platform refuses to deliver
// a private message, typically because the user has DMs disabled.
var ErrRecipientUnreachable = errors.New("recipient does not accept private messages")

// Notifier delivers private messages to chat users.
type Notifier interface {
	SendPrivate(ctx context.Context, userID, text string) error
}
