package model

import "time"

// LinkState is a state of the Plex account-linking state machine.
type LinkState string

const (
	LinkStateIdle         LinkState = "idle"
	LinkStatePinRequested LinkState = "pin_requested"
	LinkStateAwaitingUser LinkState = "awaiting_user"
	LinkStateLinked       LinkState = "linked"
	LinkStateExpired      LinkState = "expired"
	LinkStateFailed       LinkState = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s LinkState) Terminal() bool {
	return s == LinkStateLinked || s == LinkStateExpired || s == LinkStateFailed
}

// FailReason explains a LinkStateFailed outcome.
type FailReason string

const (
	FailReasonNone         FailReason = ""
	FailReasonStartError   FailReason = "start_error"
	FailReasonNotifyError  FailReason = "notify_error"
	FailReasonPollError    FailReason = "poll_error"
	FailReasonStorageError FailReason = "storage_error"
	FailReasonCanceled     FailReason = "canceled"
)

// PinGrant is what the linking service returns when a PIN is created.
// ExpiresIn is zero when the service did not say.
type PinGrant struct {
	ID        string
	Code      string
	ExpiresIn time.Duration
}

// PinStatus is the result of one status check. Token is empty while the user
// has not yet entered the code.
type PinStatus struct {
	Token string
}

// Completed reports whether the linking service issued a token.
func (p PinStatus) Completed() bool {
	return p.Token != ""
}

// LinkSession is one in-flight linking attempt. It lives only as long as the
// poll loop and is never persisted.
type LinkSession struct {
	SessionID    string
	ShortCode    string
	ExpiresAt    time.Time
	IssuedSecret string
}

// LinkOutcome is the terminal result of a linking attempt.
type LinkOutcome struct {
	DiscordUserID string
	State         LinkState
	Reason        FailReason
	Err           error
	Polls         int
}
