package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
	"github.com/ericfisherdev/johnnycage/internal/observability"
)

// LinkConfig holds the tunables of the account-link poll loop.
type LinkConfig struct {
	PollInterval time.Duration
	DefaultTTL   time.Duration
	// MaxPollFailures ends an attempt after this many consecutive poll errors.
	// Zero means transient errors never end an attempt before its deadline.
	MaxPollFailures int
	LinkURL         string
}

// LinkOption customizes a LinkService.
type LinkOption func(*LinkService)

// WithClock replaces the wall clock and the sleep used between polls.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) LinkOption {
	return func(s *LinkService) {
		s.now = now
		s.sleep = sleep
	}
}

// WithMetrics records attempt outcomes and polls.
func WithMetrics(m *observability.Metrics) LinkOption {
	return func(s *LinkService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) LinkOption {
	return func(s *LinkService) { s.logger = l }
}

// LinkService drives the Plex PIN exchange for a chat user: request a PIN, DM
// the short code, poll until a token is issued or the PIN expires, then store
// the token. One goroutine runs per attempt; a user has at most one attempt in
// flight and starting another cancels the previous one.
type LinkService struct {
	linker   driven.LinkingService
	notifier driven.Notifier
	store    driven.CredentialStore
	cfg      LinkConfig

	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	metrics *observability.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*LinkAttempt
	wg     sync.WaitGroup
}

// NewLinkService creates a LinkService with all required dependencies.
func NewLinkService(
	linker driven.LinkingService,
	notifier driven.Notifier,
	store driven.CredentialStore,
	cfg LinkConfig,
	opts ...LinkOption,
) *LinkService {
	s := &LinkService{
		linker:   linker,
		notifier: notifier,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepWithContext,
		logger:   slog.Default(),
		active:   make(map[string]*LinkAttempt),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LinkAttempt is a handle on an attempt running in the background.
type LinkAttempt struct {
	userID   string
	awaiting chan model.LinkSession
	done     chan struct{}
	cancel   context.CancelFunc
	outcome  model.LinkOutcome
}

// Awaiting delivers the session once the short code has been sent to the user.
// It never fires for attempts that fail before that point.
func (a *LinkAttempt) Awaiting() <-chan model.LinkSession { return a.awaiting }

// Done is closed when the attempt reaches a terminal state.
func (a *LinkAttempt) Done() <-chan struct{} { return a.done }

// Outcome returns the terminal result. Only valid after Done is closed.
func (a *LinkAttempt) Outcome() model.LinkOutcome {
	<-a.done
	return a.outcome
}

// Cancel stops the attempt; its outcome becomes failed(canceled).
func (a *LinkAttempt) Cancel() { a.cancel() }

// Start runs a link attempt for userID in its own goroutine. The attempt ends
// when ctx is canceled, so callers pass a context that lives as long as the bot.
func (s *LinkService) Start(ctx context.Context, userID string) *LinkAttempt {
	attemptCtx, cancel := context.WithCancel(ctx)
	attempt := &LinkAttempt{
		userID:   userID,
		awaiting: make(chan model.LinkSession, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	s.mu.Lock()
	if prev, ok := s.active[userID]; ok {
		s.logger.Info("superseding pending link attempt", "user_id", userID)
		prev.Cancel()
	}
	s.active[userID] = attempt
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()

		attempt.outcome = s.run(attemptCtx, userID, func(sess model.LinkSession) {
			attempt.awaiting <- sess
		})

		s.mu.Lock()
		if s.active[userID] == attempt {
			delete(s.active, userID)
		}
		s.mu.Unlock()

		close(attempt.done)
	}()

	return attempt
}

// Link runs one attempt synchronously and returns its outcome.
func (s *LinkService) Link(ctx context.Context, userID string) model.LinkOutcome {
	return s.run(ctx, userID, nil)
}

// Pending reports whether userID has an attempt in flight.
func (s *LinkService) Pending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[userID]
	return ok
}

// Unlink cancels any pending attempt and removes the stored token.
func (s *LinkService) Unlink(ctx context.Context, userID string) error {
	s.mu.Lock()
	if a, ok := s.active[userID]; ok {
		a.Cancel()
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("unlink %s: %w", userID, err)
	}
	s.logger.Info("plex link removed", "user_id", userID)
	return nil
}

// Status returns the stored link metadata for userID, or nil if none exists.
func (s *LinkService) Status(ctx context.Context, userID string) (*model.CredentialRecord, error) {
	rec, err := s.store.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("link status %s: %w", userID, err)
	}
	return rec, nil
}

// Wait blocks until every attempt started with Start has finished.
func (s *LinkService) Wait() {
	s.wg.Wait()
}

func (s *LinkService) run(ctx context.Context, userID string, onAwaiting func(model.LinkSession)) model.LinkOutcome {
	s.metrics.LinkStarted()
	start := s.now()

	out := s.exchange(ctx, userID, onAwaiting)
	out.DiscordUserID = userID

	s.metrics.LinkFinished(string(out.State), string(out.Reason))

	attrs := []any{
		"user_id", userID,
		"state", out.State,
		"polls", out.Polls,
		"duration", s.now().Sub(start),
	}
	switch {
	case out.State == model.LinkStateFailed && out.Reason != model.FailReasonCanceled:
		s.logger.Warn("link attempt failed", append(attrs, "reason", out.Reason, "error", out.Err)...)
	default:
		s.logger.Info("link attempt finished", attrs...)
	}
	return out
}

func (s *LinkService) exchange(ctx context.Context, userID string, onAwaiting func(model.LinkSession)) model.LinkOutcome {
	// pin_requested
	grant, err := s.linker.CreateSession(ctx)
	if err != nil {
		return failed(ctx, model.FailReasonStartError, 0, err)
	}

	ttl := grant.ExpiresIn
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	session := model.LinkSession{
		SessionID: grant.ID,
		ShortCode: grant.Code,
		ExpiresAt: s.now().Add(ttl),
	}

	// awaiting_user
	if err := s.notifier.SendPrivate(ctx, userID, codeMessage(s.cfg.LinkURL, session.ShortCode, ttl)); err != nil {
		return failed(ctx, model.FailReasonNotifyError, 0, err)
	}
	if onAwaiting != nil {
		onAwaiting(session)
	}

	polls, err := s.pollUntilIssued(ctx, &session)
	if err != nil {
		if errors.Is(err, errDeadline) || errors.Is(err, driven.ErrSessionGone) {
			s.notify(ctx, userID, expiredMessage)
			return model.LinkOutcome{State: model.LinkStateExpired, Polls: polls}
		}
		return failed(ctx, model.FailReasonPollError, polls, err)
	}

	// linked
	if err := s.store.Save(ctx, userID, session.IssuedSecret); err != nil {
		return failed(ctx, model.FailReasonStorageError, polls, err)
	}
	s.notify(ctx, userID, linkedMessage)
	return model.LinkOutcome{State: model.LinkStateLinked, Polls: polls}
}

var errDeadline = errors.New("link deadline passed")

// pollUntilIssued sleeps one interval before every poll and stops at the
// session deadline. On success it sets session.IssuedSecret.
func (s *LinkService) pollUntilIssued(ctx context.Context, session *model.LinkSession) (int, error) {
	polls, failures := 0, 0

	for s.now().Before(session.ExpiresAt) {
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return polls, err
		}

		polls++
		s.metrics.RecordPoll()

		status, err := s.linker.PollSession(ctx, session.SessionID)
		switch {
		case errors.Is(err, driven.ErrSessionGone):
			return polls, err
		case err != nil:
			if ctx.Err() != nil {
				return polls, ctx.Err()
			}
			failures++
			s.logger.Debug("pin poll failed", "session_id", session.SessionID, "failures", failures, "error", err)
			if s.cfg.MaxPollFailures > 0 && failures >= s.cfg.MaxPollFailures {
				return polls, fmt.Errorf("%d consecutive poll failures: %w", failures, err)
			}
		case status.Completed():
			session.IssuedSecret = status.Token
			return polls, nil
		default:
			failures = 0
		}
	}

	return polls, errDeadline
}

// notify sends a best-effort DM; the outcome of the attempt does not depend on it.
func (s *LinkService) notify(ctx context.Context, userID, text string) {
	if err := s.notifier.SendPrivate(ctx, userID, text); err != nil {
		s.logger.Warn("link notification not delivered", "user_id", userID, "error", err)
	}
}

func failed(ctx context.Context, reason model.FailReason, polls int, err error) model.LinkOutcome {
	if ctx.Err() != nil {
		reason = model.FailReasonCanceled
	}
	return model.LinkOutcome{State: model.LinkStateFailed, Reason: reason, Err: err, Polls: polls}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	linkedMessage  = "✅ Plex linked! You can now make requests."
	expiredMessage = "⌛ Link timed out or token not found. Run the link command again for a fresh code."
)

func codeMessage(linkURL, code string, ttl time.Duration) string {
	return fmt.Sprintf("🔗 **Plex Link**\nGo to %s and enter this code:\n\n**`%s`**\n\nYou have ~%d seconds.",
		linkURL, code, int(ttl.Seconds()))
}
