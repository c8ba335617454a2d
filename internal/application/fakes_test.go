package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

// --- Fake implementations ---

// fakeClock advances only when the service sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

// blockingSleep never returns until ctx is canceled.
func blockingSleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeLinker struct {
	mu        sync.Mutex
	grant     model.PinGrant
	createErr error
	pollFn    func(n int) (model.PinStatus, error)
	polls     int
}

func (f *fakeLinker) CreateSession(_ context.Context) (model.PinGrant, error) {
	if f.createErr != nil {
		return model.PinGrant{}, f.createErr
	}
	return f.grant, nil
}

func (f *fakeLinker) PollSession(_ context.Context, _ string) (model.PinStatus, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	f.mu.Unlock()
	if f.pollFn == nil {
		return model.PinStatus{}, nil
	}
	return f.pollFn(n)
}

func (f *fakeLinker) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	sent  map[string][]string
	calls int
}

func (f *fakeNotifier) SendPrivate(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

func (f *fakeNotifier) messages(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[userID]...)
}

type fakeStore struct {
	mu        sync.Mutex
	tokens    map[string]string
	saveErr   error
	lookupErr error
	deleted   []string
	saves     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: make(map[string]string)}
}

func (f *fakeStore) Save(_ context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.tokens[userID] = token
	return nil
}

func (f *fakeStore) Get(_ context.Context, userID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[userID]
	return tok, ok, nil
}

func (f *fakeStore) IsLinked(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	_, ok := f.tokens[userID]
	return ok, nil
}

func (f *fakeStore) Lookup(_ context.Context, userID string) (*model.CredentialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if _, ok := f.tokens[userID]; !ok {
		return nil, nil
	}
	return &model.CredentialRecord{DiscordUserID: userID, Linked: true}, nil
}

func (f *fakeStore) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	delete(f.tokens, userID)
	return nil
}

func (f *fakeStore) token(userID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[userID]
	return tok, ok
}
