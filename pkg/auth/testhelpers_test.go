package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("s", 64)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func int64Ptr(v int64) *int64 { return &v }

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUsers is an in-memory UserStore
type memUsers struct {
	users map[string]*User
	err   error
}

func newMemUsers(t *testing.T, users ...*User) *memUsers {
	t.Helper()
	m := &memUsers{users: make(map[string]*User)}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// memRevocations is an in-memory RevocationStore honoring the no-write-on-expired rule
type memRevocations struct {
	mu       sync.Mutex
	clock    func() time.Time
	revoked  map[string]time.Time
	readErr  error
	writeErr error
	failOpen bool
}

func newMemRevocations(clock func() time.Time) *memRevocations {
	return &memRevocations{clock: clock, revoked: make(map[string]time.Time), failOpen: true}
}

func (m *memRevocations) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if !expiresAt.After(m.clock()) {
		return nil
	}
	m.revoked[token] = expiresAt
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return !m.failOpen, m.readErr
	}
	exp, ok := m.revoked[token]
	return ok && exp.After(m.clock()), nil
}

// memSessions is an in-memory SessionRegistry
type memSessions struct {
	mu       sync.Mutex
	sessions map[string][]string
	err      error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string][]string)}
}

func (m *memSessions) Register(_ context.Context, email, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[email] = append(m.sessions[email], sessionID)
	return nil
}

func (m *memSessions) InvalidateAll(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := int64(len(m.sessions[email]))
	delete(m.sessions, email)
	return n, nil
}

func (m *memSessions) HasActive(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return len(m.sessions[email]) > 0, nil
}

// countingRecorder records outcome events
type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) RecordAuthOperation(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[operation+":"+result]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

var errStoreDown = errors.New("connection refused")

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password)
	require.NoError(t, err)
	return h
}

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, 24*time.Hour, 7*24*time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}
