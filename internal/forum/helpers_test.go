package forum

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/store"
)

const (
	adminUser = "root"
	adminPass = "rootpw"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// flakyStore fails every write while broken is set.
type flakyStore struct {
	*store.Memory
	broken bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.broken {
		return errDiskFull
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyStore) SetBatch(ctx context.Context, entries map[string][]byte) error {
	if f.broken {
		return errDiskFull
	}
	return f.Memory.SetBatch(ctx, entries)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestState(t *testing.T, st store.Store) (*State, *fakeClock) {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s, err := New(context.Background(), st,
		WithClock(clock.Now),
		WithIDs(sequentialIDs()),
		WithAdmin(adminUser, adminPass),
	)
	require.NoError(t, err)
	return s, clock
}

func mustSignUp(t *testing.T, s *State, username string) {
	t.Helper()
	require.NoError(t, s.SignUp(context.Background(), username, username+"-pw", ""))
}

func mustLogIn(t *testing.T, s *State, username string) {
	t.Helper()
	password := username + "-pw"
	if username == adminUser {
		password = adminPass
	}
	require.NoError(t, s.LogIn(context.Background(), username, password))
}
