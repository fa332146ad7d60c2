// Package forum holds the forum's domain state: accounts, communities,
// comments, votes and moderation. Every mutating operation runs to
// completion under one lock, stages its writes on copies, checkpoints them
// to the store in one batch and only then swaps the copies in.
package forum

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/observability"
	"github.com/alphabot-ai/commons/internal/store"
)

// Change describes an applied mutation. Keys lists the store collections
// that were rewritten.
type Change struct {
	Op   string
	User string
	Keys []string
}

type Option func(*State)

func WithLogger(l *slog.Logger) Option {
	return func(s *State) { s.log = l }
}

// WithClock replaces time.Now. Ban expiry is evaluated against it on every call.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithIDs replaces the UUIDv7 generator used for comment and report ids.
func WithIDs(next func() string) Option {
	return func(s *State) { s.newID = next }
}

// WithAdmin seeds an admin account on New. An existing account with that
// username is promoted; its password is left alone.
func WithAdmin(username, password string) Option {
	return func(s *State) {
		s.adminUser = username
		s.adminPass = password
	}
}

type State struct {
	mu    sync.Mutex
	store store.Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string

	adminUser string
	adminPass string

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextLis   int

	session     string
	accounts    map[string]model.Account
	communities map[string]model.Community
	comments    map[string][]model.Comment
	reports     []model.Report
	warnings    map[string]int
	bans        map[string]model.Ban
	votes       map[string]map[string]int
	theme       string
}

// New loads state from st. Absent keys start empty.
func New(ctx context.Context, st store.Store, opts ...Option) (*State, error) {
	s := &State{
		store:       st,
		log:         observability.Discard(),
		now:         time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		listeners:   make(map[int]func(Change)),
		accounts:    make(map[string]model.Account),
		communities: make(map[string]model.Community),
		comments:    make(map[string][]model.Comment),
		warnings:    make(map[string]int),
		bans:        make(map[string]model.Ban),
		votes:       make(map[string]map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	loads := []struct {
		key  string
		dest any
	}{
		{store.KeySession, &s.session},
		{store.KeyAccounts, &s.accounts},
		{store.KeyCommunities, &s.communities},
		{store.KeyComments, &s.comments},
		{store.KeyReports, &s.reports},
		{store.KeyWarnings, &s.warnings},
		{store.KeyBans, &s.bans},
		{store.KeyVotes, &s.votes},
		{store.KeyTheme, &s.theme},
	}
	for _, l := range loads {
		if _, err := store.GetJSON(ctx, st, l.key, l.dest); err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
	}
	// A stored JSON null decodes to a nil map.
	if s.accounts == nil {
		s.accounts = make(map[string]model.Account)
	}
	if s.communities == nil {
		s.communities = make(map[string]model.Community)
	}
	if s.comments == nil {
		s.comments = make(map[string][]model.Comment)
	}
	if s.warnings == nil {
		s.warnings = make(map[string]int)
	}
	if s.bans == nil {
		s.bans = make(map[string]model.Ban)
	}
	if s.votes == nil {
		s.votes = make(map[string]map[string]int)
	}
	if _, ok := s.accounts[s.session]; !ok {
		s.session = ""
	}

	if s.adminUser != "" {
		if err := s.seedAdmin(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *State) seedAdmin(ctx context.Context) error {
	acc, ok := s.accounts[s.adminUser]
	if ok && acc.IsAdmin() {
		return nil
	}
	if !ok {
		acc = model.Account{
			Username:  s.adminUser,
			Password:  s.adminPass,
			Avatar:    DefaultAvatar,
			CreatedAt: s.now(),
		}
	}
	acc.Role = model.RoleAdmin
	accounts := maps.Clone(s.accounts)
	accounts[s.adminUser] = acc
	if err := store.NewBatch().Put(store.KeyAccounts, accounts).Commit(ctx, s.store); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.accounts = accounts
	return nil
}

// OnChange registers fn to be called after every applied mutation. fn runs
// outside the state lock and may read state. The returned func unregisters it.
func (s *State) OnChange(fn func(Change)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *State) notify(c Change) {
	s.lmu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// txn stages the writes of one operation. Nothing is visible until the
// batch is committed and the swaps run.
type txn struct {
	batch *store.Batch
	swaps []func()
	keys  []string
}

func (t *txn) stage(key string, value any, swap func()) {
	t.batch.Put(key, value)
	t.swaps = append(t.swaps, swap)
	t.keys = append(t.keys, key)
}

// run executes fn under the state lock and commits whatever it staged.
func (s *State) run(ctx context.Context, op string, fn func(t *txn) error) error {
	s.mu.Lock()
	user := s.session
	t := &txn{batch: store.NewBatch()}

	if err := fn(t); err != nil {
		s.mu.Unlock()
		observability.Operations.WithLabelValues(op, Kind(err)).Inc()
		s.log.Debug("operation rejected", "op", op, "user", user, "reason", err.Error())
		return err
	}
	if len(t.swaps) == 0 {
		s.mu.Unlock()
		observability.Operations.WithLabelValues(op, "noop").Inc()
		return nil
	}
	if err := t.batch.Commit(ctx, s.store); err != nil {
		s.mu.Unlock()
		observability.Operations.WithLabelValues(op, "error").Inc()
		observability.CheckpointErrors.Inc()
		s.log.Error("checkpoint failed", "op", op, "user", user, "error", err)
		return fmt.Errorf("%s: checkpoint: %w", op, err)
	}
	for _, swap := range t.swaps {
		swap()
	}
	change := Change{Op: op, User: user, Keys: t.keys}
	s.mu.Unlock()

	observability.Operations.WithLabelValues(op, "ok").Inc()
	s.log.Info("operation applied", "op", op, "user", user, "keys", t.keys)
	s.notify(change)
	return nil
}

// active returns the logged-in account. A currently banned identity is
// rejected with *BanError.
func (s *State) active() (model.Account, error) {
	if s.session == "" {
		return model.Account{}, ErrNotLoggedIn
	}
	acc, ok := s.accounts[s.session]
	if !ok {
		return model.Account{}, ErrNotLoggedIn
	}
	if err := s.banned(acc.Username); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func (s *State) admin() (model.Account, error) {
	acc, err := s.active()
	if err != nil {
		return model.Account{}, err
	}
	if !acc.IsAdmin() {
		return model.Account{}, ErrNotAdmin
	}
	return acc, nil
}

func (s *State) banned(username string) error {
	ban, ok := s.bans[username]
	if !ok || !ban.ActiveAt(s.now()) {
		return nil
	}
	return &BanError{Username: username, Until: ban.Until}
}

// Theme returns the stored presentation theme, empty if unset.
func (s *State) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *State) SetTheme(ctx context.Context, theme string) error {
	return s.run(ctx, "set_theme", func(t *txn) error {
		if theme == s.theme {
			return nil
		}
		t.stage(store.KeyTheme, theme, func() { s.theme = theme })
		return nil
	})
}
