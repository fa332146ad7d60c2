package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Keys of the logical collections. Each collection is written wholesale.
const (
	KeySession     = "session"
	KeyAccounts    = "accounts"
	KeyCommunities = "communities"
	KeyComments    = "comments"
	KeyReports     = "reports"
	KeyWarnings    = "warnings"
	KeyBans        = "bans"
	KeyVotes       = "votes"
	KeyTheme       = "theme"
)

// Store is a synchronous key/value checkpoint. Get returns ErrNotFound for
// absent keys. Set is durable on return.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// BatchStore writes several keys atomically.
type BatchStore interface {
	Store
	SetBatch(ctx context.Context, entries map[string][]byte) error
}

// GetJSON decodes the value at key into dest. It reports false when the key
// is absent.
func GetJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Batch collects encoded values to be committed together.
type Batch struct {
	entries map[string][]byte
	err     error
}

func NewBatch() *Batch {
	return &Batch{entries: make(map[string][]byte)}
}

// Put encodes value under key. The first encoding error is kept and
// returned by Commit.
func (b *Batch) Put(key string, value any) *Batch {
	if b.err != nil {
		return b
	}
	raw, err := json.Marshal(value)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", key, err)
		return b
	}
	b.entries[key] = raw
	return b
}

// Commit writes the batch, atomically when s implements BatchStore.
func (b *Batch) Commit(ctx context.Context, s Store) error {
	if b.err != nil {
		return b.err
	}
	if len(b.entries) == 0 {
		return nil
	}
	if bs, ok := s.(BatchStore); ok {
		return bs.SetBatch(ctx, b.entries)
	}
	for key, raw := range b.entries {
		if err := s.Set(ctx, key, raw); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
