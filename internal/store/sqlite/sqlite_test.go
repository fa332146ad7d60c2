package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Get(context.Background(), store.KeyAccounts)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Set(ctx, store.KeyTheme, []byte(`"dark"`)))
	require.NoError(t, st.Set(ctx, store.KeyTheme, []byte(`"light"`)))

	got, err := st.Get(ctx, store.KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, `"light"`, string(got))
}

func TestSetBatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	err := store.NewBatch().
		Put(store.KeyVotes, map[string]map[string]int{"ash": {"c1": 1}}).
		Put(store.KeyComments, map[string][]string{"lava": {"c1"}}).
		Commit(ctx, st)
	require.NoError(t, err)

	for _, key := range []string{store.KeyVotes, store.KeyComments} {
		_, err := st.Get(ctx, key)
		assert.NoError(t, err, key)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "commons.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, store.KeySession, []byte(`"ash"`)))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Get(ctx, store.KeySession)
	require.NoError(t, err)
	assert.Equal(t, `"ash"`, string(got))
}
