package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := Open(context.Background(), mr.Addr(), "commons:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestGetMissing(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.Get(context.Background(), store.KeyBans)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetUsesPrefix(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)

	require.NoError(t, st.Set(ctx, store.KeySession, []byte(`"ash"`)))

	raw, err := mr.Get("commons:session")
	require.NoError(t, err)
	assert.Equal(t, `"ash"`, raw)

	got, err := st.Get(ctx, store.KeySession)
	require.NoError(t, err)
	assert.Equal(t, `"ash"`, string(got))
}

func TestSetBatch(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)

	err := store.NewBatch().
		Put(store.KeyWarnings, map[string]int{"ash": 1}).
		Put(store.KeyReports, []string{}).
		Commit(ctx, st)
	require.NoError(t, err)

	assert.True(t, mr.Exists("commons:warnings"))
	assert.True(t, mr.Exists("commons:reports"))
}

func TestOpenURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	st, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set(context.Background(), store.KeyTheme, []byte(`"dark"`)))
	assert.True(t, mr.Exists("theme"))
}

func TestOpenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = Open(context.Background(), addr, "")
	assert.Error(t, err)
}
