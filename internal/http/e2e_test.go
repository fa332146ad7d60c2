package httpapp_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/client"
	"github.com/alphabot-ai/commons/internal/config"
	"github.com/alphabot-ai/commons/internal/forum"
	httpapp "github.com/alphabot-ai/commons/internal/http"
	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/rate"
	"github.com/alphabot-ai/commons/internal/store/sqlite"
)

func TestEndToEndServer(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	defer st.Close()

	state, err := forum.New(ctx, st, forum.WithAdmin("admin", "admin-pw"))
	require.NoError(t, err)
	limits := config.RateLimits{PostPerMinute: 1000, VotePerMinute: 1000, ReportPerMinute: 1000}
	server := httpapp.NewServer(state, rate.NewMemory(), limits, nil)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	c := client.New(ts.URL)

	_, err = c.SignUp(ctx, "ash", "pw1", "😀")
	require.NoError(t, err)
	lava, err := c.CreateCommunity(ctx, "Lava", "hot rocks", "🌋")
	require.NoError(t, err)
	first, err := c.Post(ctx, lava.Slug, "first")
	require.NoError(t, err)

	_, err = c.SignUp(ctx, "bo", "pw2", "")
	require.NoError(t, err)
	require.NoError(t, c.Join(ctx, lava.Slug))
	second, err := c.Post(ctx, lava.Slug, "second")
	require.NoError(t, err)

	vote, err := c.Vote(ctx, lava.Slug, first.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, vote)

	hot, err := c.Comments(ctx, lava.Slug, "hot")
	require.NoError(t, err)
	require.Len(t, hot, 2)
	assert.Equal(t, first.ID, hot[0].ID)
	assert.Equal(t, second.ID, hot[1].ID)

	report, err := c.Report(ctx, "ash", "rude")
	require.NoError(t, err)

	_, err = c.LogIn(ctx, "admin", "admin-pw")
	require.NoError(t, err)
	resolved, err := c.Resolve(ctx, report.ID, model.ActionBan, "ash", 0)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = c.LogIn(ctx, "ash", "pw1")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "banned", apiErr.Code)

	// State survives a reload from the same database.
	reloaded, err := forum.New(ctx, st)
	require.NoError(t, err)
	assert.True(t, reloaded.IsCurrentlyBanned("ash"))
	require.NoError(t, reloaded.CheckConsistency())
	recent := reloaded.RecentGlobal(10)
	assert.Len(t, recent, 2)
}
