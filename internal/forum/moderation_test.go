package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/model"
)

// reportAsh signs up ash and bo, files a report from bo against ash and
// leaves the admin logged in.
func reportAsh(t *testing.T) (*State, *fakeClock, model.Report) {
	t.Helper()
	s, clock := newTestState(t, nil)
	mustSignUp(t, s, "ash")
	mustSignUp(t, s, "bo")
	r, err := s.SubmitReport(context.Background(), "ash", "spam")
	require.NoError(t, err)
	mustLogIn(t, s, adminUser)
	return s, clock, r
}

func TestBanThenLogIn(t *testing.T) {
	ctx := context.Background()
	s, clock, r := reportAsh(t)
	start := clock.Now()

	require.NoError(t, s.ResolveBan(ctx, r.ID, "ash", 60))
	ban, ok := s.Ban("ash")
	require.True(t, ok)
	require.NotNil(t, ban.Until)
	assert.Equal(t, start.Add(3600000*time.Millisecond), *ban.Until)

	clock.Advance(59 * time.Minute)
	err := s.LogIn(ctx, "ash", "ash-pw")
	var banErr *BanError
	require.ErrorAs(t, err, &banErr)
	assert.Equal(t, "ash", banErr.Username)
	assert.Equal(t, *ban.Until, *banErr.Until)

	clock.Advance(time.Minute)
	require.NoError(t, s.LogIn(ctx, "ash", "ash-pw"))
}

func TestBanBlocksActiveIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState(t, nil)
	mustSignUp(t, s, "ash")
	slug, err := s.CreateCommunity(ctx, "Lava", "", "")
	require.NoError(t, err)
	mustSignUp(t, s, "bo")
	r, err := s.SubmitReport(ctx, "ash", "")
	require.NoError(t, err)
	mustLogIn(t, s, adminUser)
	require.NoError(t, s.ResolveBan(ctx, r.ID, "ash", 0))

	// Force the stored session back to the banned user.
	s.mu.Lock()
	s.session = "ash"
	s.mu.Unlock()

	_, err = s.Post(ctx, slug, "still here")
	assert.ErrorIs(t, err, ErrBanned)
	assert.NoError(t, s.LogOut(ctx))
}

func TestResolveWarnAndIgnore(t *testing.T) {
	ctx := context.Background()
	s, _, r := reportAsh(t)

	require.NoError(t, s.ResolveWarn(ctx, r.ID, "ash"))
	assert.Equal(t, 1, s.Warnings("ash"))

	mustLogIn(t, s, "bo")
	second, err := s.SubmitReport(ctx, "ash", "again")
	require.NoError(t, err)
	third, err := s.SubmitReport(ctx, "ash", "and again")
	require.NoError(t, err)
	mustLogIn(t, s, adminUser)
	require.NoError(t, s.ResolveWarn(ctx, second.ID, "ash"))
	require.NoError(t, s.ResolveIgnore(ctx, third.ID))
	assert.Equal(t, 2, s.Warnings("ash"))
	assert.False(t, s.IsCurrentlyBanned("ash"))

	got, ok := s.Report(third.ID)
	require.True(t, ok)
	assert.True(t, got.Resolved)
	assert.Equal(t, model.ActionIgnore, got.Action)
	assert.Empty(t, s.OpenReports())
	assert.Len(t, s.Reports(), 3)
}

func TestReportTerminality(t *testing.T) {
	ctx := context.Background()
	s, _, r := reportAsh(t)
	require.NoError(t, s.ResolveWarn(ctx, r.ID, "ash"))

	assert.ErrorIs(t, s.ResolveBan(ctx, r.ID, "ash", 10), ErrAlreadyResolved)
	assert.ErrorIs(t, s.ResolveWarn(ctx, r.ID, "ash"), ErrConflict)
	assert.ErrorIs(t, s.ResolveIgnore(ctx, r.ID), ErrAlreadyResolved)

	got, _ := s.Report(r.ID)
	assert.True(t, got.Resolved)
	assert.Equal(t, model.ActionWarn, got.Action)
	assert.Equal(t, 1, s.Warnings("ash"))
	_, banned := s.Ban("ash")
	assert.False(t, banned)
}

func TestResolveRejects(t *testing.T) {
	ctx := context.Background()
	s, _, r := reportAsh(t)

	assert.ErrorIs(t, s.ResolveBan(ctx, r.ID, "ash", -1), ErrInvalidDuration)
	assert.ErrorIs(t, s.ResolveBan(ctx, r.ID, "bo", 5), ErrTargetMismatch)
	assert.ErrorIs(t, s.ResolveWarn(ctx, "missing", "ash"), ErrNoSuchReport)
	assert.Len(t, s.OpenReports(), 1)

	mustLogIn(t, s, "bo")
	assert.ErrorIs(t, s.ResolveIgnore(ctx, r.ID), ErrNotAdmin)
	require.NoError(t, s.LogOut(ctx))
	assert.ErrorIs(t, s.ResolveIgnore(ctx, r.ID), ErrNotLoggedIn)

	got, _ := s.Report(r.ID)
	assert.False(t, got.Resolved)
	assert.Equal(t, model.ActionNone, got.Action)
}

func TestAdminCannotBanSelf(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState(t, nil)
	mustSignUp(t, s, "ash")
	r, err := s.SubmitReport(ctx, adminUser, "")
	require.NoError(t, err)
	mustLogIn(t, s, adminUser)
	assert.ErrorIs(t, s.ResolveBan(ctx, r.ID, adminUser, 0), ErrSelfBan)
}

func TestSubmitReport(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestState(t, nil)
	mustSignUp(t, s, "ash")
	mustSignUp(t, s, "bo")

	r, err := s.SubmitReport(ctx, " ash ", "  ")
	require.NoError(t, err)
	assert.Equal(t, "ash", r.Target)
	assert.Equal(t, "bo", r.Reporter)
	assert.Equal(t, DefaultReportReason, r.Reason)
	assert.Equal(t, clock.Now(), r.Time)
	assert.False(t, r.Resolved)

	_, err = s.SubmitReport(ctx, "bo", "me")
	assert.ErrorIs(t, err, ErrSelfReport)
	_, err = s.SubmitReport(ctx, "ghost", "")
	assert.ErrorIs(t, err, ErrNoSuchAccount)
	_, err = s.SubmitReport(ctx, "", "")
	assert.ErrorIs(t, err, ErrBlankTarget)

	require.NoError(t, s.LogOut(ctx))
	_, err = s.SubmitReport(ctx, "ash", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, s.Reports(), 1)
}
