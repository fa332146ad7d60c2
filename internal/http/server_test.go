package httpapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/commons/internal/config"
	"github.com/alphabot-ai/commons/internal/forum"
	"github.com/alphabot-ai/commons/internal/rate"
	"github.com/alphabot-ai/commons/internal/store"
)

var generous = config.RateLimits{PostPerMinute: 1000, VotePerMinute: 1000, ReportPerMinute: 1000}

func newTestServer(t *testing.T, limits config.RateLimits) (*Server, *forum.State) {
	t.Helper()
	state, err := forum.New(context.Background(), store.NewMemory(), forum.WithAdmin("admin", "admin-pw"))
	require.NoError(t, err)
	return NewServer(state, rate.NewMemory(), limits, nil), state
}

func call(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload), resp.Body.String())
	return payload
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, generous)
	resp := call(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestSignUpLogInFlow(t *testing.T) {
	s, _ := newTestServer(t, generous)

	resp := call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw1","avatar":"😀"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	account := decode(t, resp)["account"].(map[string]any)
	assert.Equal(t, "ash", account["username"])
	assert.NotContains(t, resp.Body.String(), "pw1")

	resp = call(t, s, http.MethodPost, "/api/login", `{"username":"ash","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decode(t, resp)["code"])

	resp = call(t, s, http.MethodPost, "/api/login", `{"username":"ash","password":"pw1"}`)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"x"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/login", `{"username":"ghost","password":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = call(t, s, http.MethodGet, "/api/session", "")
	assert.Nil(t, decode(t, resp)["account"])
}

func TestRejectsUnknownFields(t *testing.T) {
	s, _ := newTestServer(t, generous)
	resp := call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCommunityAndCommentFlow(t *testing.T) {
	s, _ := newTestServer(t, generous)
	call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw"}`)

	resp := call(t, s, http.MethodPost, "/api/communities", `{"name":"Lava Lamps"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "lava_lamps", decode(t, resp)["slug"])

	resp = call(t, s, http.MethodPost, "/api/communities", `{"name":"lava  lamps!"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/communities/lava_lamps/comments", `{"text":"first"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	id := decode(t, resp)["id"].(string)

	resp = call(t, s, http.MethodPost, "/api/communities/lava_lamps/comments/"+id+"/vote", `{"direction":1}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(1), decode(t, resp)["vote"])

	resp = call(t, s, http.MethodPost, "/api/communities/lava_lamps/comments/"+id+"/vote", `{"direction":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = call(t, s, http.MethodGet, "/api/communities/lava_lamps/comments?sort=new", "")
	require.Equal(t, http.StatusOK, resp.Code)
	comments := decode(t, resp)["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, float64(1), comments[0].(map[string]any)["score"])

	resp = call(t, s, http.MethodGet, "/api/communities/nope/comments", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = call(t, s, http.MethodGet, "/api/comments/recent?limit=5", "")
	assert.Len(t, decode(t, resp)["comments"], 1)

	resp = call(t, s, http.MethodGet, "/api/accounts/ash/comments", "")
	assert.Len(t, decode(t, resp)["comments"], 1)

	resp = call(t, s, http.MethodPost, "/api/communities/lava_lamps/leave", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code, "creator cannot leave")

	resp = call(t, s, http.MethodPost, "/api/communities/lava_lamps/verify", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestModerationFlow(t *testing.T) {
	s, state := newTestServer(t, generous)
	call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw1"}`)
	call(t, s, http.MethodPost, "/api/signup", `{"username":"bo","password":"pw2"}`)

	resp := call(t, s, http.MethodPost, "/api/reports", `{"target":"bo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "self report")

	resp = call(t, s, http.MethodPost, "/api/reports", `{"target":"ash","reason":"spam"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	reportID := decode(t, resp)["id"].(string)

	resp = call(t, s, http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	call(t, s, http.MethodPost, "/api/login", `{"username":"admin","password":"admin-pw"}`)
	resp = call(t, s, http.MethodGet, "/api/reports?open=true", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["reports"], 1)

	resp = call(t, s, http.MethodPost, "/api/reports/"+reportID+"/resolve", `{"action":"delete"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/reports/"+reportID+"/resolve", `{"action":"ban","target":"ash","minutes":60}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "ban", decode(t, resp)["action"])

	resp = call(t, s, http.MethodPost, "/api/reports/"+reportID+"/resolve", `{"action":"ignore"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = call(t, s, http.MethodPost, "/api/login", `{"username":"ash","password":"pw1"}`)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, "banned", body["code"])
	assert.Equal(t, false, body["permanent"])
	assert.NotEmpty(t, body["until"])
	assert.True(t, state.IsCurrentlyBanned("ash"))

	resp = call(t, s, http.MethodGet, "/api/accounts/ash", "")
	assert.Equal(t, true, decode(t, resp)["banned"])
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, config.RateLimits{PostPerMinute: 1})
	call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw"}`)
	call(t, s, http.MethodPost, "/api/communities", `{"name":"Lava"}`)

	resp := call(t, s, http.MethodPost, "/api/communities/lava/comments", `{"text":"one"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	resp = call(t, s, http.MethodPost, "/api/communities/lava/comments", `{"text":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	// Zero means unlimited.
	c, _ := s.forum.ListSortedBy("lava", forum.SortNew)
	id := c[0].ID
	for i := 0; i < 5; i++ {
		resp = call(t, s, http.MethodPost, "/api/communities/lava/comments/"+id+"/vote", `{"direction":1}`)
		require.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestThemeAndProfile(t *testing.T) {
	s, _ := newTestServer(t, generous)

	resp := call(t, s, http.MethodPut, "/api/theme", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = call(t, s, http.MethodGet, "/api/theme", "")
	assert.Equal(t, "dark", decode(t, resp)["theme"])

	resp = call(t, s, http.MethodPatch, "/api/me", `{"mood":"calm"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	call(t, s, http.MethodPost, "/api/signup", `{"username":"ash","password":"pw"}`)
	resp = call(t, s, http.MethodPatch, "/api/me", `{"mood":"calm","displayName":"Ash"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	account := decode(t, resp)["account"].(map[string]any)
	assert.Equal(t, "calm", account["mood"])
	assert.Equal(t, "Ash", account["displayName"])
}

func TestWriteRateLimitHeader(t *testing.T) {
	resp := httptest.NewRecorder()
	writeRateLimit(resp, 30*time.Second)
	assert.Equal(t, "30", resp.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}
