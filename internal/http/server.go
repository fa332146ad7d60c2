// Package httpapp exposes forum intents over a JSON HTTP API. Each request
// maps to one forum operation against the shared session state.
package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alphabot-ai/commons/internal/config"
	"github.com/alphabot-ai/commons/internal/forum"
	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/observability"
	"github.com/alphabot-ai/commons/internal/rate"
)

type Server struct {
	forum   *forum.State
	limiter rate.Limiter
	limits  config.RateLimits
	log     *slog.Logger
	router  http.Handler
}

func NewServer(state *forum.State, limiter rate.Limiter, limits config.RateLimits, logger *slog.Logger) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	s := &Server{forum: state, limiter: limiter, limits: limits, log: logger}
	s.router = s.routes()
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/signup", s.handleSignUp)
		r.Post("/login", s.handleLogIn)
		r.Post("/logout", s.handleLogOut)
		r.Patch("/me", s.handleUpdateMe)

		r.Get("/accounts/{username}", s.handleGetAccount)
		r.Get("/accounts/{username}/comments", s.handleUserComments)

		r.Get("/communities", s.handleListCommunities)
		r.Post("/communities", s.handleCreateCommunity)
		r.Route("/communities/{slug}", func(r chi.Router) {
			r.Get("/", s.handleGetCommunity)
			r.Post("/join", s.handleJoin)
			r.Post("/leave", s.handleLeave)
			r.Post("/verify", s.handleToggleVerified)
			r.Get("/comments", s.handleListComments)
			r.Post("/comments", s.handlePost)
			r.Post("/comments/{id}/vote", s.handleVote)
		})

		r.Get("/comments/recent", s.handleRecent)
		r.Delete("/comments", s.handleClearAll)

		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleSubmitReport)
		r.Post("/reports/{id}/resolve", s.handleResolve)

		r.Get("/theme", s.handleGetTheme)
		r.Put("/theme", s.handleSetTheme)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// accountView is an Account without its password.
type accountView struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar"`
	Mood        string     `json:"mood,omitempty"`
	Role        model.Role `json:"role,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Banned      bool       `json:"banned"`
	BanUntil    *time.Time `json:"banUntil,omitempty"`
	Warnings    int        `json:"warnings"`
}

func (s *Server) viewAccount(acc model.Account) accountView {
	v := accountView{
		Username:    acc.Username,
		DisplayName: acc.Display(),
		Avatar:      acc.Avatar,
		Mood:        acc.Mood,
		Role:        acc.Role,
		CreatedAt:   acc.CreatedAt,
		Banned:      s.forum.IsCurrentlyBanned(acc.Username),
		Warnings:    s.forum.Warnings(acc.Username),
	}
	if v.Banned {
		if ban, ok := s.forum.Ban(acc.Username); ok {
			v.BanUntil = ban.Until
		}
	}
	return v
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.forum.ActiveAccount()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"account": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": s.viewAccount(acc)})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Avatar   string `json:"avatar"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.forum.SignUp(r.Context(), req.Username, req.Password, req.Avatar); err != nil {
		writeForumError(w, err)
		return
	}
	s.writeSession(w, http.StatusCreated)
}

func (s *Server) handleLogIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.forum.LogIn(r.Context(), req.Username, req.Password); err != nil {
		writeForumError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK)
}

func (s *Server) writeSession(w http.ResponseWriter, status int) {
	acc, _ := s.forum.ActiveAccount()
	writeJSON(w, status, map[string]any{"account": s.viewAccount(acc)})
}

func (s *Server) handleLogOut(w http.ResponseWriter, r *http.Request) {
	if err := s.forum.LogOut(r.Context()); err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood        *string `json:"mood"`
		Avatar      *string `json:"avatar"`
		DisplayName *string `json:"displayName"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := r.Context()
	if req.Avatar != nil {
		if err := s.forum.SetAvatar(ctx, *req.Avatar); err != nil {
			writeForumError(w, err)
			return
		}
	}
	if req.Mood != nil {
		if err := s.forum.SetMood(ctx, *req.Mood); err != nil {
			writeForumError(w, err)
			return
		}
	}
	if req.DisplayName != nil {
		if err := s.forum.SetDisplayName(ctx, *req.DisplayName); err != nil {
			writeForumError(w, err)
			return
		}
	}
	acc, ok := s.forum.ActiveAccount()
	if !ok {
		writeForumError(w, forum.ErrNotLoggedIn)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": s.viewAccount(acc)})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.forum.Account(chi.URLParam(r, "username"))
	if !ok {
		writeForumError(w, forum.ErrNoSuchAccount)
		return
	}
	writeJSON(w, http.StatusOK, s.viewAccount(acc))
}

func (s *Server) handleUserComments(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if _, ok := s.forum.Account(username); !ok {
		writeForumError(w, forum.ErrNoSuchAccount)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": s.forum.ByUser(username)})
}

func (s *Server) handleListCommunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"communities": s.forum.Communities()})
}

func (s *Server) handleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slug, err := s.forum.CreateCommunity(r.Context(), req.Name, req.Description, req.Icon)
	if err != nil {
		writeForumError(w, err)
		return
	}
	c, _ := s.forum.Community(slug)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCommunity(w http.ResponseWriter, r *http.Request) {
	c, ok := s.forum.Community(chi.URLParam(r, "slug"))
	if !ok {
		writeForumError(w, forum.ErrNoSuchCommunity)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.communityIntent(w, r, s.forum.Join)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.communityIntent(w, r, s.forum.Leave)
}

func (s *Server) handleToggleVerified(w http.ResponseWriter, r *http.Request) {
	s.communityIntent(w, r, s.forum.ToggleVerified)
}

func (s *Server) communityIntent(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, slug string) error) {
	slug := chi.URLParam(r, "slug")
	if err := op(r.Context(), slug); err != nil {
		writeForumError(w, err)
		return
	}
	c, _ := s.forum.Community(slug)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	mode := forum.SortMode(r.URL.Query().Get("sort"))
	if mode == "" {
		mode = forum.SortHot
	}
	comments, err := s.forum.ListSortedBy(chi.URLParam(r, "slug"), mode)
	if err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments, "sort": mode})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "post", s.limits.PostPerMinute) {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := s.forum.Post(r.Context(), chi.URLParam(r, "slug"), req.Text)
	if err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "vote", s.limits.VotePerMinute) {
		return
	}
	var req struct {
		Direction int `json:"direction"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slug, id := chi.URLParam(r, "slug"), chi.URLParam(r, "id")
	if err := s.forum.Vote(r.Context(), id, slug, req.Direction); err != nil {
		writeForumError(w, err)
		return
	}
	acc, _ := s.forum.ActiveAccount()
	writeJSON(w, http.StatusOK, map[string]any{"vote": s.forum.VoteOf(acc.Username, id)})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	writeJSON(w, http.StatusOK, map[string]any{"comments": s.forum.RecentGlobal(limit)})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.forum.ClearAll(r.Context()); err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.forum.ActiveAccount()
	if !ok {
		writeForumError(w, forum.ErrNotLoggedIn)
		return
	}
	if !acc.IsAdmin() {
		writeForumError(w, forum.ErrNotAdmin)
		return
	}
	reports := s.forum.Reports()
	if r.URL.Query().Get("open") == "true" {
		reports = s.forum.OpenReports()
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "report", s.limits.ReportPerMinute) {
		return
	}
	var req struct {
		Target string `json:"target"`
		Reason string `json:"reason"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := s.forum.SubmitReport(r.Context(), req.Target, req.Reason)
	if err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  model.ReportAction `json:"action"`
		Target  string             `json:"target"`
		Minutes int                `json:"minutes"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := chi.URLParam(r, "id")
	var err error
	switch req.Action {
	case model.ActionBan:
		err = s.forum.ResolveBan(r.Context(), id, req.Target, req.Minutes)
	case model.ActionWarn:
		err = s.forum.ResolveWarn(r.Context(), id, req.Target)
	case model.ActionIgnore:
		err = s.forum.ResolveIgnore(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, errors.New("action must be ban, warn or ignore"))
		return
	}
	if err != nil {
		writeForumError(w, err)
		return
	}
	report, _ := s.forum.Report(id)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"theme": s.forum.Theme()})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.forum.SetTheme(r.Context(), strings.TrimSpace(req.Theme)); err != nil {
		writeForumError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": s.forum.Theme()})
}

// allowRateLimit keys by the active username, falling back to the client IP.
func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	key := "ip:" + clientIP(r)
	if acc, ok := s.forum.ActiveAccount(); ok {
		key = "user:" + acc.Username
	}
	allowed, retry, err := s.limiter.Allow(r.Context(), action+":"+key, limit, time.Minute)
	if err != nil {
		// Fail open.
		s.log.Warn("rate limiter unavailable", "action", action, "error", err)
		return true
	}
	if !allowed {
		observability.RateLimited.WithLabelValues(action).Inc()
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error(), "code": "invalid"})
}

// writeForumError maps a forum outcome class to its HTTP status.
func writeForumError(w http.ResponseWriter, err error) {
	kind := forum.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "invalid":
		status = http.StatusBadRequest
	case "unauthorized":
		status = http.StatusUnauthorized
	case "banned":
		status = http.StatusForbidden
	case "not_found":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	}

	body := map[string]any{"error": err.Error(), "code": kind}
	var banErr *forum.BanError
	if errors.As(err, &banErr) {
		body["permanent"] = banErr.Permanent()
		if banErr.Until != nil {
			body["until"] = banErr.Until
		}
	}
	writeJSON(w, status, body)
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"code":        "rate_limited",
		"retry_after": int(retry.Seconds()),
	})
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}
