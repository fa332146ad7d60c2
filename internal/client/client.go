// Package client provides a Go client for the Commons HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alphabot-ai/commons/internal/model"
)

// Client is a Commons API client. The server holds a single session, so the
// client carries no credentials of its own.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Commons client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response. Code is the forum outcome class, e.g.
// "not_found" or "banned".
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commons api %d %s: %s", e.Status, e.Code, e.Message)
}

// Account is the public view of an account.
type Account struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar"`
	Mood        string     `json:"mood"`
	Role        model.Role `json:"role"`
	Banned      bool       `json:"banned"`
	BanUntil    *time.Time `json:"banUntil"`
	Warnings    int        `json:"warnings"`
}

// do performs a JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type sessionResponse struct {
	Account *Account `json:"account"`
}

// Session returns the active account, or nil when nobody is logged in.
func (c *Client) Session(ctx context.Context) (*Account, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

func (c *Client) SignUp(ctx context.Context, username, password, avatar string) (*Account, error) {
	var resp sessionResponse
	body := map[string]string{"username": username, "password": password, "avatar": avatar}
	if err := c.do(ctx, http.MethodPost, "/api/signup", body, &resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

func (c *Client) LogIn(ctx context.Context, username, password string) (*Account, error) {
	var resp sessionResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

func (c *Client) LogOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) SetMood(ctx context.Context, mood string) error {
	return c.do(ctx, http.MethodPatch, "/api/me", map[string]string{"mood": mood}, nil)
}

// CreateCommunity creates a community and returns it.
func (c *Client) CreateCommunity(ctx context.Context, name, description, icon string) (*model.Community, error) {
	var out model.Community
	body := map[string]string{"name": name, "description": description, "icon": icon}
	if err := c.do(ctx, http.MethodPost, "/api/communities", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Communities(ctx context.Context) ([]model.Community, error) {
	var resp struct {
		Communities []model.Community `json:"communities"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/communities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Communities, nil
}

func (c *Client) Join(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, "/api/communities/"+url.PathEscape(slug)+"/join", nil, nil)
}

func (c *Client) Leave(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, "/api/communities/"+url.PathEscape(slug)+"/leave", nil, nil)
}

// Post adds a comment to a community.
func (c *Client) Post(ctx context.Context, slug, text string) (*model.Comment, error) {
	var out model.Comment
	path := "/api/communities/" + url.PathEscape(slug) + "/comments"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comments lists a community's comments in the given sort mode.
func (c *Client) Comments(ctx context.Context, slug, sort string) ([]model.Comment, error) {
	var resp struct {
		Comments []model.Comment `json:"comments"`
	}
	path := "/api/communities/" + url.PathEscape(slug) + "/comments?sort=" + url.QueryEscape(sort)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func (c *Client) Recent(ctx context.Context, limit int) ([]model.Comment, error) {
	var resp struct {
		Comments []model.Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/comments/recent?limit="+strconv.Itoa(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// Vote casts direction on a comment and returns the resulting live vote.
func (c *Client) Vote(ctx context.Context, slug, commentID string, direction int) (int, error) {
	var resp struct {
		Vote int `json:"vote"`
	}
	path := "/api/communities/" + url.PathEscape(slug) + "/comments/" + url.PathEscape(commentID) + "/vote"
	if err := c.do(ctx, http.MethodPost, path, map[string]int{"direction": direction}, &resp); err != nil {
		return 0, err
	}
	return resp.Vote, nil
}

func (c *Client) Report(ctx context.Context, target, reason string) (*model.Report, error) {
	var out model.Report
	body := map[string]string{"target": target, "reason": reason}
	if err := c.do(ctx, http.MethodPost, "/api/reports", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve closes a report. minutes only applies to bans.
func (c *Client) Resolve(ctx context.Context, reportID string, action model.ReportAction, target string, minutes int) (*model.Report, error) {
	var out model.Report
	body := map[string]any{"action": action, "target": target, "minutes": minutes}
	if err := c.do(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(reportID)+"/resolve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
