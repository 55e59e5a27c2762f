// Package client talks to the fomopomo server over HTTP/JSON.
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
	"strings"
	"time"

	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/model"
	"fomopomo/internal/timer"
)

const defaultTimeout = 10 * time.Second

// Client is safe for concurrent use once configured.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type PresenceView struct {
	model.Profile
	ElapsedSeconds int       `json:"elapsedSeconds"`
	ServerTime     time.Time `json:"serverTime"`
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, email, password, nickname string) (*AuthResult, error) {
	var result AuthResult
	body := map[string]string{"email": email, "password": password, "nickname": nickname}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, body, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// PublishStatus reports a timer transition as the caller's presence.
func (c *Client) PublishStatus(ctx context.Context, update timer.StatusUpdate) error {
	body := map[string]interface{}{"status": string(update.Status)}
	if update.Task != "" {
		body["task"] = update.Task
	}
	if update.StartedAt != nil {
		body["startedAt"] = update.StartedAt.UTC()
	}
	return c.do(ctx, http.MethodPut, "/api/presence", nil, body, nil)
}

func (c *Client) ListPresence(ctx context.Context) ([]PresenceView, error) {
	var resp struct {
		Presence []PresenceView `json:"presence"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/presence", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Presence, nil
}

func (c *Client) GetPresence(ctx context.Context, userID string) (*PresenceView, error) {
	var resp struct {
		Presence PresenceView `json:"presence"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/presence/"+url.PathEscape(userID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Presence, nil
}

// UploadSession stores a finished session. Replays of the same id succeed.
func (c *Client) UploadSession(ctx context.Context, session model.StudySession) error {
	body := map[string]interface{}{
		"id":              session.ID,
		"mode":            session.Mode,
		"durationSeconds": session.DurationSeconds,
		"createdAt":       session.CreatedAt.UTC(),
	}
	if session.Task != nil {
		body["task"] = *session.Task
	}
	if session.GroupID != nil {
		body["groupId"] = *session.GroupID
	}
	return c.do(ctx, http.MethodPost, "/api/sessions", nil, body, nil)
}

func (c *Client) ListSessions(ctx context.Context, limit int, date string) ([]model.StudySession, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if date != "" {
		query.Set("date", date)
	}
	var resp struct {
		Sessions []model.StudySession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) DailyStats(ctx context.Context, date string) (*model.DailyStats, error) {
	query := url.Values{}
	if date != "" {
		query.Set("date", date)
	}
	var resp struct {
		Stats model.DailyStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stats/daily", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

func (c *Client) Leaderboard(ctx context.Context, date string, limit int) (*model.Leaderboard, error) {
	query := url.Values{}
	if date != "" {
		query.Set("date", date)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Leaderboard model.Leaderboard `json:"leaderboard"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Leaderboard, nil
}

func (c *Client) GetSettings(ctx context.Context) (*model.UserSettings, error) {
	var resp struct {
		Settings model.UserSettings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Settings, nil
}

// UpdateSettings saves settings on top of baseVersion. A stale base returns
// an *apperrors.APIError with code state_conflict.
func (c *Client) UpdateSettings(ctx context.Context, baseVersion int, settings model.Settings) (*model.UserSettings, error) {
	body := map[string]interface{}{"baseVersion": baseVersion, "settings": settings}
	var resp struct {
		Settings model.UserSettings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/settings", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Settings, nil
}

// IsConflict reports whether err is a version conflict from the server.
func IsConflict(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeStateConflict)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) *apperrors.APIError {
	var envelope struct {
		Error struct {
			Code    string      `json:"code"`
			Message string      `json:"message"`
			Details interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.New(status, apperrors.CodeHTTP, strings.TrimSpace(http.StatusText(status)))
	}
	apiErr := apperrors.New(status, envelope.Error.Code, envelope.Error.Message)
	apiErr.Details = envelope.Error.Details
	return apiErr
}
