package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"fomopomo/internal/db"
	"fomopomo/internal/handler"
	"fomopomo/internal/repository"
	"fomopomo/internal/router"
	"fomopomo/internal/service"
	"fomopomo/internal/studyday"
)

var testNow = time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type testServer struct {
	handler http.Handler
	clock   fakeClock
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
	} `json:"user"`
}

type presenceView struct {
	UserID         string  `json:"userId"`
	Nickname       string  `json:"nickname"`
	Status         string  `json:"status"`
	CurrentTask    *string `json:"currentTask"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
}

type sessionEnvelope struct {
	Session struct {
		ID              string `json:"id"`
		UserID          string `json:"userId"`
		DurationSeconds int    `json:"durationSeconds"`
	} `json:"session"`
}

type settingsEnvelope struct {
	Settings struct {
		Version  int `json:"version"`
		Settings struct {
			PomoTime int `json:"pomoTime"`
			Volume   int `json:"volume"`
		} `json:"settings"`
	} `json:"settings"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Settings struct {
				Version int `json:"version"`
			} `json:"settings"`
		} `json:"details"`
	} `json:"error"`
}

func TestRegisterLoginAndMe(t *testing.T) {
	server := setupTestServer(t)

	named := registerUser(t, server, "Mina@Example.com", "123456", "mina")
	if named.User.Email != "mina@example.com" || named.User.Nickname != "mina" {
		t.Fatalf("unexpected user %+v", named.User)
	}
	defaulted := registerUser(t, server, "jun@example.com", "123456", "")
	if defaulted.User.Nickname != "jun" {
		t.Fatalf("expected nickname from email, got %q", defaulted.User.Nickname)
	}

	status, raw := requestJSON(t, server.handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "mina@example.com",
		"password": "123456",
	})
	if status != http.StatusConflict || errorCode(t, raw) != "email_exists" {
		t.Fatalf("expected email_exists conflict, got %d %s", status, raw)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "mina@example.com",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d %s", status, raw)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "mina@example.com",
		"password": "123456",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d %s", status, raw)
	}
	var login authResponse
	decode(t, raw, &login)

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/me", login.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for me, got %d %s", status, raw)
	}

	status, _ = requestJSON(t, server.handler, http.MethodGet, "/api/me", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestPresenceLastWriteWinsAndExpires(t *testing.T) {
	server := setupTestServer(t)
	studier := registerUser(t, server, "studier@example.com", "123456", "studier")
	watcher := registerUser(t, server, "watcher@example.com", "123456", "watcher")

	startedAt := testNow.Add(-90 * time.Second)
	status, raw := requestJSON(t, server.handler, http.MethodPut, "/api/presence", studier.Token, map[string]interface{}{
		"status":    "studying",
		"task":      "  linear algebra ",
		"startedAt": startedAt,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on presence update, got %d %s", status, raw)
	}

	view := getPresence(t, server, watcher.Token, studier.User.ID)
	if view.Status != "studying" || view.ElapsedSeconds != 90 {
		t.Fatalf("unexpected studying view %+v", view)
	}
	if view.CurrentTask == nil || *view.CurrentTask != "linear algebra" {
		t.Fatalf("expected trimmed task, got %v", view.CurrentTask)
	}

	// A later report replaces the earlier one without any version check.
	status, _ = requestJSON(t, server.handler, http.MethodPut, "/api/presence", studier.Token, map[string]interface{}{
		"status": "paused",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on pause update, got %d", status)
	}
	view = getPresence(t, server, watcher.Token, studier.User.ID)
	if view.Status != "paused" || view.ElapsedSeconds != 0 || view.CurrentTask != nil {
		t.Fatalf("unexpected paused view %+v", view)
	}

	server.clock.Advance(11 * time.Minute)
	view = getPresence(t, server, watcher.Token, studier.User.ID)
	if view.Status != "offline" {
		t.Fatalf("expected stale paused profile to read offline, got %s", view.Status)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/presence", watcher.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 listing presence, got %d %s", status, raw)
	}
	var list struct {
		Presence []presenceView `json:"presence"`
	}
	decode(t, raw, &list)
	if len(list.Presence) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(list.Presence))
	}

	status, raw = requestJSON(t, server.handler, http.MethodPut, "/api/presence", studier.Token, map[string]interface{}{
		"status": "sleeping",
	})
	if status != http.StatusBadRequest || errorCode(t, raw) != "invalid_status" {
		t.Fatalf("expected invalid_status, got %d %s", status, raw)
	}
}

func TestSessionIdempotencyAndDailyStats(t *testing.T) {
	server := setupTestServer(t)
	owner := registerUser(t, server, "owner@example.com", "123456", "owner")
	other := registerUser(t, server, "other@example.com", "123456", "other")

	sessionID := uuid.NewString()
	body := map[string]interface{}{
		"id":              sessionID,
		"mode":            "focus",
		"durationSeconds": 1500,
		"createdAt":       time.Date(2025, 12, 12, 6, 0, 0, 0, time.UTC),
	}
	status, raw := requestJSON(t, server.handler, http.MethodPost, "/api/sessions", owner.Token, body)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for new session, got %d %s", status, raw)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/sessions", owner.Token, body)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for replayed session, got %d %s", status, raw)
	}
	var replay sessionEnvelope
	decode(t, raw, &replay)
	if replay.Session.ID != sessionID || replay.Session.DurationSeconds != 1500 {
		t.Fatalf("unexpected replayed session %+v", replay.Session)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/sessions", other.Token, body)
	if status != http.StatusConflict || errorCode(t, raw) != "session_id_taken" {
		t.Fatalf("expected session_id_taken, got %d %s", status, raw)
	}

	postSession(t, server, owner.Token, "stopwatch", 600, time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC))
	postSession(t, server, owner.Token, "shortBreak", 300, time.Date(2025, 12, 12, 9, 30, 0, 0, time.UTC))
	// 02:00 belongs to the previous study day.
	postSession(t, server, owner.Token, "focus", 1200, time.Date(2025, 12, 12, 2, 0, 0, 0, time.UTC))

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/stats/daily?date=2025-12-12", owner.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d %s", status, raw)
	}
	var stats struct {
		Stats struct {
			Date             string `json:"date"`
			FocusSeconds     int    `json:"focusSeconds"`
			StopwatchSeconds int    `json:"stopwatchSeconds"`
			TotalSeconds     int    `json:"totalSeconds"`
			Sessions         int    `json:"sessions"`
		} `json:"stats"`
	}
	decode(t, raw, &stats)
	if stats.Stats.FocusSeconds != 1500 || stats.Stats.StopwatchSeconds != 600 || stats.Stats.TotalSeconds != 2100 {
		t.Fatalf("unexpected stats %+v", stats.Stats)
	}
	if stats.Stats.Sessions != 3 {
		t.Fatalf("expected 3 sessions in the study day, got %d", stats.Stats.Sessions)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/sessions?date=2025-12-11", owner.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 listing sessions, got %d %s", status, raw)
	}
	var list struct {
		Sessions []struct {
			DurationSeconds int `json:"durationSeconds"`
		} `json:"sessions"`
	}
	decode(t, raw, &list)
	if len(list.Sessions) != 1 || list.Sessions[0].DurationSeconds != 1200 {
		t.Fatalf("expected only the late-night session, got %+v", list.Sessions)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/sessions?limit=2", owner.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 listing sessions, got %d %s", status, raw)
	}
	decode(t, raw, &list)
	if len(list.Sessions) != 2 || list.Sessions[0].DurationSeconds != 300 {
		t.Fatalf("expected newest two sessions, got %+v", list.Sessions)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/sessions", owner.Token, map[string]interface{}{
		"mode":            "focus",
		"durationSeconds": 0,
	})
	if status != http.StatusBadRequest || errorCode(t, raw) != "invalid_duration" {
		t.Fatalf("expected invalid_duration, got %d %s", status, raw)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/stats/daily?date=12-12-2025", owner.Token, nil)
	if status != http.StatusBadRequest || errorCode(t, raw) != "invalid_date" {
		t.Fatalf("expected invalid_date, got %d %s", status, raw)
	}
}

func TestLeaderboardRanksStudyTime(t *testing.T) {
	server := setupTestServer(t)
	ana := registerUser(t, server, "ana@example.com", "123456", "ana")
	ben := registerUser(t, server, "ben@example.com", "123456", "ben")
	cy := registerUser(t, server, "cy@example.com", "123456", "cy")

	at := time.Date(2025, 12, 12, 8, 0, 0, 0, time.UTC)
	postSession(t, server, ben.Token, "focus", 1800, at)
	postSession(t, server, ben.Token, "longBreak", 900, at)
	postSession(t, server, ana.Token, "stopwatch", 1200, at)
	postSession(t, server, ana.Token, "focus", 600, at)
	postSession(t, server, cy.Token, "focus", 600, at)
	postSession(t, server, cy.Token, "focus", 3000, at.AddDate(0, 0, -1))

	status, raw := requestJSON(t, server.handler, http.MethodGet, "/api/leaderboard?date=2025-12-12", cy.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for leaderboard, got %d %s", status, raw)
	}
	var resp struct {
		Leaderboard struct {
			Date    string `json:"date"`
			Entries []struct {
				Rank         int    `json:"rank"`
				Nickname     string `json:"nickname"`
				TotalSeconds int    `json:"totalSeconds"`
				Status       string `json:"status"`
			} `json:"entries"`
		} `json:"leaderboard"`
	}
	decode(t, raw, &resp)

	entries := resp.Leaderboard.Entries
	if resp.Leaderboard.Date != "2025-12-12" || len(entries) != 3 {
		t.Fatalf("unexpected leaderboard %+v", resp.Leaderboard)
	}
	// ana and ben tie at 1800; nickname breaks the tie.
	want := []string{"ana", "ben", "cy"}
	for i, entry := range entries {
		if entry.Nickname != want[i] || entry.Rank != i+1 {
			t.Fatalf("entry %d: expected %s at rank %d, got %+v", i, want[i], i+1, entry)
		}
		if entry.Status != "offline" {
			t.Fatalf("expected offline status, got %s", entry.Status)
		}
	}
	if entries[0].TotalSeconds != 1800 || entries[2].TotalSeconds != 600 {
		t.Fatalf("unexpected totals %+v", entries)
	}
}

func TestSettingsVersionConflict(t *testing.T) {
	server := setupTestServer(t)
	user := registerUser(t, server, "settings@example.com", "123456", "")

	status, raw := requestJSON(t, server.handler, http.MethodGet, "/api/settings", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for settings, got %d %s", status, raw)
	}
	var initial settingsEnvelope
	decode(t, raw, &initial)
	if initial.Settings.Version != 0 || initial.Settings.Settings.PomoTime != 25 {
		t.Fatalf("expected default settings at version 0, got %+v", initial.Settings)
	}

	update := func(baseVersion, pomoTime int) (int, []byte) {
		return requestJSON(t, server.handler, http.MethodPut, "/api/settings", user.Token, map[string]interface{}{
			"baseVersion": baseVersion,
			"settings": map[string]interface{}{
				"pomoTime":          pomoTime,
				"shortBreak":        5,
				"longBreak":         15,
				"longBreakInterval": 4,
				"volume":            30,
				"presets":           []map[string]interface{}{{"id": "1", "label": "Read", "minutes": 40}},
			},
		})
	}

	status, raw = update(0, 50)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on first save, got %d %s", status, raw)
	}
	var saved settingsEnvelope
	decode(t, raw, &saved)
	if saved.Settings.Version != 1 || saved.Settings.Settings.PomoTime != 50 {
		t.Fatalf("unexpected saved settings %+v", saved.Settings)
	}

	status, raw = update(1, 45)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on second save, got %d %s", status, raw)
	}

	// Another device still holds version 1.
	status, raw = update(1, 30)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d %s", status, raw)
	}
	var conflict apiErrorEnvelope
	decode(t, raw, &conflict)
	if conflict.Error.Code != "state_conflict" || conflict.Error.Details.Settings.Version != 2 {
		t.Fatalf("unexpected conflict %+v", conflict.Error)
	}

	status, raw = update(2, 0)
	if status != http.StatusBadRequest || errorCode(t, raw) != "invalid_settings" {
		t.Fatalf("expected invalid_settings, got %d %s", status, raw)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	server.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	server := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	recorder := httptest.NewRecorder()

	server.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header, got %q", got)
	}
}

func setupTestServer(t *testing.T) testServer {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	clock := clockwork.NewFakeClockAt(testNow)
	calendar := studyday.New(5, time.UTC)

	authService := service.NewAuthService(repository.NewUserRepository(database), "test-secret", 24*time.Hour)
	presenceService := service.NewPresenceService(repository.NewPresenceRepository(database), 10*time.Minute, clock)
	sessionService := service.NewSessionService(repository.NewSessionRepository(database), presenceService, calendar, clock)
	settingsService := service.NewSettingsService(repository.NewSettingsRepository(database), clock)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Presence: handler.NewPresenceHandler(presenceService),
		Sessions: handler.NewSessionHandler(sessionService),
		Settings: handler.NewSettingsHandler(settingsService),
	}, []string{"http://localhost:5173"})

	return testServer{handler: engine, clock: clock}
}

func registerUser(t *testing.T, server testServer, email, password, nickname string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server.handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
		"nickname": nickname,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	decode(t, body, &resp)
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getPresence(t *testing.T, server testServer, token, userID string) presenceView {
	t.Helper()
	status, body := requestJSON(t, server.handler, http.MethodGet, "/api/presence/"+userID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get presence failed with status %d: %s", status, string(body))
	}
	var resp struct {
		Presence presenceView `json:"presence"`
	}
	decode(t, body, &resp)
	return resp.Presence
}

func postSession(t *testing.T, server testServer, token, mode string, seconds int, createdAt time.Time) {
	t.Helper()
	status, body := requestJSON(t, server.handler, http.MethodPost, "/api/sessions", token, map[string]interface{}{
		"mode":            mode,
		"durationSeconds": seconds,
		"createdAt":       createdAt,
	})
	if status != http.StatusCreated {
		t.Fatalf("post session failed with status %d: %s", status, string(body))
	}
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp apiErrorEnvelope
	decode(t, body, &resp)
	return resp.Error.Code
}

func decode(t *testing.T, body []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, target); err != nil {
		t.Fatalf("unmarshal response %s: %v", string(body), err)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
