package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/model"
	"fomopomo/internal/repository"
	"fomopomo/internal/studyday"
)

const (
	defaultSessionLimit     = 50
	maxSessionLimit         = 200
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

type SessionService struct {
	repo     *repository.SessionRepository
	presence *PresenceService
	calendar studyday.Calendar
	clock    clockwork.Clock
}

type CreateSessionInput struct {
	ID              string
	Mode            string
	DurationSeconds int
	Task            *string
	GroupID         *string
	CreatedAt       *time.Time
}

func NewSessionService(
	repo *repository.SessionRepository,
	presence *PresenceService,
	calendar studyday.Calendar,
	clock clockwork.Clock,
) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{repo: repo, presence: presence, calendar: calendar, clock: clock}
}

// Create records a finished session. A client-chosen id makes the call
// idempotent; created is false when the id was already stored.
func (s *SessionService) Create(ctx context.Context, userID string, input CreateSessionInput) (*model.StudySession, bool, *apperrors.APIError) {
	if !model.IsValidSessionMode(input.Mode) {
		return nil, false, apperrors.BadRequest("invalid_mode", "mode must be one of focus, shortBreak, longBreak, stopwatch")
	}
	if input.DurationSeconds <= 0 || input.DurationSeconds > model.MaxSessionSeconds {
		return nil, false, apperrors.BadRequest("invalid_duration", "durationSeconds must be between 1 and 86400")
	}
	if input.Task != nil && len(*input.Task) > maxTaskLength {
		return nil, false, apperrors.BadRequest("invalid_task", "task must be at most 200 characters")
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, false, apperrors.BadRequest("invalid_id", "id must be a uuid")
	}

	now := s.clock.Now().UTC()
	createdAt := now
	if input.CreatedAt != nil && !input.CreatedAt.After(now) {
		createdAt = input.CreatedAt.UTC()
	}

	session := model.StudySession{
		ID:              id,
		UserID:          userID,
		Mode:            input.Mode,
		DurationSeconds: input.DurationSeconds,
		Task:            trimmedTask(input.Task),
		GroupID:         input.GroupID,
		CreatedAt:       createdAt,
	}
	inserted, err := s.repo.Insert(ctx, &session)
	if err != nil {
		return nil, false, apperrors.Internal("failed to create session")
	}
	if inserted {
		return &session, true, nil
	}

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, false, apperrors.Internal("failed to read session")
	}
	if stored.UserID != userID {
		return nil, false, apperrors.Conflict("session_id_taken", "session id already used", nil)
	}
	return stored, false, nil
}

// List returns the newest sessions; a non-empty date limits them to one study day.
func (s *SessionService) List(ctx context.Context, userID string, limit int, date string) ([]model.StudySession, *apperrors.APIError) {
	if limit <= 0 || limit > maxSessionLimit {
		limit = defaultSessionLimit
	}

	var from, to time.Time
	if date != "" {
		_, start, end, apiErr := s.dayRange(date)
		if apiErr != nil {
			return nil, apiErr
		}
		from, to = start, end
	}

	sessions, err := s.repo.List(ctx, userID, from, to, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list sessions")
	}
	return sessions, nil
}

func (s *SessionService) DailyStats(ctx context.Context, userID, date string) (*model.DailyStats, *apperrors.APIError) {
	label, from, to, apiErr := s.dayRange(date)
	if apiErr != nil {
		return nil, apiErr
	}

	totals, err := s.repo.TotalsByMode(ctx, userID, from, to)
	if err != nil {
		return nil, apperrors.Internal("failed to sum sessions")
	}

	stats := model.DailyStats{Date: label}
	for _, total := range totals {
		stats.Sessions += total.Sessions
		switch total.Mode {
		case model.ModeFocus:
			stats.FocusSeconds += total.Seconds
		case model.ModeStopwatch:
			stats.StopwatchSeconds += total.Seconds
		}
	}
	stats.TotalSeconds = stats.FocusSeconds + stats.StopwatchSeconds
	return &stats, nil
}

func (s *SessionService) Leaderboard(ctx context.Context, date string, limit int) (*model.Leaderboard, *apperrors.APIError) {
	if limit <= 0 || limit > maxLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}
	label, from, to, apiErr := s.dayRange(date)
	if apiErr != nil {
		return nil, apiErr
	}

	totals, err := s.repo.StudyTotals(ctx, from, to, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to build leaderboard")
	}

	now := s.clock.Now().UTC()
	board := model.Leaderboard{Date: label, Entries: make([]model.LeaderboardEntry, 0, len(totals))}
	for i, total := range totals {
		status := total.Status
		if s.presence != nil {
			status = s.presence.EffectiveStatus(model.Profile{Status: total.Status, LastActiveAt: total.LastActiveAt}, now)
		}
		board.Entries = append(board.Entries, model.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       total.UserID,
			Nickname:     total.Nickname,
			TotalSeconds: total.TotalSeconds,
			Status:       status,
		})
	}
	return &board, nil
}

// dayRange resolves date (or today's study day when empty) into its label and bounds.
func (s *SessionService) dayRange(date string) (string, time.Time, time.Time, *apperrors.APIError) {
	if date == "" {
		now := s.clock.Now()
		return s.calendar.Label(now), s.calendar.Start(now), s.calendar.End(now), nil
	}
	parsed, err := s.calendar.ParseDate(date)
	if err != nil {
		return "", time.Time{}, time.Time{}, apperrors.BadRequest("invalid_date", "date must be YYYY-MM-DD")
	}
	return date, s.calendar.CalendarStart(parsed), s.calendar.CalendarEnd(parsed), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
