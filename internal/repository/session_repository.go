package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fomopomo/internal/model"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert stores session unless a row with the same id exists. It reports
// whether a new row was written.
func (r *SessionRepository) Insert(ctx context.Context, session *model.StudySession) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO study_sessions (id, user_id, mode, duration_seconds, task, group_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		session.ID,
		session.UserID,
		session.Mode,
		session.DurationSeconds,
		nullableString(session.Task),
		nullableString(session.GroupID),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert session rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.StudySession, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, mode, duration_seconds, task, group_id, created_at
		 FROM study_sessions
		 WHERE id = ?`,
		id,
	)
	return scanStudySession(row)
}

// List returns the newest sessions of userID created within [from, to].
// Zero bounds are open.
func (r *SessionRepository) List(ctx context.Context, userID string, from, to time.Time, limit int) ([]model.StudySession, error) {
	lower, upper := rangeBounds(from, to)
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, mode, duration_seconds, task, group_id, created_at
		 FROM study_sessions
		 WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		lower,
		upper,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.StudySession, 0, limit)
	for rows.Next() {
		session, scanErr := scanStudySession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ModeTotal is the summed duration of one mode.
type ModeTotal struct {
	Mode     string
	Seconds  int
	Sessions int
}

func (r *SessionRepository) TotalsByMode(ctx context.Context, userID string, from, to time.Time) ([]ModeTotal, error) {
	lower, upper := rangeBounds(from, to)
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT mode, COALESCE(SUM(duration_seconds), 0), COUNT(1)
		 FROM study_sessions
		 WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		 GROUP BY mode`,
		userID,
		lower,
		upper,
	)
	if err != nil {
		return nil, fmt.Errorf("sum sessions: %w", err)
	}
	defer rows.Close()

	totals := make([]ModeTotal, 0, 4)
	for rows.Next() {
		var total ModeTotal
		if err := rows.Scan(&total.Mode, &total.Seconds, &total.Sessions); err != nil {
			return nil, fmt.Errorf("scan session total: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session totals: %w", err)
	}
	return totals, nil
}

// UserTotal is one leaderboard row before ranking.
type UserTotal struct {
	UserID       string
	Nickname     string
	Status       string
	LastActiveAt time.Time
	TotalSeconds int
}

// StudyTotals sums focus and stopwatch time per user within [from, to],
// largest first.
func (r *SessionRepository) StudyTotals(ctx context.Context, from, to time.Time, limit int) ([]UserTotal, error) {
	lower, upper := rangeBounds(from, to)
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT s.user_id, COALESCE(p.nickname, ''), COALESCE(p.status, ?), COALESCE(p.last_active_at, ''), SUM(s.duration_seconds) AS total
		 FROM study_sessions s
		 LEFT JOIN profiles p ON p.user_id = s.user_id
		 WHERE s.mode IN (?, ?) AND s.created_at >= ? AND s.created_at <= ?
		 GROUP BY s.user_id
		 ORDER BY total DESC, p.nickname ASC, s.user_id ASC
		 LIMIT ?`,
		model.StatusOffline,
		model.ModeFocus,
		model.ModeStopwatch,
		lower,
		upper,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("study totals: %w", err)
	}
	defer rows.Close()

	totals := make([]UserTotal, 0, limit)
	for rows.Next() {
		var total UserTotal
		var lastActiveAt string
		if err := rows.Scan(&total.UserID, &total.Nickname, &total.Status, &lastActiveAt, &total.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan study total: %w", err)
		}
		parsed, err := parseTime(lastActiveAt)
		if err != nil {
			return nil, fmt.Errorf("parse study total last_active_at: %w", err)
		}
		total.LastActiveAt = parsed
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study totals: %w", err)
	}
	return totals, nil
}

func rangeBounds(from, to time.Time) (string, string) {
	lower := ""
	upper := "9999"
	if !from.IsZero() {
		lower = formatTime(from)
	}
	if !to.IsZero() {
		upper = formatTime(to)
	}
	return lower, upper
}

func scanStudySession(s scanner) (*model.StudySession, error) {
	session := model.StudySession{}
	var task sql.NullString
	var groupID sql.NullString
	var createdAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.Mode,
		&session.DurationSeconds,
		&task,
		&groupID,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if task.Valid {
		value := task.String
		session.Task = &value
	}
	if groupID.Valid {
		value := groupID.String
		session.GroupID = &value
	}
	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	session.CreatedAt = parsedCreatedAt
	return &session, nil
}
