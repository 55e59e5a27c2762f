package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fomopomo/internal/model"
)

type PresenceRepository struct {
	db *sql.DB
}

func NewPresenceRepository(db *sql.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

func (r *PresenceRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT user_id, nickname, status, current_task, status_started_at, last_active_at
		 FROM profiles WHERE user_id = ?`,
		userID,
	)
	return scanProfile(row)
}

func (r *PresenceRepository) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT user_id, nickname, status, current_task, status_started_at, last_active_at
		 FROM profiles
		 ORDER BY last_active_at DESC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0)
	for rows.Next() {
		profile, scanErr := scanProfile(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// UpdatePresence overwrites the live status fields. Last write wins.
func (r *PresenceRepository) UpdatePresence(ctx context.Context, profile *model.Profile) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE profiles
		 SET status = ?,
		     current_task = ?,
		     status_started_at = ?,
		     last_active_at = ?
		 WHERE user_id = ?`,
		profile.Status,
		nullableString(profile.CurrentTask),
		nullableTime(profile.StatusStartedAt),
		formatTime(profile.LastActiveAt),
		profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update presence rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(s scanner) (*model.Profile, error) {
	profile := model.Profile{}
	var currentTask sql.NullString
	var startedAt sql.NullString
	var lastActiveAt string
	err := s.Scan(
		&profile.UserID,
		&profile.Nickname,
		&profile.Status,
		&currentTask,
		&startedAt,
		&lastActiveAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if currentTask.Valid {
		task := currentTask.String
		profile.CurrentTask = &task
	}
	if startedAt.Valid {
		parsed, parseErr := parseTime(startedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse profile status_started_at: %w", parseErr)
		}
		profile.StatusStartedAt = &parsed
	}
	parsedLastActive, err := parseTime(lastActiveAt)
	if err != nil {
		return nil, fmt.Errorf("parse profile last_active_at: %w", err)
	}
	profile.LastActiveAt = parsedLastActive
	return &profile, nil
}
