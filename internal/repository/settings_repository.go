package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fomopomo/internal/model"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (*model.UserSettings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT user_id, settings, version, updated_at FROM user_settings WHERE user_id = ?`,
		userID,
	)
	return scanUserSettings(row)
}

func (r *SettingsRepository) GetTx(ctx context.Context, tx *sql.Tx, userID string) (*model.UserSettings, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT user_id, settings, version, updated_at FROM user_settings WHERE user_id = ?`,
		userID,
	)
	return scanUserSettings(row)
}

func (r *SettingsRepository) UpsertTx(ctx context.Context, tx *sql.Tx, settings *model.UserSettings) error {
	encoded, err := json.Marshal(settings.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO user_settings (user_id, settings, version, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   settings = excluded.settings,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		settings.UserID,
		string(encoded),
		settings.Version,
		formatTime(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func scanUserSettings(s scanner) (*model.UserSettings, error) {
	var settings model.UserSettings
	var encoded string
	var updatedAt string
	if err := s.Scan(&settings.UserID, &encoded, &settings.Version, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}

	if err := json.Unmarshal([]byte(encoded), &settings.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", err)
	}
	settings.UpdatedAt = parsedUpdatedAt
	return &settings, nil
}
