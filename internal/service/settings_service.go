package service

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/model"
	"fomopomo/internal/repository"
	"fomopomo/internal/settings"
)

type SettingsService struct {
	repo  *repository.SettingsRepository
	clock clockwork.Clock
}

type UpdateSettingsInput struct {
	BaseVersion int
	Settings    model.Settings
}

func NewSettingsService(repo *repository.SettingsRepository, clock clockwork.Clock) *SettingsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SettingsService{repo: repo, clock: clock}
}

// Get returns the stored settings, or the defaults at version 0 for users
// that never saved any.
func (s *SettingsService) Get(ctx context.Context, userID string) (*model.UserSettings, *apperrors.APIError) {
	stored, err := s.repo.Get(ctx, userID)
	if isNotFound(err) {
		return &model.UserSettings{UserID: userID, Settings: model.DefaultSettings()}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get settings")
	}
	return stored, nil
}

func (s *SettingsService) Update(ctx context.Context, userID string, input UpdateSettingsInput) (*model.UserSettings, *apperrors.APIError) {
	if err := settings.Validate(input.Settings); err != nil {
		var validationErr *settings.ValidationError
		if errors.As(err, &validationErr) {
			return nil, apperrors.BadRequest(apperrors.CodeInvalidSettings, err.Error()).
				WithDetails(map[string]interface{}{"field": validationErr.Field})
		}
		return nil, apperrors.BadRequest(apperrors.CodeInvalidSettings, err.Error())
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	current, err := s.repo.GetTx(ctx, tx, userID)
	if isNotFound(err) {
		current = &model.UserSettings{UserID: userID, Settings: model.DefaultSettings()}
	} else if err != nil {
		return nil, apperrors.Internal("failed to get settings")
	}

	if apiErr := s.ensureVersion(input.BaseVersion, current); apiErr != nil {
		return nil, apiErr
	}

	current.Settings = input.Settings
	if current.Settings.Presets == nil {
		current.Settings.Presets = []model.Preset{}
	}
	current.Version++
	current.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.UpsertTx(ctx, tx, current); err != nil {
		return nil, apperrors.Internal("failed to update settings")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	return current, nil
}

// ensureVersion lets baseVersion 0 through so first-time writers need not
// know the current version.
func (s *SettingsService) ensureVersion(baseVersion int, current *model.UserSettings) *apperrors.APIError {
	if baseVersion <= 0 || baseVersion == current.Version {
		return nil
	}
	return apperrors.Conflict(apperrors.CodeStateConflict, "settings changed on another device", map[string]interface{}{
		"settings": current,
	})
}
