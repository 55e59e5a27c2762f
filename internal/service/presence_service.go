package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/model"
	"fomopomo/internal/repository"
)

const maxTaskLength = 200

type PresenceService struct {
	repo  *repository.PresenceRepository
	ttl   time.Duration
	clock clockwork.Clock
}

// PresenceView is a profile as seen by other users at ServerTime.
type PresenceView struct {
	model.Profile
	ElapsedSeconds int       `json:"elapsedSeconds"`
	ServerTime     time.Time `json:"serverTime"`
}

type UpdatePresenceInput struct {
	Status    string
	Task      *string
	StartedAt *time.Time
}

func NewPresenceService(repo *repository.PresenceRepository, ttl time.Duration, clock clockwork.Clock) *PresenceService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PresenceService{repo: repo, ttl: ttl, clock: clock}
}

// Update overwrites the caller's presence. There is no version check: the
// latest report always wins.
func (s *PresenceService) Update(ctx context.Context, userID string, input UpdatePresenceInput) (*PresenceView, *apperrors.APIError) {
	if !model.IsValidStatus(input.Status) {
		return nil, apperrors.BadRequest("invalid_status", "status must be one of studying, paused, idle, offline")
	}
	if input.Task != nil && len(*input.Task) > maxTaskLength {
		return nil, apperrors.BadRequest("invalid_task", "task must be at most 200 characters")
	}

	now := s.clock.Now().UTC()
	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("profile_not_found", "profile not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get profile")
	}

	profile.Status = input.Status
	profile.CurrentTask = trimmedTask(input.Task)
	profile.StatusStartedAt = nil
	if input.Status == model.StatusStudying {
		startedAt := now
		if input.StartedAt != nil && !input.StartedAt.After(now) {
			startedAt = input.StartedAt.UTC()
		}
		profile.StatusStartedAt = &startedAt
	}
	profile.LastActiveAt = now

	if err := s.repo.UpdatePresence(ctx, profile); err != nil {
		return nil, apperrors.Internal("failed to update presence")
	}

	view := s.toView(*profile, now)
	return &view, nil
}

func (s *PresenceService) Get(ctx context.Context, userID string) (*PresenceView, *apperrors.APIError) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("profile_not_found", "profile not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get profile")
	}
	view := s.toView(*profile, s.clock.Now().UTC())
	return &view, nil
}

func (s *PresenceService) List(ctx context.Context) ([]PresenceView, *apperrors.APIError) {
	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list profiles")
	}
	now := s.clock.Now().UTC()
	views := make([]PresenceView, 0, len(profiles))
	for _, profile := range profiles {
		views = append(views, s.toView(profile, now))
	}
	return views, nil
}

// EffectiveStatus reports offline for non-studying profiles idle past the TTL.
func (s *PresenceService) EffectiveStatus(profile model.Profile, now time.Time) string {
	if profile.Status == model.StatusStudying || profile.Status == model.StatusOffline {
		return profile.Status
	}
	if s.ttl > 0 && now.Sub(profile.LastActiveAt) > s.ttl {
		return model.StatusOffline
	}
	return profile.Status
}

func (s *PresenceService) toView(profile model.Profile, now time.Time) PresenceView {
	profile.Status = s.EffectiveStatus(profile, now)
	view := PresenceView{Profile: profile, ServerTime: now}
	if profile.Status == model.StatusStudying && profile.StatusStartedAt != nil {
		elapsed := int(now.Sub(*profile.StatusStartedAt) / time.Second)
		if elapsed > 0 {
			view.ElapsedSeconds = elapsed
		}
	} else {
		view.StatusStartedAt = nil
	}
	return view
}

func trimmedTask(task *string) *string {
	if task == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*task)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
