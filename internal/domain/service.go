// Package domain defines the business logic for the health analysis service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"example.com/healthanalysis/internal/logger"
	"example.com/healthanalysis/internal/observability"
)

const (
	recentSessionsLimit   = 10
	upcomingSessionsLimit = 5
)

// Service orchestrates recommendation, scheduling and profile workflows.
type Service struct {
	store Store
	cache AnalyticsCache
	log   *logger.Logger
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithAnalyticsCache installs a cache for Analytics results.
func WithAnalyticsCache(cache AnalyticsCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: noopCache{},
		log:   logger.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListConditions returns the condition catalog, optionally filtered by search text.
func (s *Service) ListConditions(ctx context.Context, search string) ([]Condition, error) {
	return s.store.ListConditions(ctx, search)
}

// Generate produces personalised recommendations for the given conditions, reusing any
// active recommendation the caller already holds for the same exercise and condition.
func (s *Service) Generate(ctx context.Context, owner Owner, conditionIDs []int64, prefs *Preferences) ([]RecommendationDetail, error) {
	started := time.Now()
	defer func() { observability.ObserveGenerate(time.Since(started)) }()

	if len(conditionIDs) == 0 {
		return nil, fmt.Errorf("%w: condition_ids must not be empty", ErrValidation)
	}
	if err := validatePreferences(prefs); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	conditions, err := s.store.ConditionsByID(ctx, conditionIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve conditions: %w", err)
	}
	if len(conditions) == 0 {
		return []RecommendationDetail{}, nil
	}

	resolved := make([]int64, 0, len(conditions))
	for _, c := range conditions {
		resolved = append(resolved, c.ID)
	}
	candidates, err := s.store.CandidateExercises(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	candidates = FilterCandidates(candidates, prefs)
	if len(candidates) == 0 {
		return []RecommendationDetail{}, nil
	}

	p := resolvePersonalization(profile, prefs)
	now := s.now()
	out := make([]RecommendationDetail, 0, len(candidates)*len(conditions))
	for _, candidate := range candidates {
		for _, condition := range conditions {
			draft := draftRecommendation(owner, candidate, condition, p, now)
			rec, created, err := s.store.ReuseOrCreateActive(ctx, draft)
			if err != nil {
				return nil, fmt.Errorf("persist recommendation: %w", err)
			}
			observability.RecordRecommendation(created)
			if created {
				observability.RecordRecommendationPersisted(rec.CreatedAt)
			}
			out = append(out, RecommendationDetail{Recommendation: rec, Exercise: candidate.Exercise, Condition: condition})
		}
	}

	s.invalidate(ctx, owner)
	return RankRecommendations(out), nil
}

func validatePreferences(prefs *Preferences) error {
	if prefs == nil {
		return nil
	}
	if prefs.AvailableTimePerSession != nil && *prefs.AvailableTimePerSession < 0 {
		return fmt.Errorf("%w: available_time_per_session must not be negative", ErrValidation)
	}
	for _, c := range prefs.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown exercise category %q", ErrValidation, c)
		}
	}
	return nil
}

// GetProfile returns the caller's profile or ErrProfileNotFound.
func (s *Service) GetProfile(ctx context.Context, owner Owner) (*Profile, error) {
	profile, err := s.store.GetProfile(ctx, owner)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// UpsertProfile creates the caller's profile or merges the supplied fields onto it.
func (s *Service) UpsertProfile(ctx context.Context, owner Owner, update ProfileUpdate) (Profile, error) {
	if update.AvailableTimePerSession != nil && *update.AvailableTimePerSession < 0 {
		return Profile{}, fmt.Errorf("%w: available_time_per_session must not be negative", ErrValidation)
	}
	return s.store.UpsertProfile(ctx, owner, update, s.now())
}

// ListRecommendations returns the caller's recommendations ordered by priority.
func (s *Service) ListRecommendations(ctx context.Context, owner Owner, status *RecommendationStatus) ([]RecommendationDetail, error) {
	return s.store.ListRecommendations(ctx, owner, status)
}

// UpdateFeedback records the caller's rating, comments and status on a recommendation.
func (s *Service) UpdateFeedback(ctx context.Context, owner Owner, id int64, input FeedbackInput) (Recommendation, error) {
	if input.UserRating != nil && (*input.UserRating < 1 || *input.UserRating > 5) {
		return Recommendation{}, fmt.Errorf("%w: user_rating must be between 1 and 5", ErrValidation)
	}
	rec, err := s.store.UpdateFeedback(ctx, owner, id, input, s.now())
	if err != nil {
		return Recommendation{}, err
	}
	s.invalidate(ctx, owner)
	return rec, nil
}

// Schedule plans a session for one of the caller's recommendations.
func (s *Service) Schedule(ctx context.Context, owner Owner, input ScheduleInput) (Schedule, error) {
	if input.ScheduledDate.IsZero() {
		return Schedule{}, fmt.Errorf("%w: scheduled_date is required", ErrValidation)
	}
	if input.Duration != nil && *input.Duration <= 0 {
		return Schedule{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if input.Intensity != nil && !input.Intensity.Valid() {
		return Schedule{}, fmt.Errorf("%w: unknown intensity %q", ErrValidation, *input.Intensity)
	}

	detail, err := s.store.GetRecommendation(ctx, owner, input.RecommendationID)
	if err != nil {
		return Schedule{}, err
	}

	schedule := Schedule{
		TenantID:           owner.TenantID,
		UserID:             owner.UserID,
		RecommendationID:   detail.ID,
		ScheduledDate:      input.ScheduledDate.UTC(),
		ScheduledDuration:  detail.RecommendedDuration,
		ScheduledIntensity: detail.RecommendedIntensity,
	}
	if input.Duration != nil {
		schedule.ScheduledDuration = *input.Duration
	}
	if input.Intensity != nil {
		schedule.ScheduledIntensity = *input.Intensity
	}

	created, err := s.store.CreateSchedule(ctx, schedule, s.now())
	if err != nil {
		return Schedule{}, err
	}
	created.ExerciseName = detail.Exercise.Name
	created.ConditionName = detail.Condition.Name
	s.invalidate(ctx, owner)
	return created, nil
}

// Complete marks a session done and folds its actuals into the parent recommendation.
func (s *Service) Complete(ctx context.Context, owner Owner, scheduleID int64, input CompletionInput) (Completion, error) {
	if err := validateCompletion(input); err != nil {
		return Completion{}, err
	}
	completion, err := s.store.CompleteSchedule(ctx, owner, scheduleID, input, s.now())
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			observability.RecordCompletionRejected()
		}
		return Completion{}, err
	}
	observability.RecordSessionCompleted()
	s.invalidate(ctx, owner)
	return completion, nil
}

func validateCompletion(input CompletionInput) error {
	if input.ActualDuration != nil && *input.ActualDuration < 0 {
		return fmt.Errorf("%w: actual_duration must not be negative", ErrValidation)
	}
	if input.ActualIntensity != nil && !input.ActualIntensity.Valid() {
		return fmt.Errorf("%w: unknown intensity %q", ErrValidation, *input.ActualIntensity)
	}
	if input.CompletionRating != nil && (*input.CompletionRating < 1 || *input.CompletionRating > 5) {
		return fmt.Errorf("%w: completion_rating must be between 1 and 5", ErrValidation)
	}
	levels := []struct {
		name  string
		value *int
	}{
		{"energy_level_before", input.EnergyLevelBefore},
		{"energy_level_after", input.EnergyLevelAfter},
		{"pain_level_before", input.PainLevelBefore},
		{"pain_level_after", input.PainLevelAfter},
	}
	for _, l := range levels {
		if l.value != nil && (*l.value < 1 || *l.value > 10) {
			return fmt.Errorf("%w: %s must be between 1 and 10", ErrValidation, l.name)
		}
	}
	return nil
}

// ListSchedules returns the caller's sessions in the optional date window.
func (s *Service) ListSchedules(ctx context.Context, owner Owner, from, to *time.Time) ([]Schedule, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, fmt.Errorf("%w: end_date must not be before start_date", ErrValidation)
	}
	return s.store.ListSchedules(ctx, owner, from, to)
}

// Analytics summarises the caller's progress, served from cache when possible.
func (s *Service) Analytics(ctx context.Context, owner Owner) (Analytics, error) {
	if cached, ok, err := s.cache.Get(ctx, owner); err != nil {
		s.log.Warn("analytics cache read failed", "tenant_id", owner.TenantID, "user_id", owner.UserID, "error", err)
	} else if ok && cached != nil {
		return *cached, nil
	}

	summary, err := s.store.AnalyticsSummary(ctx, owner)
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics summary: %w", err)
	}
	summary.AverageRating = math.Round(summary.AverageRating*100) / 100

	recent, err := s.store.RecentSessions(ctx, owner, recentSessionsLimit)
	if err != nil {
		return Analytics{}, fmt.Errorf("recent sessions: %w", err)
	}
	upcoming, err := s.store.UpcomingSessions(ctx, owner, s.now(), upcomingSessionsLimit)
	if err != nil {
		return Analytics{}, fmt.Errorf("upcoming sessions: %w", err)
	}

	analytics := Analytics{Summary: summary, RecentSessions: recent, UpcomingSessions: upcoming}
	if err := s.cache.Set(ctx, owner, analytics); err != nil {
		s.log.Warn("analytics cache write failed", "tenant_id", owner.TenantID, "user_id", owner.UserID, "error", err)
	}
	return analytics, nil
}

func (s *Service) invalidate(ctx context.Context, owner Owner) {
	if err := s.cache.Invalidate(ctx, owner); err != nil {
		s.log.Warn("analytics cache invalidation failed", "tenant_id", owner.TenantID, "user_id", owner.UserID, "error", err)
	}
}
