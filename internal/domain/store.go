package domain

import (
	"context"
	"time"
)

// CatalogStore reads the static condition and exercise catalog.
type CatalogStore interface {
	// ListConditions returns all conditions ordered by name. A non-empty search filters
	// by case-insensitive substring over name, category and description.
	ListConditions(ctx context.Context, search string) ([]Condition, error)
	// ConditionsByID resolves ids, silently dropping unknown ones. Result is ordered by id.
	ConditionsByID(ctx context.Context, ids []int64) ([]Condition, error)
	// CandidateExercises returns every active exercise associated with any of the given
	// conditions, with effectiveness and safety averaged over the matched associations.
	CandidateExercises(ctx context.Context, conditionIDs []int64) ([]Candidate, error)
}

// ProfileStore persists user health profiles.
type ProfileStore interface {
	// GetProfile returns nil without error when the user has no profile.
	GetProfile(ctx context.Context, owner Owner) (*Profile, error)
	UpsertProfile(ctx context.Context, owner Owner, update ProfileUpdate, now time.Time) (Profile, error)
}

// RecommendationStore persists personalised recommendations.
type RecommendationStore interface {
	// ReuseOrCreateActive returns the existing active recommendation for the
	// (owner, exercise, condition) of rec, or inserts rec. created reports whether a row
	// was inserted. Implementations must be safe against concurrent callers.
	ReuseOrCreateActive(ctx context.Context, rec Recommendation) (Recommendation, bool, error)
	GetRecommendation(ctx context.Context, owner Owner, id int64) (RecommendationDetail, error)
	ListRecommendations(ctx context.Context, owner Owner, status *RecommendationStatus) ([]RecommendationDetail, error)
	UpdateFeedback(ctx context.Context, owner Owner, id int64, input FeedbackInput, now time.Time) (Recommendation, error)
}

// ScheduleStore persists planned sessions and completion aggregates.
type ScheduleStore interface {
	// CreateSchedule inserts s and moves the parent's next_scheduled forward when s is
	// in the future and earlier than the current value.
	CreateSchedule(ctx context.Context, s Schedule, now time.Time) (Schedule, error)
	// CompleteSchedule marks the schedule completed and folds the actuals into the
	// parent recommendation atomically. A completed schedule yields ErrAlreadyCompleted.
	CompleteSchedule(ctx context.Context, owner Owner, id int64, input CompletionInput, now time.Time) (Completion, error)
	// ListSchedules returns the owner's schedules ordered by date, optionally bounded.
	ListSchedules(ctx context.Context, owner Owner, from, to *time.Time) ([]Schedule, error)
	AnalyticsSummary(ctx context.Context, owner Owner) (AnalyticsSummary, error)
	RecentSessions(ctx context.Context, owner Owner, limit int) ([]SessionSummary, error)
	UpcomingSessions(ctx context.Context, owner Owner, from time.Time, limit int) ([]SessionSummary, error)
}

// Store is the full persistence contract used by Service.
type Store interface {
	CatalogStore
	ProfileStore
	RecommendationStore
	ScheduleStore
}

// AnalyticsCache caches per-user analytics.
type AnalyticsCache interface {
	Get(ctx context.Context, owner Owner) (*Analytics, bool, error)
	Set(ctx context.Context, owner Owner, analytics Analytics) error
	Invalidate(ctx context.Context, owner Owner) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, Owner) (*Analytics, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, Owner, Analytics) error {
	return nil
}

func (noopCache) Invalidate(context.Context, Owner) error {
	return nil
}
