package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/healthanalysis/internal/catalog"
	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/persistence/memory"
)

var (
	alice = domain.Owner{TenantID: "tenant-a", UserID: "alice"}
	bob   = domain.Owner{TenantID: "tenant-a", UserID: "bob"}
	clock = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store        *memory.Store
	service      *domain.Service
	cache        *fakeCache
	hypertension domain.Condition
	walking      domain.Exercise
}

// newHypertensionFixture seeds one non-chronic condition without a clearance requirement
// and one beginner cardio exercise scored 0.85 effectiveness and 0.9 safety.
func newHypertensionFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	cond := store.AddCondition(domain.Condition{
		Name:                 "Hypertension",
		Category:             "cardiovascular",
		RecommendedIntensity: domain.IntensityLowToModerate,
	})
	walk := store.AddExercise(domain.Exercise{
		Name:            "Walking",
		Category:        domain.CategoryCardio,
		Difficulty:      domain.DifficultyBeginner,
		DurationMinutes: 30,
		PrimaryBenefits: []string{"cardiovascular_health"},
		IsActive:        true,
	})
	store.Associate(domain.Association{ExerciseID: walk.ID, ConditionID: cond.ID, EffectivenessScore: 0.85, SafetyScore: 0.9})

	cache := newFakeCache()
	svc := domain.NewService(store, domain.WithClock(func() time.Time { return clock }), domain.WithAnalyticsCache(cache))
	return fixture{store: store, service: svc, cache: cache, hypertension: cond, walking: walk}
}

func TestGenerateScheduleCompleteScenario(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "Walking", rec.Exercise.Name)
	assert.InDelta(t, 0.924, rec.PriorityScore, 1e-9)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Equal(t, 30, rec.RecommendedDuration)
	assert.Equal(t, domain.FrequencyEveryOtherDay, rec.RecommendedFrequency)
	assert.Contains(t, rec.ExpectedBenefits, "lower_blood_pressure")

	sched, err := fx.service.Schedule(ctx, alice, domain.ScheduleInput{
		RecommendationID: rec.ID,
		ScheduledDate:    clock.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, sched.ScheduledDuration)
	assert.Equal(t, domain.IntensityLowToModerate, sched.ScheduledIntensity)
	assert.Equal(t, "Walking", sched.ExerciseName)

	duration, rating := 30, 4
	done, err := fx.service.Complete(ctx, alice, sched.ID, domain.CompletionInput{ActualDuration: &duration, CompletionRating: &rating})
	require.NoError(t, err)
	assert.True(t, done.Schedule.IsCompleted)
	assert.Equal(t, 1, done.Recommendation.TotalSessionsCompleted)
	assert.Equal(t, 30, done.Recommendation.TotalMinutesExercised)
	require.NotNil(t, done.Recommendation.AverageUserRating)
	assert.InDelta(t, 4.0, *done.Recommendation.AverageUserRating, 1e-9)
	require.NotNil(t, done.Recommendation.LastPerformed)

	_, err = fx.service.Complete(ctx, alice, sched.ID, domain.CompletionInput{ActualDuration: &duration, CompletionRating: &rating})
	require.ErrorIs(t, err, domain.ErrAlreadyCompleted)

	detail, err := fx.store.GetRecommendation(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.TotalSessionsCompleted)
	assert.Equal(t, 30, detail.TotalMinutesExercised)
}

func TestGenerateIsIdempotent(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	first, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	second, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	all, err := fx.service.ListRecommendations(ctx, alice, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerateConcurrentCallsShareRecommendation(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := fx.service.ListRecommendations(ctx, alice, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerateEdgeCases(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	_, err := fx.service.Generate(ctx, alice, nil, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	recs, err := fx.service.Generate(ctx, alice, []int64{9999}, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	lonely := fx.store.AddCondition(domain.Condition{Name: "Gout"})
	recs, err = fx.service.Generate(ctx, alice, []int64{lonely.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	negative := -5
	_, err = fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, &domain.Preferences{AvailableTimePerSession: &negative})
	require.ErrorIs(t, err, domain.ErrValidation)

	yoga := []domain.ExerciseCategory{domain.CategoryYoga}
	recs, err = fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, &domain.Preferences{Categories: yoga})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGenerateWithSeededCatalogReturnsTopTen(t *testing.T) {
	store, err := memory.NewSeededStore(catalog.Default())
	require.NoError(t, err)
	svc := domain.NewService(store, domain.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	conditions, err := svc.ListConditions(ctx, "")
	require.NoError(t, err)
	ids := make([]int64, 0, len(conditions))
	for _, c := range conditions {
		ids = append(ids, c.ID)
	}

	recs, err := svc.Generate(ctx, alice, ids, nil)
	require.NoError(t, err)
	require.Len(t, recs, domain.MaxRecommendations)
	for i, r := range recs {
		assert.GreaterOrEqual(t, r.PriorityScore, 0.0)
		assert.LessOrEqual(t, r.PriorityScore, 1.0)
		assert.NotEmpty(t, r.Reasoning)
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].PriorityScore, r.PriorityScore)
		}
	}

	// every exercise x condition pair is persisted even though only ten are returned
	all, err := svc.ListRecommendations(ctx, alice, nil)
	require.NoError(t, err)
	assert.Greater(t, len(all), domain.MaxRecommendations)
}

func TestIncrementalAverageAcrossCompletions(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	recID := recs[0].ID

	var last domain.Completion
	for _, rating := range []int{4, 2, 5} {
		sched, err := fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recID, ScheduledDate: clock})
		require.NoError(t, err)
		r := rating
		last, err = fx.service.Complete(ctx, alice, sched.ID, domain.CompletionInput{CompletionRating: &r})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, last.Recommendation.TotalSessionsCompleted)
	assert.Equal(t, 0, last.Recommendation.TotalMinutesExercised)
	require.NotNil(t, last.Recommendation.AverageUserRating)
	assert.InDelta(t, 11.0/3.0, *last.Recommendation.AverageUserRating, 1e-9)
}

func TestOwnershipIsEnforced(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)

	_, err = fx.service.Schedule(ctx, bob, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock})
	require.ErrorIs(t, err, domain.ErrRecommendationNotFound)

	sched, err := fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock})
	require.NoError(t, err)
	_, err = fx.service.Complete(ctx, bob, sched.ID, domain.CompletionInput{})
	require.ErrorIs(t, err, domain.ErrScheduleNotFound)

	rating := 5
	_, err = fx.service.UpdateFeedback(ctx, bob, recs[0].ID, domain.FeedbackInput{UserRating: &rating})
	require.ErrorIs(t, err, domain.ErrRecommendationNotFound)

	bobs, err := fx.service.ListRecommendations(ctx, bob, nil)
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestValidationOfCompletionAndFeedback(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	bad := 6
	_, err := fx.service.UpdateFeedback(ctx, alice, 1, domain.FeedbackInput{UserRating: &bad})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = fx.service.Complete(ctx, alice, 1, domain.CompletionInput{CompletionRating: &bad})
	require.ErrorIs(t, err, domain.ErrValidation)

	eleven := 11
	_, err = fx.service.Complete(ctx, alice, 1, domain.CompletionInput{PainLevelAfter: &eleven})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: 1})
	require.ErrorIs(t, err, domain.ErrValidation)

	from, to := clock, clock.Add(-time.Hour)
	_, err = fx.service.ListSchedules(ctx, alice, &from, &to)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateFeedback(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)

	rating := 5
	text := "felt great"
	hard := domain.FeedbackTooHard
	paused := domain.StatusPaused
	rec, err := fx.service.UpdateFeedback(ctx, alice, recs[0].ID, domain.FeedbackInput{
		UserRating: &rating, UserFeedback: &text, DifficultyFeedback: &hard, Status: &paused,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.UserRating)
	assert.Equal(t, 5, *rec.UserRating)
	assert.Equal(t, "felt great", rec.UserFeedback)
	assert.Equal(t, domain.FeedbackTooHard, rec.DifficultyFeedback)
	assert.Equal(t, domain.StatusPaused, rec.Status)

	active := domain.StatusActive
	list, err := fx.service.ListRecommendations(ctx, alice, &active)
	require.NoError(t, err)
	assert.Empty(t, list)

	// a paused recommendation no longer blocks a fresh active one
	again, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.NotEqual(t, recs[0].ID, again[0].ID)
}

func TestProfileUpsertMergesFields(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	_, err := fx.service.GetProfile(ctx, alice)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)

	beginner := domain.FitnessBeginner
	goals := []string{"lower_blood_pressure"}
	created, err := fx.service.UpsertProfile(ctx, alice, domain.ProfileUpdate{FitnessLevel: &beginner, PrimaryGoals: &goals})
	require.NoError(t, err)
	assert.Equal(t, domain.FitnessBeginner, created.FitnessLevel)

	twenty := 20
	updated, err := fx.service.UpsertProfile(ctx, alice, domain.ProfileUpdate{AvailableTimePerSession: &twenty})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, domain.FitnessBeginner, updated.FitnessLevel)
	assert.Equal(t, []string{"lower_blood_pressure"}, updated.PrimaryGoals)
	require.NotNil(t, updated.AvailableTimePerSession)
	assert.Equal(t, 20, *updated.AvailableTimePerSession)

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 20, recs[0].RecommendedDuration)
	assert.Equal(t, domain.IntensityLowToModerate, recs[0].RecommendedIntensity)
}

func TestAnalyticsUsesCacheAndInvalidates(t *testing.T) {
	fx := newHypertensionFixture(t)
	ctx := context.Background()

	recs, err := fx.service.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.cache.invalidations(alice))

	past, err := fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock.Add(-time.Hour)})
	require.NoError(t, err)
	planned := 40
	_, err = fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock.Add(48 * time.Hour), Duration: &planned})
	require.NoError(t, err)

	duration, rating := 25, 3
	_, err = fx.service.Complete(ctx, alice, past.ID, domain.CompletionInput{ActualDuration: &duration, CompletionRating: &rating})
	require.NoError(t, err)

	analytics, err := fx.service.Analytics(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.Summary.TotalRecommendations)
	assert.Equal(t, 1, analytics.Summary.TotalSessionsCompleted)
	assert.Equal(t, 25, analytics.Summary.TotalMinutesExercised)
	assert.InDelta(t, 3.0, analytics.Summary.AverageRating, 1e-9)
	require.Len(t, analytics.RecentSessions, 1)
	assert.Equal(t, "Walking", analytics.RecentSessions[0].ExerciseName)
	require.NotNil(t, analytics.RecentSessions[0].Duration)
	assert.Equal(t, 25, *analytics.RecentSessions[0].Duration)
	require.Len(t, analytics.UpcomingSessions, 1)
	require.NotNil(t, analytics.UpcomingSessions[0].Duration)
	assert.Equal(t, 40, *analytics.UpcomingSessions[0].Duration)

	_, ok, _ := fx.cache.Get(ctx, alice)
	assert.True(t, ok)

	fx.store.AddCondition(domain.Condition{Name: "unrelated"})
	cached, err := fx.service.Analytics(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, analytics, cached)

	_, err = fx.service.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock.Add(72 * time.Hour)})
	require.NoError(t, err)
	_, ok, _ = fx.cache.Get(ctx, alice)
	assert.False(t, ok)
}

func TestAnalyticsWithoutCacheReadsStore(t *testing.T) {
	fx := newHypertensionFixture(t)
	svc := domain.NewService(fx.store, domain.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	recs, err := svc.Generate(ctx, alice, []int64{fx.hypertension.ID}, nil)
	require.NoError(t, err)
	first, err := svc.Analytics(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, first.UpcomingSessions)

	_, err = svc.Schedule(ctx, alice, domain.ScheduleInput{RecommendationID: recs[0].ID, ScheduledDate: clock.Add(24 * time.Hour)})
	require.NoError(t, err)
	second, err := svc.Analytics(ctx, alice)
	require.NoError(t, err)
	require.Len(t, second.UpcomingSessions, 1)
	require.NotNil(t, second.UpcomingSessions[0].Duration)
	assert.Equal(t, recs[0].RecommendedDuration, *second.UpcomingSessions[0].Duration)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[domain.Owner]domain.Analytics
	dropped map[domain.Owner]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[domain.Owner]domain.Analytics{}, dropped: map[domain.Owner]int{}}
}

func (c *fakeCache) Get(_ context.Context, owner domain.Owner) (*domain.Analytics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[owner]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *fakeCache) Set(_ context.Context, owner domain.Owner, a domain.Analytics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[owner] = a
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, owner domain.Owner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, owner)
	c.dropped[owner]++
	return nil
}

func (c *fakeCache) invalidations(owner domain.Owner) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped[owner]
}
