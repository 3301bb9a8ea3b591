package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/healthanalysis/internal/catalog"
	"example.com/healthanalysis/internal/domain"
)

var owner = domain.Owner{TenantID: "tenant-a", UserID: "user-1"}

func TestReuseOrCreateActiveIsRaceFree(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, _, err := store.ReuseOrCreateActive(ctx, domain.Recommendation{
				TenantID: owner.TenantID, UserID: owner.UserID,
				ExerciseID: 1, ConditionID: 2, Status: domain.StatusActive,
			})
			assert.NoError(t, err)
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestCandidateExercisesAveragesAcrossConditions(t *testing.T) {
	store, err := NewSeededStore(catalog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	conditions, err := store.ListConditions(ctx, "")
	require.NoError(t, err)
	byName := make(map[string]int64)
	for _, c := range conditions {
		byName[c.Name] = c.ID
	}

	candidates, err := store.CandidateExercises(ctx, []int64{byName["Hypertension"], byName["Type 2 Diabetes"]})
	require.NoError(t, err)

	var walking *domain.Candidate
	for i := range candidates {
		if candidates[i].Exercise.Name == "Walking" {
			walking = &candidates[i]
		}
	}
	require.NotNil(t, walking)
	assert.Equal(t, 2, walking.MatchedConditions)
	assert.InDelta(t, 0.875, walking.MeanEffectiveness, 1e-9)
	assert.InDelta(t, 0.925, walking.MeanSafety, 1e-9)
}

func TestListConditionsSearch(t *testing.T) {
	store, err := NewSeededStore(catalog.Default())
	require.NoError(t, err)

	matches, err := store.ListConditions(context.Background(), "CARDIO")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Heart Disease", matches[0].Name)
	assert.Equal(t, "Hypertension", matches[1].Name)
}

func TestInactiveExercisesAreNotCandidates(t *testing.T) {
	store := NewStore()
	cond := store.AddCondition(domain.Condition{Name: "Hypertension"})
	ex := store.AddExercise(domain.Exercise{Name: "Sprinting", Category: domain.CategoryCardio, Difficulty: domain.DifficultyAdvanced})
	store.Associate(domain.Association{ExerciseID: ex.ID, ConditionID: cond.ID, EffectivenessScore: 0.9, SafetyScore: 0.9})

	candidates, err := store.CandidateExercises(context.Background(), []int64{cond.ID})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCreateScheduleMovesNextScheduledForward(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rec, _, err := store.ReuseOrCreateActive(ctx, domain.Recommendation{
		TenantID: owner.TenantID, UserID: owner.UserID, ExerciseID: 1, ConditionID: 1, Status: domain.StatusActive,
	})
	require.NoError(t, err)

	later := now.Add(72 * time.Hour)
	sooner := now.Add(24 * time.Hour)
	for _, date := range []time.Time{later, sooner, later} {
		_, err := store.CreateSchedule(ctx, domain.Schedule{
			TenantID: owner.TenantID, UserID: owner.UserID, RecommendationID: rec.ID, ScheduledDate: date,
		}, now)
		require.NoError(t, err)
	}
	_, err = store.CreateSchedule(ctx, domain.Schedule{
		TenantID: owner.TenantID, UserID: owner.UserID, RecommendationID: rec.ID, ScheduledDate: now.Add(-time.Hour),
	}, now)
	require.NoError(t, err)

	detail, err := store.GetRecommendation(ctx, owner, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.NextScheduled)
	assert.True(t, detail.NextScheduled.Equal(sooner))
}

func TestCreateScheduleRejectsForeignRecommendation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	rec, _, err := store.ReuseOrCreateActive(ctx, domain.Recommendation{
		TenantID: owner.TenantID, UserID: owner.UserID, ExerciseID: 1, ConditionID: 1, Status: domain.StatusActive,
	})
	require.NoError(t, err)

	_, err = store.CreateSchedule(ctx, domain.Schedule{
		TenantID: owner.TenantID, UserID: "intruder", RecommendationID: rec.ID, ScheduledDate: time.Now(),
	}, time.Now())
	require.ErrorIs(t, err, domain.ErrRecommendationNotFound)
}

func TestUpdateFeedbackRejectsSecondActive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, _, err := store.ReuseOrCreateActive(ctx, domain.Recommendation{
		TenantID: owner.TenantID, UserID: owner.UserID, ExerciseID: 1, ConditionID: 1, Status: domain.StatusActive,
	})
	require.NoError(t, err)
	paused := domain.StatusPaused
	_, err = store.UpdateFeedback(ctx, owner, first.ID, domain.FeedbackInput{Status: &paused}, now)
	require.NoError(t, err)

	_, created, err := store.ReuseOrCreateActive(ctx, domain.Recommendation{
		TenantID: owner.TenantID, UserID: owner.UserID, ExerciseID: 1, ConditionID: 1, Status: domain.StatusActive,
	})
	require.NoError(t, err)
	require.True(t, created)

	active := domain.StatusActive
	_, err = store.UpdateFeedback(ctx, owner, first.ID, domain.FeedbackInput{Status: &active}, now)
	require.ErrorIs(t, err, domain.ErrActiveRecommendationExists)
}
