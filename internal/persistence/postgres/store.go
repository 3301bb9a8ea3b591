// Package postgres provides the pgx-backed implementation of domain.Store. User-owned
// tables are tenant scoped through row level security keyed on app.tenant_id.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthanalysis/internal/domain"
)

const uniqueViolation = "23505"

var _ domain.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for the catalog, profiles,
// recommendations, schedules and outbox events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// withTenant runs fn inside a transaction with app.tenant_id set for row level security.
func (s *Store) withTenant(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const conditionColumns = `c.condition_id, c.name, c.category, c.description, c.severity_levels, c.exercise_restrictions,
        c.recommended_intensity, c.special_considerations, c.is_chronic, c.requires_medical_clearance`

func conditionDest(c *domain.Condition) []any {
	return []any{&c.ID, &c.Name, &c.Category, &c.Description, &c.SeverityLevels, &c.ExerciseRestrictions,
		&c.RecommendedIntensity, &c.SpecialConsiderations, &c.IsChronic, &c.RequiresMedicalClearance}
}

const exerciseColumns = `e.exercise_id, e.name, e.category, e.difficulty_level, e.description, e.instructions,
        COALESCE(e.duration_minutes, 0), COALESCE(e.repetitions, 0), COALESCE(e.sets, 0), e.equipment_needed,
        e.primary_benefits, e.contraindications, e.modifications, e.safety_tips, e.video_url, e.image_url, e.is_active`

func exerciseDest(e *domain.Exercise) []any {
	return []any{&e.ID, &e.Name, &e.Category, &e.Difficulty, &e.Description, &e.Instructions,
		&e.DurationMinutes, &e.Repetitions, &e.Sets, &e.EquipmentNeeded,
		&e.PrimaryBenefits, &e.Contraindications, &e.Modifications, &e.SafetyTips, &e.VideoURL, &e.ImageURL, &e.IsActive}
}

const recommendationColumns = `r.recommendation_id, r.tenant_id, r.user_id, r.exercise_id, r.condition_id,
        r.recommended_duration, r.recommended_frequency, r.recommended_intensity, r.reasoning, r.expected_benefits,
        r.modifications_applied, r.status, r.priority_score, r.user_rating, r.user_feedback, r.difficulty_feedback,
        r.start_date, r.target_end_date, r.last_performed, r.next_scheduled, r.total_sessions_completed,
        r.total_minutes_exercised, r.average_user_rating, r.created_at, r.updated_at`

func recommendationDest(r *domain.Recommendation) []any {
	return []any{&r.ID, &r.TenantID, &r.UserID, &r.ExerciseID, &r.ConditionID,
		&r.RecommendedDuration, &r.RecommendedFrequency, &r.RecommendedIntensity, &r.Reasoning, &r.ExpectedBenefits,
		&r.ModificationsApplied, &r.Status, &r.PriorityScore, &r.UserRating, &r.UserFeedback, &r.DifficultyFeedback,
		&r.StartDate, &r.TargetEndDate, &r.LastPerformed, &r.NextScheduled, &r.TotalSessionsCompleted,
		&r.TotalMinutesExercised, &r.AverageUserRating, &r.CreatedAt, &r.UpdatedAt}
}

func recommendationDetailDest(d *domain.RecommendationDetail) []any {
	dest := recommendationDest(&d.Recommendation)
	dest = append(dest, exerciseDest(&d.Exercise)...)
	return append(dest, conditionDest(&d.Condition)...)
}

const scheduleColumns = `s.schedule_id, s.tenant_id, s.user_id, s.recommendation_id, s.scheduled_date,
        s.scheduled_duration, s.scheduled_intensity, s.is_completed, s.completed_at, s.actual_duration,
        s.actual_intensity, s.completion_rating, s.energy_level_before, s.energy_level_after,
        s.pain_level_before, s.pain_level_after, s.notes, s.created_at, s.updated_at`

func scheduleDest(s *domain.Schedule) []any {
	return []any{&s.ID, &s.TenantID, &s.UserID, &s.RecommendationID, &s.ScheduledDate,
		&s.ScheduledDuration, &s.ScheduledIntensity, &s.IsCompleted, &s.CompletedAt, &s.ActualDuration,
		&s.ActualIntensity, &s.CompletionRating, &s.EnergyLevelBefore, &s.EnergyLevelAfter,
		&s.PainLevelBefore, &s.PainLevelAfter, &s.Notes, &s.CreatedAt, &s.UpdatedAt}
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
