package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/events"
)

// reuseAttempts bounds the insert/select loop when the active row is discontinued
// between the conflicting insert and the follow-up read.
const reuseAttempts = 3

const recommendationDetailQuery = `SELECT ` + recommendationColumns + `, ` + exerciseColumns + `, ` + conditionColumns + `
        FROM exercise_recommendations r
        JOIN health_exercises e ON e.exercise_id = r.exercise_id
        JOIN disease_conditions c ON c.condition_id = r.condition_id`

// ReuseOrCreateActive implements domain.RecommendationStore. The partial unique index on
// active rows arbitrates concurrent inserts.
func (s *Store) ReuseOrCreateActive(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, bool, error) {
	var (
		out     domain.Recommendation
		created bool
	)
	err := s.withTenant(ctx, rec.TenantID, func(tx pgx.Tx) error {
		for attempt := 0; attempt < reuseAttempts; attempt++ {
			err := tx.QueryRow(ctx, `INSERT INTO exercise_recommendations AS r (
                    tenant_id, user_id, exercise_id, condition_id, recommended_duration, recommended_frequency,
                    recommended_intensity, reasoning, expected_benefits, modifications_applied, status, priority_score,
                    start_date, target_end_date, created_at, updated_at)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'active',$11,$12,$13,$14,$14)
                ON CONFLICT (tenant_id, user_id, exercise_id, condition_id) WHERE status = 'active' DO NOTHING
                RETURNING `+recommendationColumns,
				rec.TenantID, rec.UserID, rec.ExerciseID, rec.ConditionID, rec.RecommendedDuration, rec.RecommendedFrequency,
				rec.RecommendedIntensity, rec.Reasoning, nonNil(rec.ExpectedBenefits), nonNil(rec.ModificationsApplied), rec.PriorityScore,
				rec.StartDate, rec.TargetEndDate, rec.CreatedAt,
			).Scan(recommendationDest(&out)...)
			if err == nil {
				created = true
				return insertOutbox(ctx, tx, recommendationRef(out), events.TypeRecommendationCreated, events.RecommendationCreated{
					RecommendationID: out.ID,
					TenantID:         out.TenantID,
					UserID:           out.UserID,
					ExerciseID:       out.ExerciseID,
					ConditionID:      out.ConditionID,
					PriorityScore:    out.PriorityScore,
					Frequency:        string(out.RecommendedFrequency),
					Intensity:        string(out.RecommendedIntensity),
					DurationMin:      out.RecommendedDuration,
					CreatedAt:        out.CreatedAt,
				})
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}

			err = tx.QueryRow(ctx, `SELECT `+recommendationColumns+`
                FROM exercise_recommendations r
                WHERE r.tenant_id=$1 AND r.user_id=$2 AND r.exercise_id=$3 AND r.condition_id=$4 AND r.status='active'`,
				rec.TenantID, rec.UserID, rec.ExerciseID, rec.ConditionID,
			).Scan(recommendationDest(&out)...)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}
		return fmt.Errorf("active recommendation for exercise %d and condition %d kept changing", rec.ExerciseID, rec.ConditionID)
	})
	if err != nil {
		return domain.Recommendation{}, false, err
	}
	return out, created, nil
}

// GetRecommendation implements domain.RecommendationStore.
func (s *Store) GetRecommendation(ctx context.Context, owner domain.Owner, id int64) (domain.RecommendationDetail, error) {
	var d domain.RecommendationDetail
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, recommendationDetailQuery+`
            WHERE r.recommendation_id=$1 AND r.tenant_id=$2 AND r.user_id=$3`, id, owner.TenantID, owner.UserID).Scan(recommendationDetailDest(&d)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecommendationNotFound
		}
		return err
	})
	if err != nil {
		return domain.RecommendationDetail{}, err
	}
	return d, nil
}

// ListRecommendations implements domain.RecommendationStore.
func (s *Store) ListRecommendations(ctx context.Context, owner domain.Owner, status *domain.RecommendationStatus) ([]domain.RecommendationDetail, error) {
	out := make([]domain.RecommendationDetail, 0)
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, recommendationDetailQuery+`
            WHERE r.tenant_id=$1 AND r.user_id=$2 AND ($3::text IS NULL OR r.status = $3)
            ORDER BY r.priority_score DESC, r.recommendation_id`, owner.TenantID, owner.UserID, stringPtr(status))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d domain.RecommendationDetail
			if err := rows.Scan(recommendationDetailDest(&d)...); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFeedback implements domain.RecommendationStore.
func (s *Store) UpdateFeedback(ctx context.Context, owner domain.Owner, id int64, input domain.FeedbackInput, now time.Time) (domain.Recommendation, error) {
	var rec domain.Recommendation
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE exercise_recommendations AS r SET
                user_rating = COALESCE($4, r.user_rating),
                user_feedback = COALESCE($5, r.user_feedback),
                difficulty_feedback = COALESCE($6, r.difficulty_feedback),
                status = COALESCE($7, r.status),
                updated_at = $8
            WHERE r.recommendation_id=$1 AND r.tenant_id=$2 AND r.user_id=$3
            RETURNING `+recommendationColumns,
			id, owner.TenantID, owner.UserID,
			input.UserRating, input.UserFeedback, stringPtr(input.DifficultyFeedback), stringPtr(input.Status), now,
		).Scan(recommendationDest(&rec)...)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.ErrRecommendationNotFound
		case isUniqueViolation(err):
			return domain.ErrActiveRecommendationExists
		case err != nil:
			return err
		}

		return insertOutbox(ctx, tx, recommendationRef(rec), events.TypeRecommendationUpdated, events.RecommendationUpdated{
			RecommendationID:   rec.ID,
			TenantID:           rec.TenantID,
			UserID:             rec.UserID,
			Status:             string(rec.Status),
			UserRating:         rec.UserRating,
			DifficultyFeedback: string(rec.DifficultyFeedback),
			OccurredAt:         now,
		})
	})
	if err != nil {
		return domain.Recommendation{}, err
	}
	return rec, nil
}

func recommendationRef(r domain.Recommendation) aggregateRef {
	return aggregateRef{
		Type:             "recommendation",
		ID:               r.ID,
		TenantID:         r.TenantID,
		UserID:           r.UserID,
		RecommendationID: r.ID,
	}
}
