package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/events"
)

const scheduleNamesJoin = `
        JOIN exercise_recommendations r ON r.recommendation_id = s.recommendation_id
        JOIN health_exercises e ON e.exercise_id = r.exercise_id
        JOIN disease_conditions c ON c.condition_id = r.condition_id`

// CreateSchedule implements domain.ScheduleStore.
func (s *Store) CreateSchedule(ctx context.Context, sched domain.Schedule, now time.Time) (domain.Schedule, error) {
	var out domain.Schedule
	err := s.withTenant(ctx, sched.TenantID, func(tx pgx.Tx) error {
		var nextScheduled *time.Time
		err := tx.QueryRow(ctx, `SELECT next_scheduled FROM exercise_recommendations
            WHERE recommendation_id=$1 AND tenant_id=$2 AND user_id=$3 FOR UPDATE`,
			sched.RecommendationID, sched.TenantID, sched.UserID).Scan(&nextScheduled)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecommendationNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `INSERT INTO exercise_schedules AS s (
                tenant_id, user_id, recommendation_id, scheduled_date, scheduled_duration, scheduled_intensity, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
            RETURNING `+scheduleColumns,
			sched.TenantID, sched.UserID, sched.RecommendationID, sched.ScheduledDate, sched.ScheduledDuration,
			sched.ScheduledIntensity, now,
		).Scan(scheduleDest(&out)...)
		if err != nil {
			return err
		}

		if out.ScheduledDate.After(now) && (nextScheduled == nil || out.ScheduledDate.Before(*nextScheduled)) {
			if _, err := tx.Exec(ctx, `UPDATE exercise_recommendations SET next_scheduled=$2, updated_at=$3
                WHERE recommendation_id=$1`, out.RecommendationID, out.ScheduledDate, now); err != nil {
				return err
			}
		}

		return insertOutbox(ctx, tx, scheduleRef(out), events.TypeScheduleCreated, events.ScheduleCreated{
			ScheduleID:       out.ID,
			RecommendationID: out.RecommendationID,
			TenantID:         out.TenantID,
			UserID:           out.UserID,
			ScheduledDate:    out.ScheduledDate,
			DurationMin:      out.ScheduledDuration,
			Intensity:        string(out.ScheduledIntensity),
		})
	})
	if err != nil {
		return domain.Schedule{}, err
	}
	return out, nil
}

// CompleteSchedule implements domain.ScheduleStore. The conditional update on is_completed
// guarantees a session is folded into its recommendation at most once.
func (s *Store) CompleteSchedule(ctx context.Context, owner domain.Owner, id int64, input domain.CompletionInput, now time.Time) (domain.Completion, error) {
	var out domain.Completion
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		sched := &out.Schedule
		err := tx.QueryRow(ctx, `UPDATE exercise_schedules AS s SET
                is_completed = TRUE,
                completed_at = $4,
                actual_duration = $5,
                actual_intensity = COALESCE($6, s.actual_intensity),
                completion_rating = $7,
                energy_level_before = $8,
                energy_level_after = $9,
                pain_level_before = $10,
                pain_level_after = $11,
                notes = COALESCE($12, s.notes),
                updated_at = $4
            WHERE s.schedule_id=$1 AND s.tenant_id=$2 AND s.user_id=$3 AND s.is_completed = FALSE
            RETURNING `+scheduleColumns,
			id, owner.TenantID, owner.UserID, now,
			input.ActualDuration, stringPtr(input.ActualIntensity), input.CompletionRating,
			input.EnergyLevelBefore, input.EnergyLevelAfter, input.PainLevelBefore, input.PainLevelAfter, input.Notes,
		).Scan(scheduleDest(sched)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return completionConflict(ctx, tx, owner, id)
		}
		if err != nil {
			return err
		}

		minutes := 0
		if input.ActualDuration != nil {
			minutes = *input.ActualDuration
		}
		err = tx.QueryRow(ctx, `UPDATE exercise_recommendations AS r SET
                average_user_rating = CASE
                    WHEN $3::int IS NULL THEN r.average_user_rating
                    WHEN r.average_user_rating IS NULL THEN $3::double precision
                    ELSE (r.average_user_rating * r.total_sessions_completed + $3) / (r.total_sessions_completed + 1)
                END,
                total_sessions_completed = r.total_sessions_completed + 1,
                total_minutes_exercised = r.total_minutes_exercised + $2,
                last_performed = $4,
                updated_at = $4
            WHERE r.recommendation_id = $1
            RETURNING `+recommendationColumns,
			sched.RecommendationID, minutes, input.CompletionRating, now,
		).Scan(recommendationDest(&out.Recommendation)...)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, `SELECT e.name, c.name FROM health_exercises e, disease_conditions c
            WHERE e.exercise_id=$1 AND c.condition_id=$2`, out.Recommendation.ExerciseID, out.Recommendation.ConditionID,
		).Scan(&sched.ExerciseName, &sched.ConditionName); err != nil {
			return err
		}

		rec := out.Recommendation
		return insertOutbox(ctx, tx, scheduleRef(*sched), events.TypeScheduleCompleted, events.ScheduleCompleted{
			ScheduleID:             sched.ID,
			RecommendationID:       rec.ID,
			TenantID:               sched.TenantID,
			UserID:                 sched.UserID,
			CompletedAt:            now,
			ActualDuration:         sched.ActualDuration,
			CompletionRating:       sched.CompletionRating,
			TotalSessionsCompleted: rec.TotalSessionsCompleted,
			TotalMinutesExercised:  rec.TotalMinutesExercised,
			AverageUserRating:      rec.AverageUserRating,
		})
	})
	if err != nil {
		return domain.Completion{}, err
	}
	return out, nil
}

// completionConflict tells a missing schedule apart from one completed already.
func completionConflict(ctx context.Context, tx pgx.Tx, owner domain.Owner, id int64) error {
	var completed bool
	err := tx.QueryRow(ctx, `SELECT is_completed FROM exercise_schedules
        WHERE schedule_id=$1 AND tenant_id=$2 AND user_id=$3`, id, owner.TenantID, owner.UserID).Scan(&completed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrScheduleNotFound
	case err != nil:
		return err
	case completed:
		return domain.ErrAlreadyCompleted
	}
	return domain.ErrScheduleNotFound
}

// ListSchedules implements domain.ScheduleStore.
func (s *Store) ListSchedules(ctx context.Context, owner domain.Owner, from, to *time.Time) ([]domain.Schedule, error) {
	out := make([]domain.Schedule, 0)
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+scheduleColumns+`, e.name, c.name
            FROM exercise_schedules s`+scheduleNamesJoin+`
            WHERE s.tenant_id=$1 AND s.user_id=$2
              AND ($3::timestamptz IS NULL OR s.scheduled_date >= $3)
              AND ($4::timestamptz IS NULL OR s.scheduled_date <= $4)
            ORDER BY s.scheduled_date, s.schedule_id`, owner.TenantID, owner.UserID, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sched domain.Schedule
			dest := append(scheduleDest(&sched), &sched.ExerciseName, &sched.ConditionName)
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			out = append(out, sched)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyticsSummary implements domain.ScheduleStore.
func (s *Store) AnalyticsSummary(ctx context.Context, owner domain.Owner) (domain.AnalyticsSummary, error) {
	var summary domain.AnalyticsSummary
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT COUNT(*),
                COALESCE(SUM(total_sessions_completed), 0),
                COALESCE(SUM(total_minutes_exercised), 0),
                COALESCE(AVG(average_user_rating), 0)
            FROM exercise_recommendations WHERE tenant_id=$1 AND user_id=$2`, owner.TenantID, owner.UserID,
		).Scan(&summary.TotalRecommendations, &summary.TotalSessionsCompleted, &summary.TotalMinutesExercised, &summary.AverageRating)
	})
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	return summary, nil
}

// RecentSessions implements domain.ScheduleStore.
func (s *Store) RecentSessions(ctx context.Context, owner domain.Owner, limit int) ([]domain.SessionSummary, error) {
	return s.sessionSummaries(ctx, owner, "s.actual_duration", `
        WHERE s.tenant_id=$1 AND s.user_id=$2 AND s.is_completed AND s.completed_at IS NOT NULL
        ORDER BY s.completed_at DESC, s.schedule_id DESC
        LIMIT $3`, owner.TenantID, owner.UserID, limit)
}

// UpcomingSessions implements domain.ScheduleStore.
func (s *Store) UpcomingSessions(ctx context.Context, owner domain.Owner, from time.Time, limit int) ([]domain.SessionSummary, error) {
	return s.sessionSummaries(ctx, owner, "s.scheduled_duration", `
        WHERE s.tenant_id=$1 AND s.user_id=$2 AND NOT s.is_completed AND s.scheduled_date >= $4
        ORDER BY s.scheduled_date, s.schedule_id
        LIMIT $3`, owner.TenantID, owner.UserID, limit, from)
}

// sessionSummaries lists schedules matching filter. durationColumn is a fixed column
// reference, never user input.
func (s *Store) sessionSummaries(ctx context.Context, owner domain.Owner, durationColumn, filter string, args ...any) ([]domain.SessionSummary, error) {
	out := make([]domain.SessionSummary, 0)
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT s.schedule_id, e.name, s.scheduled_date, s.completed_at, `+durationColumn+`, s.completion_rating
            FROM exercise_schedules s`+scheduleNamesJoin+filter, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var summary domain.SessionSummary
			if err := rows.Scan(&summary.ScheduleID, &summary.ExerciseName, &summary.ScheduledDate,
				&summary.CompletedAt, &summary.Duration, &summary.Rating); err != nil {
				return err
			}
			out = append(out, summary)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scheduleRef(s domain.Schedule) aggregateRef {
	return aggregateRef{
		Type:             "schedule",
		ID:               s.ID,
		TenantID:         s.TenantID,
		UserID:           s.UserID,
		RecommendationID: s.RecommendationID,
	}
}
