package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/domain"
)

// ListConditions implements domain.CatalogStore.
func (s *Store) ListConditions(ctx context.Context, search string) ([]domain.Condition, error) {
	query := `SELECT ` + conditionColumns + ` FROM disease_conditions c`
	var args []any
	if needle := strings.TrimSpace(search); needle != "" {
		query += ` WHERE c.name ILIKE $1 OR c.category ILIKE $1 OR c.description ILIKE $1`
		args = append(args, "%"+escapeLike(needle)+"%")
	}
	query += ` ORDER BY c.name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectConditions(rows)
}

// ConditionsByID implements domain.CatalogStore.
func (s *Store) ConditionsByID(ctx context.Context, ids []int64) ([]domain.Condition, error) {
	if len(ids) == 0 {
		return []domain.Condition{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+conditionColumns+`
        FROM disease_conditions c WHERE c.condition_id = ANY($1) ORDER BY c.condition_id`, ids)
	if err != nil {
		return nil, err
	}
	return collectConditions(rows)
}

func collectConditions(rows pgx.Rows) ([]domain.Condition, error) {
	defer rows.Close()
	out := make([]domain.Condition, 0)
	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(conditionDest(&c)...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CandidateExercises implements domain.CatalogStore.
func (s *Store) CandidateExercises(ctx context.Context, conditionIDs []int64) ([]domain.Candidate, error) {
	if len(conditionIDs) == 0 {
		return []domain.Candidate{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+exerciseColumns+`,
            AVG(a.effectiveness_score), AVG(a.safety_score), COUNT(*)
        FROM health_exercises e
        JOIN exercise_condition_associations a ON a.exercise_id = e.exercise_id
        WHERE a.condition_id = ANY($1) AND e.is_active
        GROUP BY e.exercise_id
        ORDER BY e.exercise_id`, conditionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0)
	for rows.Next() {
		var c domain.Candidate
		dest := append(exerciseDest(&c.Exercise), &c.MeanEffectiveness, &c.MeanSafety, &c.MatchedConditions)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
