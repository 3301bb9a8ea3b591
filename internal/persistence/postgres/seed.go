package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/catalog"
)

// SeedResult counts the catalog rows written by Seed.
type SeedResult struct {
	Conditions   int
	Exercises    int
	Associations int
}

// Seed upserts the dataset by name in a single transaction. Running it twice leaves the
// catalog unchanged.
func (s *Store) Seed(ctx context.Context, ds catalog.Dataset) (SeedResult, error) {
	if err := ds.Validate(); err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		conditionIDs := make(map[string]int64, len(ds.Conditions))
		for _, c := range ds.Conditions {
			var id int64
			err := tx.QueryRow(ctx, `INSERT INTO disease_conditions (name, category, description, severity_levels,
                    exercise_restrictions, recommended_intensity, special_considerations, is_chronic, requires_medical_clearance)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
                ON CONFLICT (name) DO UPDATE SET
                    category=EXCLUDED.category, description=EXCLUDED.description, severity_levels=EXCLUDED.severity_levels,
                    exercise_restrictions=EXCLUDED.exercise_restrictions, recommended_intensity=EXCLUDED.recommended_intensity,
                    special_considerations=EXCLUDED.special_considerations, is_chronic=EXCLUDED.is_chronic,
                    requires_medical_clearance=EXCLUDED.requires_medical_clearance
                RETURNING condition_id`,
				c.Name, c.Category, c.Description, nonNil(c.SeverityLevels), nonNil(c.ExerciseRestrictions),
				c.RecommendedIntensity, c.SpecialConsiderations, c.IsChronic, c.RequiresMedicalClearance,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("condition %q: %w", c.Name, err)
			}
			conditionIDs[c.Name] = id
			result.Conditions++
		}

		exerciseIDs := make(map[string]int64, len(ds.Exercises))
		for _, e := range ds.Exercises {
			var id int64
			err := tx.QueryRow(ctx, `INSERT INTO health_exercises (name, category, difficulty_level, description, instructions,
                    duration_minutes, repetitions, sets, equipment_needed, primary_benefits, contraindications,
                    modifications, safety_tips, video_url, image_url, is_active)
                VALUES ($1,$2,$3,$4,$5,NULLIF($6, 0),NULLIF($7, 0),NULLIF($8, 0),$9,$10,$11,$12,$13,$14,$15,$16)
                ON CONFLICT (name) DO UPDATE SET
                    category=EXCLUDED.category, difficulty_level=EXCLUDED.difficulty_level, description=EXCLUDED.description,
                    instructions=EXCLUDED.instructions, duration_minutes=EXCLUDED.duration_minutes,
                    repetitions=EXCLUDED.repetitions, sets=EXCLUDED.sets, equipment_needed=EXCLUDED.equipment_needed,
                    primary_benefits=EXCLUDED.primary_benefits, contraindications=EXCLUDED.contraindications,
                    modifications=EXCLUDED.modifications, safety_tips=EXCLUDED.safety_tips,
                    video_url=EXCLUDED.video_url, image_url=EXCLUDED.image_url, is_active=EXCLUDED.is_active
                RETURNING exercise_id`,
				e.Name, e.Category, e.Difficulty, e.Description, nonNil(e.Instructions),
				e.DurationMinutes, e.Repetitions, e.Sets, nonNil(e.EquipmentNeeded), nonNil(e.PrimaryBenefits),
				nonNil(e.Contraindications), nonNil(e.Modifications), nonNil(e.SafetyTips), e.VideoURL, e.ImageURL, e.IsActive,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("exercise %q: %w", e.Name, err)
			}
			exerciseIDs[e.Name] = id
			result.Exercises++
		}

		for _, m := range ds.Mappings {
			if _, err := tx.Exec(ctx, `INSERT INTO exercise_condition_associations (exercise_id, condition_id, effectiveness_score, safety_score)
                VALUES ($1,$2,$3,$4)
                ON CONFLICT (exercise_id, condition_id) DO UPDATE SET
                    effectiveness_score=EXCLUDED.effectiveness_score, safety_score=EXCLUDED.safety_score`,
				exerciseIDs[m.Exercise], conditionIDs[m.Condition], m.Effectiveness, m.Safety); err != nil {
				return fmt.Errorf("association %s/%s: %w", m.Exercise, m.Condition, err)
			}
			result.Associations++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
