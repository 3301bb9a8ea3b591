package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/domain"
)

const profileColumns = `profile_id, tenant_id, user_id, current_conditions, fitness_level, exercise_preferences,
        exercise_restrictions, primary_goals, available_time_per_session, preferred_schedule, equipment_available,
        medical_clearance_date, healthcare_provider_notes, created_at, updated_at`

func profileDest(p *domain.Profile) []any {
	return []any{&p.ID, &p.TenantID, &p.UserID, &p.CurrentConditions, &p.FitnessLevel, &p.ExercisePreferences,
		&p.ExerciseRestrictions, &p.PrimaryGoals, &p.AvailableTimePerSession, &p.PreferredSchedule, &p.EquipmentAvailable,
		&p.MedicalClearanceDate, &p.HealthcareProviderNotes, &p.CreatedAt, &p.UpdatedAt}
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, owner domain.Owner) (*domain.Profile, error) {
	var profile *domain.Profile
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		var p domain.Profile
		err := tx.QueryRow(ctx, `SELECT `+profileColumns+`
            FROM user_health_profiles WHERE tenant_id=$1 AND user_id=$2`, owner.TenantID, owner.UserID).Scan(profileDest(&p)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		profile = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpsertProfile implements domain.ProfileStore. The row is locked while the update is merged
// so concurrent partial updates do not overwrite each other.
func (s *Store) UpsertProfile(ctx context.Context, owner domain.Owner, update domain.ProfileUpdate, now time.Time) (domain.Profile, error) {
	var p domain.Profile
	err := s.withTenant(ctx, owner.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO user_health_profiles (tenant_id, user_id, created_at, updated_at)
            VALUES ($1,$2,$3,$3) ON CONFLICT (tenant_id, user_id) DO NOTHING`, owner.TenantID, owner.UserID, now); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT `+profileColumns+`
            FROM user_health_profiles WHERE tenant_id=$1 AND user_id=$2 FOR UPDATE`, owner.TenantID, owner.UserID).Scan(profileDest(&p)...); err != nil {
			return err
		}

		update.Apply(&p)
		p.UpdatedAt = now
		if p.PreferredSchedule == nil {
			p.PreferredSchedule = map[string]any{}
		}

		_, err := tx.Exec(ctx, `UPDATE user_health_profiles SET
                current_conditions=$3, fitness_level=$4, exercise_preferences=$5, exercise_restrictions=$6,
                primary_goals=$7, available_time_per_session=$8, preferred_schedule=$9, equipment_available=$10,
                medical_clearance_date=$11, healthcare_provider_notes=$12, updated_at=$13
            WHERE tenant_id=$1 AND user_id=$2`,
			owner.TenantID, owner.UserID,
			nonNil(p.CurrentConditions), p.FitnessLevel, nonNil(p.ExercisePreferences), nonNil(p.ExerciseRestrictions),
			nonNil(p.PrimaryGoals), p.AvailableTimePerSession, p.PreferredSchedule, nonNil(p.EquipmentAvailable),
			p.MedicalClearanceDate, p.HealthcareProviderNotes, p.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}
