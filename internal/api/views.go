package api

import (
	"time"

	"example.com/healthanalysis/internal/domain"
)

// GenerateRequest is the payload for POST /health-analysis/recommendations.
type GenerateRequest struct {
	ConditionIDs    []int64             `json:"condition_ids"`
	UserPreferences *PreferencesRequest `json:"user_preferences,omitempty"`
}

// PreferencesRequest carries optional per-call overrides.
type PreferencesRequest struct {
	FitnessLevel            *string  `json:"fitness_level,omitempty"`
	ExercisePreferences     []string `json:"exercise_preferences,omitempty"`
	AvailableTimePerSession *int     `json:"available_time_per_session,omitempty"`
}

func (p *PreferencesRequest) toDomain() (*domain.Preferences, error) {
	if p == nil {
		return nil, nil
	}
	prefs := &domain.Preferences{AvailableTimePerSession: p.AvailableTimePerSession}
	if p.FitnessLevel != nil {
		level, err := domain.ParseFitnessLevel(*p.FitnessLevel)
		if err != nil {
			return nil, err
		}
		prefs.FitnessLevel = &level
	}
	for _, raw := range p.ExercisePreferences {
		category, err := domain.ParseExerciseCategory(raw)
		if err != nil {
			return nil, err
		}
		prefs.Categories = append(prefs.Categories, category)
	}
	return prefs, nil
}

// ProfileRequest is the payload for POST /health-analysis/profile. Omitted fields are
// left unchanged on an existing profile.
type ProfileRequest struct {
	CurrentConditions       *[]string       `json:"current_conditions,omitempty"`
	FitnessLevel            *string         `json:"fitness_level,omitempty"`
	ExercisePreferences     *[]string       `json:"exercise_preferences,omitempty"`
	ExerciseRestrictions    *[]string       `json:"exercise_restrictions,omitempty"`
	PrimaryGoals            *[]string       `json:"primary_goals,omitempty"`
	AvailableTimePerSession *int            `json:"available_time_per_session,omitempty"`
	PreferredSchedule       *map[string]any `json:"preferred_schedule,omitempty"`
	EquipmentAvailable      *[]string       `json:"equipment_available,omitempty"`
	MedicalClearanceDate    *time.Time      `json:"medical_clearance_date,omitempty"`
	HealthcareProviderNotes *string         `json:"healthcare_provider_notes,omitempty"`
}

func (p ProfileRequest) toDomain() (domain.ProfileUpdate, error) {
	update := domain.ProfileUpdate{
		CurrentConditions:       p.CurrentConditions,
		ExercisePreferences:     p.ExercisePreferences,
		ExerciseRestrictions:    p.ExerciseRestrictions,
		PrimaryGoals:            p.PrimaryGoals,
		AvailableTimePerSession: p.AvailableTimePerSession,
		PreferredSchedule:       p.PreferredSchedule,
		EquipmentAvailable:      p.EquipmentAvailable,
		MedicalClearanceDate:    p.MedicalClearanceDate,
		HealthcareProviderNotes: p.HealthcareProviderNotes,
	}
	if p.FitnessLevel != nil {
		level, err := domain.ParseFitnessLevel(*p.FitnessLevel)
		if err != nil {
			return domain.ProfileUpdate{}, err
		}
		update.FitnessLevel = &level
	}
	return update, nil
}

// FeedbackRequest is the payload for PUT /health-analysis/recommendations/{id}/feedback.
type FeedbackRequest struct {
	UserRating         *int    `json:"user_rating,omitempty"`
	UserFeedback       *string `json:"user_feedback,omitempty"`
	DifficultyFeedback *string `json:"difficulty_feedback,omitempty"`
	Status             *string `json:"status,omitempty"`
}

func (f FeedbackRequest) toDomain() (domain.FeedbackInput, error) {
	input := domain.FeedbackInput{UserRating: f.UserRating, UserFeedback: f.UserFeedback}
	if f.DifficultyFeedback != nil {
		v, err := domain.ParseDifficultyFeedback(*f.DifficultyFeedback)
		if err != nil {
			return domain.FeedbackInput{}, err
		}
		input.DifficultyFeedback = &v
	}
	if f.Status != nil {
		v, err := domain.ParseRecommendationStatus(*f.Status)
		if err != nil {
			return domain.FeedbackInput{}, err
		}
		input.Status = &v
	}
	return input, nil
}

// ScheduleRequest is the payload for POST /health-analysis/schedule.
type ScheduleRequest struct {
	RecommendationID   int64     `json:"recommendation_id"`
	ScheduledDate      time.Time `json:"scheduled_date"`
	ScheduledDuration  *int      `json:"scheduled_duration,omitempty"`
	ScheduledIntensity *string   `json:"scheduled_intensity,omitempty"`
}

func (s ScheduleRequest) toDomain() (domain.ScheduleInput, error) {
	input := domain.ScheduleInput{
		RecommendationID: s.RecommendationID,
		ScheduledDate:    s.ScheduledDate,
		Duration:         s.ScheduledDuration,
	}
	if s.ScheduledIntensity != nil {
		v, err := domain.ParseIntensity(*s.ScheduledIntensity)
		if err != nil {
			return domain.ScheduleInput{}, err
		}
		input.Intensity = &v
	}
	return input, nil
}

// CompletionRequest is the payload for PUT /health-analysis/schedule/{id}/complete.
type CompletionRequest struct {
	ActualDuration    *int    `json:"actual_duration,omitempty"`
	ActualIntensity   *string `json:"actual_intensity,omitempty"`
	CompletionRating  *int    `json:"completion_rating,omitempty"`
	EnergyLevelBefore *int    `json:"energy_level_before,omitempty"`
	EnergyLevelAfter  *int    `json:"energy_level_after,omitempty"`
	PainLevelBefore   *int    `json:"pain_level_before,omitempty"`
	PainLevelAfter    *int    `json:"pain_level_after,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

func (c CompletionRequest) toDomain() (domain.CompletionInput, error) {
	input := domain.CompletionInput{
		ActualDuration:    c.ActualDuration,
		CompletionRating:  c.CompletionRating,
		EnergyLevelBefore: c.EnergyLevelBefore,
		EnergyLevelAfter:  c.EnergyLevelAfter,
		PainLevelBefore:   c.PainLevelBefore,
		PainLevelAfter:    c.PainLevelAfter,
		Notes:             c.Notes,
	}
	if c.ActualIntensity != nil {
		v, err := domain.ParseIntensity(*c.ActualIntensity)
		if err != nil {
			return domain.CompletionInput{}, err
		}
		input.ActualIntensity = &v
	}
	return input, nil
}

// ConditionView exposes a catalog condition.
type ConditionView struct {
	ID                       int64    `json:"id"`
	Name                     string   `json:"name"`
	Category                 string   `json:"category"`
	Description              string   `json:"description"`
	SeverityLevels           []string `json:"severity_levels"`
	RecommendedIntensity     string   `json:"recommended_intensity"`
	RequiresMedicalClearance bool     `json:"requires_medical_clearance"`
	IsChronic                bool     `json:"is_chronic"`
}

// ExerciseView exposes the catalog fields a client needs to perform an exercise.
type ExerciseView struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	DifficultyLevel string   `json:"difficulty_level"`
	Description     string   `json:"description"`
	Instructions    []string `json:"instructions"`
	EquipmentNeeded []string `json:"equipment_needed"`
	PrimaryBenefits []string `json:"primary_benefits"`
	SafetyTips      []string `json:"safety_tips"`
	VideoURL        string   `json:"video_url,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// ConditionRef is the short form of a condition embedded in recommendations.
type ConditionRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// PersonalizationView groups the generated plan for a recommendation.
type PersonalizationView struct {
	RecommendedDuration  int      `json:"recommended_duration"`
	RecommendedFrequency string   `json:"recommended_frequency"`
	RecommendedIntensity string   `json:"recommended_intensity"`
	ModificationsApplied []string `json:"modifications_applied"`
	ExpectedBenefits     []string `json:"expected_benefits"`
}

// ProgressView tracks completion aggregates for a recommendation.
type ProgressView struct {
	TotalSessionsCompleted int        `json:"total_sessions_completed"`
	TotalMinutesExercised  int        `json:"total_minutes_exercised"`
	AverageUserRating      *float64   `json:"average_user_rating"`
	LastPerformed          *time.Time `json:"last_performed,omitempty"`
	NextScheduled          *time.Time `json:"next_scheduled,omitempty"`
}

// RecommendationView exposes a recommendation with its catalog context.
type RecommendationView struct {
	ID                 int64               `json:"id"`
	Exercise           ExerciseView        `json:"exercise"`
	Condition          ConditionRef        `json:"condition"`
	Personalization    PersonalizationView `json:"personalization"`
	Reasoning          string              `json:"reasoning"`
	PriorityScore      float64             `json:"priority_score"`
	Status             string              `json:"status"`
	UserRating         *int                `json:"user_rating,omitempty"`
	UserFeedback       string              `json:"user_feedback,omitempty"`
	DifficultyFeedback string              `json:"difficulty_feedback,omitempty"`
	StartDate          time.Time           `json:"start_date"`
	TargetEndDate      time.Time           `json:"target_end_date"`
	Progress           ProgressView        `json:"progress"`
	CreatedAt          time.Time           `json:"created_at"`
}

// FeedbackResponse echoes the updated recommendation state.
type FeedbackResponse struct {
	ID                 int64     `json:"id"`
	Status             string    `json:"status"`
	UserRating         *int      `json:"user_rating,omitempty"`
	UserFeedback       string    `json:"user_feedback,omitempty"`
	DifficultyFeedback string    `json:"difficulty_feedback,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProfileView exposes a health profile.
type ProfileView struct {
	ID                      int64          `json:"id"`
	CurrentConditions       []string       `json:"current_conditions"`
	FitnessLevel            string         `json:"fitness_level,omitempty"`
	ExercisePreferences     []string       `json:"exercise_preferences"`
	ExerciseRestrictions    []string       `json:"exercise_restrictions"`
	PrimaryGoals            []string       `json:"primary_goals"`
	AvailableTimePerSession *int           `json:"available_time_per_session,omitempty"`
	PreferredSchedule       map[string]any `json:"preferred_schedule"`
	EquipmentAvailable      []string       `json:"equipment_available"`
	MedicalClearanceDate    *time.Time     `json:"medical_clearance_date,omitempty"`
	HealthcareProviderNotes string         `json:"healthcare_provider_notes,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// ScheduleView exposes a planned or completed session.
type ScheduleView struct {
	ID                 int64      `json:"id"`
	RecommendationID   int64      `json:"recommendation_id"`
	ExerciseName       string     `json:"exercise_name"`
	ConditionName      string     `json:"condition_name"`
	ScheduledDate      time.Time  `json:"scheduled_date"`
	ScheduledDuration  int        `json:"scheduled_duration"`
	ScheduledIntensity string     `json:"scheduled_intensity"`
	IsCompleted        bool       `json:"is_completed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ActualDuration     *int       `json:"actual_duration,omitempty"`
	ActualIntensity    string     `json:"actual_intensity,omitempty"`
	CompletionRating   *int       `json:"completion_rating,omitempty"`
	EnergyLevelBefore  *int       `json:"energy_level_before,omitempty"`
	EnergyLevelAfter   *int       `json:"energy_level_after,omitempty"`
	PainLevelBefore    *int       `json:"pain_level_before,omitempty"`
	PainLevelAfter     *int       `json:"pain_level_after,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// CompletionResponse reports the completed session and the parent's new aggregates.
type CompletionResponse struct {
	Schedule ScheduleView `json:"schedule"`
	Progress ProgressView `json:"progress"`
}

func toConditionView(c domain.Condition) ConditionView {
	return ConditionView{
		ID:                       c.ID,
		Name:                     c.Name,
		Category:                 c.Category,
		Description:              c.Description,
		SeverityLevels:           emptyIfNil(c.SeverityLevels),
		RecommendedIntensity:     string(c.RecommendedIntensity),
		RequiresMedicalClearance: c.RequiresMedicalClearance,
		IsChronic:                c.IsChronic,
	}
}

func toRecommendationView(d domain.RecommendationDetail) RecommendationView {
	ex := d.Exercise
	return RecommendationView{
		ID: d.ID,
		Exercise: ExerciseView{
			ID:              ex.ID,
			Name:            ex.Name,
			Category:        string(ex.Category),
			DifficultyLevel: string(ex.Difficulty),
			Description:     ex.Description,
			Instructions:    emptyIfNil(ex.Instructions),
			EquipmentNeeded: emptyIfNil(ex.EquipmentNeeded),
			PrimaryBenefits: emptyIfNil(ex.PrimaryBenefits),
			SafetyTips:      emptyIfNil(ex.SafetyTips),
			VideoURL:        ex.VideoURL,
			ImageURL:        ex.ImageURL,
		},
		Condition: ConditionRef{ID: d.Condition.ID, Name: d.Condition.Name, Category: d.Condition.Category},
		Personalization: PersonalizationView{
			RecommendedDuration:  d.RecommendedDuration,
			RecommendedFrequency: string(d.RecommendedFrequency),
			RecommendedIntensity: string(d.RecommendedIntensity),
			ModificationsApplied: emptyIfNil(d.ModificationsApplied),
			ExpectedBenefits:     emptyIfNil(d.ExpectedBenefits),
		},
		Reasoning:          d.Reasoning,
		PriorityScore:      d.PriorityScore,
		Status:             string(d.Status),
		UserRating:         d.UserRating,
		UserFeedback:       d.UserFeedback,
		DifficultyFeedback: string(d.DifficultyFeedback),
		StartDate:          d.StartDate,
		TargetEndDate:      d.TargetEndDate,
		Progress:           toProgressView(d.Recommendation),
		CreatedAt:          d.CreatedAt,
	}
}

func toProgressView(r domain.Recommendation) ProgressView {
	return ProgressView{
		TotalSessionsCompleted: r.TotalSessionsCompleted,
		TotalMinutesExercised:  r.TotalMinutesExercised,
		AverageUserRating:      r.AverageUserRating,
		LastPerformed:          r.LastPerformed,
		NextScheduled:          r.NextScheduled,
	}
}

func toProfileView(p domain.Profile) ProfileView {
	schedule := p.PreferredSchedule
	if schedule == nil {
		schedule = map[string]any{}
	}
	return ProfileView{
		ID:                      p.ID,
		CurrentConditions:       emptyIfNil(p.CurrentConditions),
		FitnessLevel:            string(p.FitnessLevel),
		ExercisePreferences:     emptyIfNil(p.ExercisePreferences),
		ExerciseRestrictions:    emptyIfNil(p.ExerciseRestrictions),
		PrimaryGoals:            emptyIfNil(p.PrimaryGoals),
		AvailableTimePerSession: p.AvailableTimePerSession,
		PreferredSchedule:       schedule,
		EquipmentAvailable:      emptyIfNil(p.EquipmentAvailable),
		MedicalClearanceDate:    p.MedicalClearanceDate,
		HealthcareProviderNotes: p.HealthcareProviderNotes,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

func toScheduleView(s domain.Schedule) ScheduleView {
	return ScheduleView{
		ID:                 s.ID,
		RecommendationID:   s.RecommendationID,
		ExerciseName:       s.ExerciseName,
		ConditionName:      s.ConditionName,
		ScheduledDate:      s.ScheduledDate,
		ScheduledDuration:  s.ScheduledDuration,
		ScheduledIntensity: string(s.ScheduledIntensity),
		IsCompleted:        s.IsCompleted,
		CompletedAt:        s.CompletedAt,
		ActualDuration:     s.ActualDuration,
		ActualIntensity:    string(s.ActualIntensity),
		CompletionRating:   s.CompletionRating,
		EnergyLevelBefore:  s.EnergyLevelBefore,
		EnergyLevelAfter:   s.EnergyLevelAfter,
		PainLevelBefore:    s.PainLevelBefore,
		PainLevelAfter:     s.PainLevelAfter,
		Notes:              s.Notes,
	}
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
