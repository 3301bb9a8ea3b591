package domain

import (
	"fmt"
	"strings"
	"time"
)

// Owner identifies the tenant-scoped user that owns profiles, recommendations and schedules.
type Owner struct {
	TenantID string
	UserID   string
}

// ExerciseCategory classifies an exercise in the catalog.
type ExerciseCategory string

const (
	CategoryCardio         ExerciseCategory = "cardio"
	CategoryStrength       ExerciseCategory = "strength"
	CategoryFlexibility    ExerciseCategory = "flexibility"
	CategoryBalance        ExerciseCategory = "balance"
	CategoryRehabilitation ExerciseCategory = "rehabilitation"
	CategoryLowImpact      ExerciseCategory = "low_impact"
	CategoryBreathing      ExerciseCategory = "breathing"
	CategoryYoga           ExerciseCategory = "yoga"
	CategoryPilates        ExerciseCategory = "pilates"
	CategoryWaterTherapy   ExerciseCategory = "water_therapy"
)

// Valid reports whether c is a known category.
func (c ExerciseCategory) Valid() bool {
	switch c {
	case CategoryCardio, CategoryStrength, CategoryFlexibility, CategoryBalance, CategoryRehabilitation,
		CategoryLowImpact, CategoryBreathing, CategoryYoga, CategoryPilates, CategoryWaterTherapy:
		return true
	}
	return false
}

// ParseExerciseCategory normalises and validates a category name.
func ParseExerciseCategory(value string) (ExerciseCategory, error) {
	c := ExerciseCategory(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown exercise category %q", ErrValidation, value)
	}
	return c, nil
}

// Difficulty ranks how demanding an exercise is.
type Difficulty string

const (
	DifficultyBeginner    Difficulty = "beginner"
	DifficultyEasy        Difficulty = "easy"
	DifficultyModerate    Difficulty = "moderate"
	DifficultyChallenging Difficulty = "challenging"
	DifficultyAdvanced    Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyEasy, DifficultyModerate, DifficultyChallenging, DifficultyAdvanced:
		return true
	}
	return false
}

// BeginnerFriendly reports whether the difficulty earns the beginner priority boost.
func (d Difficulty) BeginnerFriendly() bool {
	switch d {
	case DifficultyBeginner, DifficultyEasy:
		return true
	case DifficultyModerate, DifficultyChallenging, DifficultyAdvanced:
		return false
	}
	return false
}

// FitnessLevel is the self-reported fitness of a user.
type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

// ParseFitnessLevel normalises and validates a fitness level.
func ParseFitnessLevel(value string) (FitnessLevel, error) {
	level := FitnessLevel(strings.ToLower(strings.TrimSpace(value)))
	switch level {
	case FitnessBeginner, FitnessIntermediate, FitnessAdvanced:
		return level, nil
	}
	return "", fmt.Errorf("%w: unknown fitness level %q", ErrValidation, value)
}

// AllowedDifficulties maps a fitness level to the difficulties it may be offered.
// A nil result means no restriction.
func (f FitnessLevel) AllowedDifficulties() []Difficulty {
	switch f {
	case FitnessBeginner:
		return []Difficulty{DifficultyBeginner, DifficultyEasy}
	case FitnessIntermediate:
		return []Difficulty{DifficultyEasy, DifficultyModerate}
	case FitnessAdvanced:
		return nil
	}
	return nil
}

// Intensity describes how hard a session should feel.
type Intensity string

const (
	IntensityLow            Intensity = "low"
	IntensityLowToModerate  Intensity = "low_to_moderate"
	IntensityModerate       Intensity = "moderate"
	IntensityModerateToHigh Intensity = "moderate_to_high"
	IntensityHigh           Intensity = "high"
)

// Valid reports whether i is a known intensity.
func (i Intensity) Valid() bool {
	switch i {
	case IntensityLow, IntensityLowToModerate, IntensityModerate, IntensityModerateToHigh, IntensityHigh:
		return true
	}
	return false
}

// ParseIntensity normalises and validates an intensity.
func ParseIntensity(value string) (Intensity, error) {
	i := Intensity(strings.ToLower(strings.TrimSpace(value)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: unknown intensity %q", ErrValidation, value)
	}
	return i, nil
}

// Frequency is how often a recommended exercise should be performed.
type Frequency string

const (
	FrequencyDaily          Frequency = "daily"
	FrequencyEveryOtherDay  Frequency = "every_other_day"
	FrequencyThreeTimesWeek Frequency = "three_times_week"
	FrequencyTwiceWeek      Frequency = "twice_week"
	FrequencyWeekly         Frequency = "weekly"
	FrequencyCustom         Frequency = "custom"
)

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

const (
	StatusActive       RecommendationStatus = "active"
	StatusCompleted    RecommendationStatus = "completed"
	StatusPaused       RecommendationStatus = "paused"
	StatusDiscontinued RecommendationStatus = "discontinued"
)

// ParseRecommendationStatus normalises and validates a status.
func ParseRecommendationStatus(value string) (RecommendationStatus, error) {
	s := RecommendationStatus(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusActive, StatusCompleted, StatusPaused, StatusDiscontinued:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown recommendation status %q", ErrValidation, value)
}

// DifficultyFeedback is the user's verdict on how hard a recommendation felt.
type DifficultyFeedback string

const (
	FeedbackTooEasy   DifficultyFeedback = "too_easy"
	FeedbackJustRight DifficultyFeedback = "just_right"
	FeedbackTooHard   DifficultyFeedback = "too_hard"
)

// ParseDifficultyFeedback normalises and validates difficulty feedback.
func ParseDifficultyFeedback(value string) (DifficultyFeedback, error) {
	f := DifficultyFeedback(strings.ToLower(strings.TrimSpace(value)))
	switch f {
	case FeedbackTooEasy, FeedbackJustRight, FeedbackTooHard:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty feedback %q", ErrValidation, value)
}

// Condition is a named health condition used to key exercise suitability.
type Condition struct {
	ID                       int64
	Name                     string
	Category                 string
	Description              string
	SeverityLevels           []string
	ExerciseRestrictions     []string
	RecommendedIntensity     Intensity
	SpecialConsiderations    string
	IsChronic                bool
	RequiresMedicalClearance bool
}

// HasRestriction reports whether the condition carries the given restriction tag.
func (c Condition) HasRestriction(tag string) bool {
	for _, r := range c.ExerciseRestrictions {
		if r == tag {
			return true
		}
	}
	return false
}

// Exercise is a catalog entry.
type Exercise struct {
	ID                int64
	Name              string
	Category          ExerciseCategory
	Difficulty        Difficulty
	Description       string
	Instructions      []string
	DurationMinutes   int // zero when the catalog has no default
	Repetitions       int
	Sets              int
	EquipmentNeeded   []string
	PrimaryBenefits   []string
	Contraindications []string
	Modifications     []string
	SafetyTips        []string
	VideoURL          string
	ImageURL          string
	IsActive          bool
}

// Association pairs one exercise with one condition.
type Association struct {
	ExerciseID         int64
	ConditionID        int64
	EffectivenessScore float64
	SafetyScore        float64
}

// Candidate is an active exercise matched against a set of conditions, with scores
// averaged across the matched associations.
type Candidate struct {
	Exercise          Exercise
	MeanEffectiveness float64
	MeanSafety        float64
	MatchedConditions int
}

// Profile parameterises recommendation personalisation for a user.
type Profile struct {
	ID                      int64
	TenantID                string
	UserID                  string
	CurrentConditions       []string
	FitnessLevel            FitnessLevel
	ExercisePreferences     []string
	ExerciseRestrictions    []string
	PrimaryGoals            []string
	AvailableTimePerSession *int
	PreferredSchedule       map[string]any
	EquipmentAvailable      []string
	MedicalClearanceDate    *time.Time
	HealthcareProviderNotes string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ProfileUpdate carries the fields to merge onto a profile. Nil fields are left untouched.
type ProfileUpdate struct {
	CurrentConditions       *[]string
	FitnessLevel            *FitnessLevel
	ExercisePreferences     *[]string
	ExerciseRestrictions    *[]string
	PrimaryGoals            *[]string
	AvailableTimePerSession *int
	PreferredSchedule       *map[string]any
	EquipmentAvailable      *[]string
	MedicalClearanceDate    *time.Time
	HealthcareProviderNotes *string
}

// Apply merges the non-nil fields of u onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.CurrentConditions != nil {
		p.CurrentConditions = *u.CurrentConditions
	}
	if u.FitnessLevel != nil {
		p.FitnessLevel = *u.FitnessLevel
	}
	if u.ExercisePreferences != nil {
		p.ExercisePreferences = *u.ExercisePreferences
	}
	if u.ExerciseRestrictions != nil {
		p.ExerciseRestrictions = *u.ExerciseRestrictions
	}
	if u.PrimaryGoals != nil {
		p.PrimaryGoals = *u.PrimaryGoals
	}
	if u.AvailableTimePerSession != nil {
		v := *u.AvailableTimePerSession
		p.AvailableTimePerSession = &v
	}
	if u.PreferredSchedule != nil {
		p.PreferredSchedule = *u.PreferredSchedule
	}
	if u.EquipmentAvailable != nil {
		p.EquipmentAvailable = *u.EquipmentAvailable
	}
	if u.MedicalClearanceDate != nil {
		v := *u.MedicalClearanceDate
		p.MedicalClearanceDate = &v
	}
	if u.HealthcareProviderNotes != nil {
		p.HealthcareProviderNotes = *u.HealthcareProviderNotes
	}
}

// Preferences are per-call overrides that narrow the candidate set.
type Preferences struct {
	FitnessLevel            *FitnessLevel
	Categories              []ExerciseCategory
	AvailableTimePerSession *int
}

// Recommendation is a personalised suggestion of one exercise for one condition.
type Recommendation struct {
	ID                     int64
	TenantID               string
	UserID                 string
	ExerciseID             int64
	ConditionID            int64
	RecommendedDuration    int
	RecommendedFrequency   Frequency
	RecommendedIntensity   Intensity
	Reasoning              string
	ExpectedBenefits       []string
	ModificationsApplied   []string
	Status                 RecommendationStatus
	PriorityScore          float64
	UserRating             *int
	UserFeedback           string
	DifficultyFeedback     DifficultyFeedback
	StartDate              time.Time
	TargetEndDate          time.Time
	LastPerformed          *time.Time
	NextScheduled          *time.Time
	TotalSessionsCompleted int
	TotalMinutesExercised  int
	AverageUserRating      *float64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Owner returns the recommendation's owner.
func (r Recommendation) Owner() Owner {
	return Owner{TenantID: r.TenantID, UserID: r.UserID}
}

// RecommendationDetail joins a recommendation with its catalog entries.
type RecommendationDetail struct {
	Recommendation
	Exercise  Exercise
	Condition Condition
}

// FeedbackInput is a partial update of user feedback on a recommendation.
type FeedbackInput struct {
	UserRating         *int
	UserFeedback       *string
	DifficultyFeedback *DifficultyFeedback
	Status             *RecommendationStatus
}

// Schedule is one planned exercise session.
type Schedule struct {
	ID                 int64
	TenantID           string
	UserID             string
	RecommendationID   int64
	ScheduledDate      time.Time
	ScheduledDuration  int
	ScheduledIntensity Intensity
	IsCompleted        bool
	CompletedAt        *time.Time
	ActualDuration     *int
	ActualIntensity    Intensity
	CompletionRating   *int
	EnergyLevelBefore  *int
	EnergyLevelAfter   *int
	PainLevelBefore    *int
	PainLevelAfter     *int
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Populated on reads that join the catalog.
	ExerciseName  string
	ConditionName string
}

// ScheduleInput describes a session to plan.
type ScheduleInput struct {
	RecommendationID int64
	ScheduledDate    time.Time
	Duration         *int
	Intensity        *Intensity
}

// CompletionInput carries the actuals recorded when a session is completed.
type CompletionInput struct {
	ActualDuration    *int
	ActualIntensity   *Intensity
	CompletionRating  *int
	EnergyLevelBefore *int
	EnergyLevelAfter  *int
	PainLevelBefore   *int
	PainLevelAfter    *int
	Notes             *string
}

// Completion is the outcome of completing a session.
type Completion struct {
	Schedule       Schedule
	Recommendation Recommendation
}

// AnalyticsSummary aggregates a user's recommendations.
type AnalyticsSummary struct {
	TotalRecommendations   int     `json:"total_recommendations"`
	TotalSessionsCompleted int     `json:"total_sessions_completed"`
	TotalMinutesExercised  int     `json:"total_minutes_exercised"`
	AverageRating          float64 `json:"average_rating"`
}

// SessionSummary is a compact view of a schedule used by analytics.
type SessionSummary struct {
	ScheduleID    int64      `json:"schedule_id"`
	ExerciseName  string     `json:"exercise_name"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Duration      *int       `json:"duration,omitempty"`
	Rating        *int       `json:"rating,omitempty"`
}

// Analytics is the progress dashboard for a user.
type Analytics struct {
	Summary          AnalyticsSummary `json:"summary"`
	RecentSessions   []SessionSummary `json:"recent_sessions"`
	UpcomingSessions []SessionSummary `json:"upcoming_sessions"`
}
