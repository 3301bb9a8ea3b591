package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	// MinSafetyScore is the lowest mean safety a candidate may have.
	MinSafetyScore = 0.7
	// MinEffectivenessScore is the lowest mean effectiveness a candidate may have.
	MinEffectivenessScore = 0.6
	// MaxRecommendations caps a single Generate response.
	MaxRecommendations = 10
	// DefaultExerciseDuration applies when the catalog has no duration for an exercise.
	DefaultExerciseDuration = 30
	// RecommendationHorizon is the span between start and target end date.
	RecommendationHorizon = 12 * 7 * 24 * time.Hour
)

const (
	effectivenessWeight = 0.4
	safetyWeight        = 0.6
	clearancePenalty    = 0.9
	chronicBoost        = 1.1
	beginnerBoost       = 1.05
)

var conditionCategoryBenefits = map[string][]string{
	"cardiovascular":  {"improved_heart_health", "better_circulation", "lower_blood_pressure"},
	"musculoskeletal": {"increased_strength", "better_flexibility", "reduced_pain"},
	"respiratory":     {"improved_lung_function", "better_breathing", "increased_endurance"},
	"metabolic":       {"weight_management", "better_glucose_control", "increased_metabolism"},
	"mental_health":   {"mood_improvement", "stress_reduction", "better_sleep"},
}

// FilterCandidates drops candidates below the score thresholds or outside the
// preference filters, then orders the rest by safety desc, effectiveness desc, id asc.
func FilterCandidates(candidates []Candidate, prefs *Preferences) []Candidate {
	var allowedDifficulty map[Difficulty]bool
	var allowedCategory map[ExerciseCategory]bool
	maxDuration := 0
	if prefs != nil {
		if prefs.FitnessLevel != nil {
			if allowed := prefs.FitnessLevel.AllowedDifficulties(); allowed != nil {
				allowedDifficulty = make(map[Difficulty]bool, len(allowed))
				for _, d := range allowed {
					allowedDifficulty[d] = true
				}
			}
		}
		if len(prefs.Categories) > 0 {
			allowedCategory = make(map[ExerciseCategory]bool, len(prefs.Categories))
			for _, c := range prefs.Categories {
				allowedCategory[c] = true
			}
		}
		if prefs.AvailableTimePerSession != nil {
			maxDuration = *prefs.AvailableTimePerSession
		}
	}

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.MeanSafety < MinSafetyScore || c.MeanEffectiveness < MinEffectivenessScore {
			continue
		}
		if allowedDifficulty != nil && !allowedDifficulty[c.Exercise.Difficulty] {
			continue
		}
		if allowedCategory != nil && !allowedCategory[c.Exercise.Category] {
			continue
		}
		if maxDuration > 0 && (c.Exercise.DurationMinutes <= 0 || c.Exercise.DurationMinutes > maxDuration) {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MeanSafety != out[j].MeanSafety {
			return out[i].MeanSafety > out[j].MeanSafety
		}
		if out[i].MeanEffectiveness != out[j].MeanEffectiveness {
			return out[i].MeanEffectiveness > out[j].MeanEffectiveness
		}
		return out[i].Exercise.ID < out[j].Exercise.ID
	})
	return out
}

// PriorityScore weighs safety over effectiveness and adjusts for the condition and the
// exercise difficulty. The result is clamped to [0,1] and rounded to 4 decimals.
func PriorityScore(exercise Exercise, condition Condition, effectiveness, safety float64) float64 {
	score := effectivenessWeight*effectiveness + safetyWeight*safety
	if condition.RequiresMedicalClearance {
		score *= clearancePenalty
	}
	if condition.IsChronic {
		score *= chronicBoost
	}
	if exercise.Difficulty.BeginnerFriendly() {
		score *= beginnerBoost
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*10000) / 10000
}

// RecommendedDuration is the exercise default capped by the user's available time.
func RecommendedDuration(exercise Exercise, availableTime *int) int {
	duration := exercise.DurationMinutes
	if duration <= 0 {
		duration = DefaultExerciseDuration
	}
	if availableTime != nil && *availableTime > 0 && *availableTime < duration {
		duration = *availableTime
	}
	return duration
}

// RecommendedFrequency picks how often the exercise should be done.
func RecommendedFrequency(exercise Exercise, condition Condition) Frequency {
	switch exercise.Category {
	case CategoryStrength, CategoryCardio:
		if condition.RecommendedIntensity == IntensityLow {
			return FrequencyThreeTimesWeek
		}
		return FrequencyEveryOtherDay
	case CategoryFlexibility, CategoryBalance, CategoryBreathing, CategoryYoga:
		return FrequencyDaily
	case CategoryRehabilitation, CategoryLowImpact, CategoryPilates, CategoryWaterTherapy:
		return FrequencyThreeTimesWeek
	}
	return FrequencyThreeTimesWeek
}

// RecommendedIntensity adjusts the condition baseline to the user's fitness level.
func RecommendedIntensity(condition Condition, level FitnessLevel) Intensity {
	baseline := condition.RecommendedIntensity
	if baseline == "" {
		baseline = IntensityModerate
	}
	switch level {
	case FitnessBeginner:
		switch baseline {
		case IntensityModerate:
			return IntensityLowToModerate
		case IntensityHigh:
			return IntensityModerate
		case IntensityLow, IntensityLowToModerate, IntensityModerateToHigh:
			return baseline
		}
	case FitnessAdvanced:
		switch baseline {
		case IntensityLow:
			return IntensityLowToModerate
		case IntensityModerate:
			return IntensityModerateToHigh
		case IntensityLowToModerate, IntensityModerateToHigh, IntensityHigh:
			return baseline
		}
	case FitnessIntermediate:
		return baseline
	}
	return baseline
}

// Reasoning explains why an exercise suits a condition. It is never empty.
func Reasoning(exercise Exercise, condition Condition, effectiveness, safety float64) string {
	parts := make([]string, 0, 4)
	benefits := exercise.PrimaryBenefits
	if len(benefits) > 3 {
		benefits = benefits[:3]
	}
	if len(benefits) > 0 {
		parts = append(parts, fmt.Sprintf("%s is recommended for %s because it provides %s.",
			exercise.Name, condition.Name, strings.Join(benefits, ", ")))
	} else {
		parts = append(parts, fmt.Sprintf("%s is recommended for %s.", exercise.Name, condition.Name))
	}

	switch {
	case safety >= 0.9:
		parts = append(parts, "This exercise has an excellent safety profile for your condition.")
	case safety >= 0.8:
		parts = append(parts, "This exercise is considered safe when performed correctly.")
	}

	switch {
	case effectiveness >= 0.8:
		parts = append(parts, "Research shows this exercise is highly effective for managing your condition.")
	case effectiveness >= 0.7:
		parts = append(parts, "This exercise has shown good results for people with similar conditions.")
	}

	if condition.SpecialConsiderations != "" {
		parts = append(parts, "Important: "+condition.SpecialConsiderations)
	}
	return strings.Join(parts, " ")
}

// ExpectedBenefits merges exercise and condition-category benefits in first-seen order.
func ExpectedBenefits(exercise Exercise, condition Condition) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(exercise.PrimaryBenefits)+3)
	add := func(values []string) {
		for _, v := range values {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	add(exercise.PrimaryBenefits)
	add(conditionCategoryBenefits[condition.Category])
	return out
}

// Modifications lists the adaptations applied for the condition.
func Modifications(exercise Exercise, condition Condition) []string {
	out := make([]string, 0, len(exercise.Modifications)+3)
	out = append(out, exercise.Modifications...)
	if condition.HasRestriction("avoid_high_impact") {
		out = append(out, "Use low-impact variations")
	}
	if condition.HasRestriction("joint_protection") {
		out = append(out, "Focus on joint-friendly movements")
	}
	if condition.RequiresMedicalClearance {
		out = append(out, "Obtain medical clearance before starting")
	}
	return out
}

// personalization holds the inputs that tailor a draft recommendation.
type personalization struct {
	fitnessLevel  FitnessLevel
	availableTime *int
}

func resolvePersonalization(profile *Profile, prefs *Preferences) personalization {
	var p personalization
	if profile != nil {
		p.fitnessLevel = profile.FitnessLevel
		p.availableTime = profile.AvailableTimePerSession
	}
	if prefs != nil {
		if prefs.FitnessLevel != nil {
			p.fitnessLevel = *prefs.FitnessLevel
		}
		if prefs.AvailableTimePerSession != nil && *prefs.AvailableTimePerSession > 0 {
			p.availableTime = prefs.AvailableTimePerSession
		}
	}
	return p
}

// draftRecommendation builds an unsaved active recommendation for one candidate and condition.
func draftRecommendation(owner Owner, candidate Candidate, condition Condition, p personalization, now time.Time) Recommendation {
	ex := candidate.Exercise
	return Recommendation{
		TenantID:             owner.TenantID,
		UserID:               owner.UserID,
		ExerciseID:           ex.ID,
		ConditionID:          condition.ID,
		RecommendedDuration:  RecommendedDuration(ex, p.availableTime),
		RecommendedFrequency: RecommendedFrequency(ex, condition),
		RecommendedIntensity: RecommendedIntensity(condition, p.fitnessLevel),
		Reasoning:            Reasoning(ex, condition, candidate.MeanEffectiveness, candidate.MeanSafety),
		ExpectedBenefits:     ExpectedBenefits(ex, condition),
		ModificationsApplied: Modifications(ex, condition),
		Status:               StatusActive,
		PriorityScore:        PriorityScore(ex, condition, candidate.MeanEffectiveness, candidate.MeanSafety),
		StartDate:            now,
		TargetEndDate:        now.Add(RecommendationHorizon),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// RankRecommendations orders by priority desc, stable, and keeps the top MaxRecommendations.
func RankRecommendations(recs []RecommendationDetail) []RecommendationDetail {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PriorityScore > recs[j].PriorityScore
	})
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
