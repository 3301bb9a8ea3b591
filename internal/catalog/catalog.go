// Package catalog carries the reference conditions, exercises and their associations.
package catalog

import (
	"fmt"

	"example.com/healthanalysis/internal/domain"
)

// Mapping associates an exercise with a condition by name.
type Mapping struct {
	Exercise      string
	Condition     string
	Effectiveness float64
	Safety        float64
}

// Dataset is a self-contained catalog. IDs on conditions and exercises are assigned by
// the store that loads it.
type Dataset struct {
	Conditions []domain.Condition
	Exercises  []domain.Exercise
	Mappings   []Mapping
}

// Validate checks that every mapping names a known exercise and condition, that scores
// lie in [0,1] and that no pair is mapped twice.
func (d Dataset) Validate() error {
	conditions := make(map[string]bool, len(d.Conditions))
	for _, c := range d.Conditions {
		if conditions[c.Name] {
			return fmt.Errorf("duplicate condition %q", c.Name)
		}
		conditions[c.Name] = true
	}
	exercises := make(map[string]bool, len(d.Exercises))
	for _, e := range d.Exercises {
		if exercises[e.Name] {
			return fmt.Errorf("duplicate exercise %q", e.Name)
		}
		if !e.Category.Valid() || !e.Difficulty.Valid() {
			return fmt.Errorf("exercise %q has invalid category or difficulty", e.Name)
		}
		exercises[e.Name] = true
	}
	pairs := make(map[[2]string]bool, len(d.Mappings))
	for _, m := range d.Mappings {
		if !exercises[m.Exercise] {
			return fmt.Errorf("mapping references unknown exercise %q", m.Exercise)
		}
		if !conditions[m.Condition] {
			return fmt.Errorf("mapping references unknown condition %q", m.Condition)
		}
		if m.Effectiveness < 0 || m.Effectiveness > 1 || m.Safety < 0 || m.Safety > 1 {
			return fmt.Errorf("mapping %s/%s has scores outside [0,1]", m.Exercise, m.Condition)
		}
		key := [2]string{m.Exercise, m.Condition}
		if pairs[key] {
			return fmt.Errorf("mapping %s/%s is duplicated", m.Exercise, m.Condition)
		}
		pairs[key] = true
	}
	return nil
}

// Default returns the built-in reference catalog.
func Default() Dataset {
	return Dataset{
		Conditions: defaultConditions(),
		Exercises:  defaultExercises(),
		Mappings:   defaultMappings(),
	}
}

func defaultConditions() []domain.Condition {
	return []domain.Condition{
		{
			Name:                     "Type 2 Diabetes",
			Category:                 "endocrine",
			Description:              "A chronic condition affecting blood sugar regulation",
			SeverityLevels:           []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:     []string{"avoid_fasting_exercise", "monitor_blood_sugar"},
			RecommendedIntensity:     domain.IntensityModerate,
			SpecialConsiderations:    "Monitor blood glucose before, during, and after exercise. Carry glucose tablets.",
			IsChronic:                true,
			RequiresMedicalClearance: true,
		},
		{
			Name:                     "Hypertension",
			Category:                 "cardiovascular",
			Description:              "High blood pressure condition",
			SeverityLevels:           []string{"stage_1", "stage_2", "crisis"},
			ExerciseRestrictions:     []string{"avoid_heavy_lifting", "avoid_isometric_exercises"},
			RecommendedIntensity:     domain.IntensityLowToModerate,
			SpecialConsiderations:    "Avoid exercises that cause significant increases in blood pressure. Focus on aerobic activities.",
			IsChronic:                true,
			RequiresMedicalClearance: true,
		},
		{
			Name:                  "Arthritis",
			Category:              "musculoskeletal",
			Description:           "Joint inflammation and pain",
			SeverityLevels:        []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:  []string{"avoid_high_impact", "joint_protection"},
			RecommendedIntensity:  domain.IntensityLowToModerate,
			SpecialConsiderations: "Focus on range of motion and low-impact activities. Exercise during times of least pain.",
			IsChronic:             true,
		},
		{
			Name:                     "Heart Disease",
			Category:                 "cardiovascular",
			Description:              "Various conditions affecting heart function",
			SeverityLevels:           []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:     []string{"cardiac_monitoring", "avoid_extreme_exertion"},
			RecommendedIntensity:     domain.IntensityLowToModerate,
			SpecialConsiderations:    "Requires cardiac rehabilitation program. Monitor heart rate closely.",
			IsChronic:                true,
			RequiresMedicalClearance: true,
		},
		{
			Name:                  "Osteoporosis",
			Category:              "musculoskeletal",
			Description:           "Bone density loss increasing fracture risk",
			SeverityLevels:        []string{"osteopenia", "mild", "severe"},
			ExerciseRestrictions:  []string{"avoid_forward_flexion", "avoid_high_impact"},
			RecommendedIntensity:  domain.IntensityModerate,
			SpecialConsiderations: "Focus on weight-bearing and resistance exercises. Avoid spinal flexion.",
			IsChronic:             true,
		},
		{
			Name:                     "COPD",
			Category:                 "respiratory",
			Description:              "Chronic Obstructive Pulmonary Disease",
			SeverityLevels:           []string{"mild", "moderate", "severe", "very_severe"},
			ExerciseRestrictions:     []string{"oxygen_monitoring", "avoid_air_pollution"},
			RecommendedIntensity:     domain.IntensityLowToModerate,
			SpecialConsiderations:    "Focus on breathing exercises and gradual endurance building. Use pursed-lip breathing.",
			IsChronic:                true,
			RequiresMedicalClearance: true,
		},
		{
			Name:                  "Lower Back Pain",
			Category:              "musculoskeletal",
			Description:           "Chronic or acute lower back pain",
			SeverityLevels:        []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:  []string{"avoid_spinal_flexion", "core_strengthening_focus"},
			RecommendedIntensity:  domain.IntensityLowToModerate,
			SpecialConsiderations: "Focus on core strengthening and flexibility. Avoid exercises that worsen pain.",
		},
		{
			Name:                  "Fibromyalgia",
			Category:              "neurological",
			Description:           "Chronic widespread musculoskeletal pain",
			SeverityLevels:        []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:  []string{"gentle_progression", "fatigue_management"},
			RecommendedIntensity:  domain.IntensityLow,
			SpecialConsiderations: "Start very slowly and progress gradually. Focus on gentle movements and stress reduction.",
			IsChronic:             true,
		},
		{
			Name:                  "Obesity",
			Category:              "metabolic",
			Description:           "Excess body weight affecting health",
			SeverityLevels:        []string{"class_1", "class_2", "class_3"},
			ExerciseRestrictions:  []string{"joint_protection", "gradual_progression"},
			RecommendedIntensity:  domain.IntensityLowToModerate,
			SpecialConsiderations: "Focus on low-impact activities to protect joints. Emphasize consistency over intensity.",
			IsChronic:             true,
		},
		{
			Name:                  "Depression",
			Category:              "mental_health",
			Description:           "Mental health condition affecting mood and energy",
			SeverityLevels:        []string{"mild", "moderate", "severe"},
			ExerciseRestrictions:  []string{"motivation_support", "social_activities"},
			RecommendedIntensity:  domain.IntensityModerate,
			SpecialConsiderations: "Exercise can significantly improve mood. Focus on enjoyable activities and social support.",
			IsChronic:             true,
		},
	}
}

func defaultExercises() []domain.Exercise {
	return []domain.Exercise{
		{
			Name:        "Walking",
			Category:    domain.CategoryCardio,
			Difficulty:  domain.DifficultyBeginner,
			Description: "Low-impact cardiovascular exercise suitable for most conditions",
			Instructions: []string{
				"Start with comfortable pace",
				"Maintain upright posture",
				"Land on heel, roll to toe",
				"Swing arms naturally",
				"Breathe rhythmically",
			},
			DurationMinutes:   30,
			EquipmentNeeded:   []string{"comfortable_shoes"},
			PrimaryBenefits:   []string{"cardiovascular_health", "weight_management", "mood_improvement"},
			Contraindications: []string{"severe_heart_failure", "unstable_angina"},
			Modifications:     []string{"Use walking aids if needed", "Start with 5-10 minutes", "Walk on flat surfaces initially"},
			SafetyTips:        []string{"Wear proper footwear", "Stay hydrated", "Walk in safe areas", "Stop if experiencing chest pain"},
			IsActive:          true,
		},
		{
			Name:        "Chair Exercises",
			Category:    domain.CategoryStrength,
			Difficulty:  domain.DifficultyBeginner,
			Description: "Seated exercises for those with mobility limitations",
			Instructions: []string{
				"Sit upright in sturdy chair",
				"Keep feet flat on floor",
				"Engage core muscles",
				"Move slowly and controlled",
				"Breathe throughout movement",
			},
			DurationMinutes:   20,
			Repetitions:       10,
			Sets:              2,
			EquipmentNeeded:   []string{"sturdy_chair"},
			PrimaryBenefits:   []string{"strength_maintenance", "circulation", "flexibility"},
			Contraindications: []string{"severe_balance_issues"},
			Modifications:     []string{"Use chair with arms for support", "Reduce range of motion if needed", "Add resistance bands for progression"},
			SafetyTips:        []string{"Ensure chair is stable", "Keep movements controlled", "Stop if dizzy"},
			IsActive:          true,
		},
		{
			Name:        "Water Aerobics",
			Category:    domain.CategoryLowImpact,
			Difficulty:  domain.DifficultyEasy,
			Description: "Joint-friendly exercise in water",
			Instructions: []string{
				"Enter water gradually",
				"Start with gentle movements",
				"Use water resistance",
				"Maintain good posture",
				"Focus on full range of motion",
			},
			DurationMinutes:   45,
			EquipmentNeeded:   []string{"pool_access", "swimwear"},
			PrimaryBenefits:   []string{"joint_health", "cardiovascular_fitness", "muscle_strength"},
			Contraindications: []string{"open_wounds", "severe_heart_conditions"},
			Modifications:     []string{"Use pool noodles for support", "Stay in shallow end", "Reduce intensity as needed"},
			SafetyTips:        []string{"Never exercise alone in water", "Check water temperature", "Enter and exit pool carefully"},
			IsActive:          true,
		},
		{
			Name:        "Gentle Yoga",
			Category:    domain.CategoryYoga,
			Difficulty:  domain.DifficultyBeginner,
			Description: "Modified yoga poses for health conditions",
			Instructions: []string{
				"Start with breathing exercises",
				"Move slowly between poses",
				"Hold poses for 30 seconds",
				"Focus on alignment",
				"End with relaxation",
			},
			DurationMinutes:   30,
			EquipmentNeeded:   []string{"yoga_mat", "blocks", "straps"},
			PrimaryBenefits:   []string{"flexibility", "stress_reduction", "balance"},
			Contraindications: []string{"severe_osteoporosis", "recent_surgery"},
			Modifications:     []string{"Use chair for support", "Avoid deep twists", "Skip inversions if needed"},
			SafetyTips:        []string{"Don't force poses", "Listen to your body", "Use props for support"},
			IsActive:          true,
		},
		{
			Name:        "Resistance Band Training",
			Category:    domain.CategoryStrength,
			Difficulty:  domain.DifficultyEasy,
			Description: "Low-impact strength training with bands",
			Instructions: []string{
				"Choose appropriate resistance",
				"Maintain good posture",
				"Control both directions",
				"Keep tension throughout",
				"Breathe with movement",
			},
			DurationMinutes:   25,
			Repetitions:       12,
			Sets:              2,
			EquipmentNeeded:   []string{"resistance_bands"},
			PrimaryBenefits:   []string{"muscle_strength", "bone_density", "functional_fitness"},
			Contraindications: []string{"acute_muscle_strain"},
			Modifications:     []string{"Use lighter resistance", "Reduce range of motion", "Perform seated if needed"},
			SafetyTips:        []string{"Check bands for wear", "Secure anchor points", "Start with light resistance"},
			IsActive:          true,
		},
		{
			Name:        "Breathing Exercises",
			Category:    domain.CategoryBreathing,
			Difficulty:  domain.DifficultyBeginner,
			Description: "Focused breathing techniques for health",
			Instructions: []string{
				"Sit or lie comfortably",
				"Place one hand on chest, one on belly",
				"Breathe slowly through nose",
				"Feel belly rise more than chest",
				"Exhale slowly through mouth",
			},
			DurationMinutes:   10,
			EquipmentNeeded:   []string{},
			PrimaryBenefits:   []string{"stress_reduction", "lung_function", "relaxation"},
			Contraindications: []string{},
			Modifications:     []string{"Use different positions", "Vary breathing patterns", "Add visualization"},
			SafetyTips:        []string{"Don't force breathing", "Stop if dizzy", "Practice regularly"},
			IsActive:          true,
		},
		{
			Name:        "Balance Training",
			Category:    domain.CategoryBalance,
			Difficulty:  domain.DifficultyEasy,
			Description: "Exercises to improve stability and prevent falls",
			Instructions: []string{
				"Start near wall or chair",
				"Focus on one point ahead",
				"Engage core muscles",
				"Start with both feet",
				"Progress to single leg",
			},
			DurationMinutes:   15,
			EquipmentNeeded:   []string{"sturdy_chair"},
			PrimaryBenefits:   []string{"fall_prevention", "stability", "confidence"},
			Contraindications: []string{"severe_vertigo", "recent_falls"},
			Modifications:     []string{"Hold onto support", "Reduce challenge level", "Practice on stable surface"},
			SafetyTips:        []string{"Have support nearby", "Practice on non-slip surface", "Progress gradually"},
			IsActive:          true,
		},
		{
			Name:        "Tai Chi",
			Category:    domain.CategoryBalance,
			Difficulty:  domain.DifficultyEasy,
			Description: "Gentle martial art focusing on slow, flowing movements",
			Instructions: []string{
				"Stand with feet shoulder-width apart",
				"Keep movements slow and controlled",
				"Focus on weight shifting",
				"Coordinate with breathing",
				"Maintain relaxed posture",
			},
			DurationMinutes:   30,
			EquipmentNeeded:   []string{},
			PrimaryBenefits:   []string{"balance", "flexibility", "mental_focus"},
			Contraindications: []string{"severe_balance_disorders"},
			Modifications:     []string{"Practice seated", "Use shorter sequences", "Hold onto chair for support"},
			SafetyTips:        []string{"Learn from qualified instructor", "Practice on level surface", "Wear appropriate footwear"},
			IsActive:          true,
		},
	}
}

func defaultMappings() []Mapping {
	return []Mapping{
		{"Walking", "Type 2 Diabetes", 0.9, 0.95},
		{"Walking", "Hypertension", 0.85, 0.9},
		{"Walking", "Heart Disease", 0.8, 0.85},
		{"Walking", "Obesity", 0.9, 0.95},
		{"Walking", "Depression", 0.85, 0.95},
		{"Walking", "Arthritis", 0.7, 0.9},

		{"Chair Exercises", "Arthritis", 0.8, 0.95},
		{"Chair Exercises", "COPD", 0.75, 0.9},
		{"Chair Exercises", "Heart Disease", 0.7, 0.9},
		{"Chair Exercises", "Fibromyalgia", 0.75, 0.95},
		{"Chair Exercises", "Osteoporosis", 0.8, 0.9},

		{"Water Aerobics", "Arthritis", 0.95, 0.95},
		{"Water Aerobics", "Fibromyalgia", 0.85, 0.9},
		{"Water Aerobics", "Lower Back Pain", 0.8, 0.9},
		{"Water Aerobics", "Obesity", 0.85, 0.95},

		{"Gentle Yoga", "Lower Back Pain", 0.85, 0.9},
		{"Gentle Yoga", "Arthritis", 0.8, 0.85},
		{"Gentle Yoga", "Fibromyalgia", 0.8, 0.9},
		{"Gentle Yoga", "Depression", 0.85, 0.95},
		{"Gentle Yoga", "Hypertension", 0.75, 0.9},

		{"Resistance Band Training", "Osteoporosis", 0.9, 0.85},
		{"Resistance Band Training", "Type 2 Diabetes", 0.8, 0.9},
		{"Resistance Band Training", "Arthritis", 0.75, 0.85},
		{"Resistance Band Training", "COPD", 0.7, 0.85},

		{"Breathing Exercises", "COPD", 0.95, 0.95},
		{"Breathing Exercises", "Depression", 0.8, 0.95},
		{"Breathing Exercises", "Hypertension", 0.75, 0.95},
		{"Breathing Exercises", "Fibromyalgia", 0.7, 0.95},

		{"Balance Training", "Osteoporosis", 0.85, 0.8},
		{"Balance Training", "Arthritis", 0.8, 0.85},
		{"Balance Training", "Fibromyalgia", 0.75, 0.9},

		{"Tai Chi", "Arthritis", 0.85, 0.9},
		{"Tai Chi", "Osteoporosis", 0.8, 0.85},
		{"Tai Chi", "Hypertension", 0.8, 0.9},
		{"Tai Chi", "Depression", 0.8, 0.95},
		{"Tai Chi", "Fibromyalgia", 0.8, 0.9},
	}
}
