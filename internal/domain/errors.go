package domain

import "errors"

var (
	// ErrValidation indicates invalid input. Callers wrap it with a message.
	ErrValidation = errors.New("validation failed")
	// ErrConditionNotFound indicates an unknown condition id.
	ErrConditionNotFound = errors.New("condition not found")
	// ErrRecommendationNotFound indicates a missing or foreign recommendation.
	ErrRecommendationNotFound = errors.New("recommendation not found")
	// ErrScheduleNotFound indicates a missing or foreign schedule.
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrProfileNotFound indicates the caller has no health profile yet.
	ErrProfileNotFound = errors.New("health profile not found")
	// ErrAlreadyCompleted is returned when a schedule has already been completed.
	ErrAlreadyCompleted = errors.New("schedule already completed")
	// ErrActiveRecommendationExists is returned when reactivating a recommendation would
	// duplicate an active one for the same exercise and condition.
	ErrActiveRecommendationExists = errors.New("an active recommendation already exists for this exercise and condition")
)
