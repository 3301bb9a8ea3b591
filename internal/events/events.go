// Package events defines the payloads published through the outbox.
package events

import "time"

// Event type names carried in the outbox event_type column.
const (
	TypeRecommendationCreated = "recommendation.created"
	TypeRecommendationUpdated = "recommendation.updated"
	TypeScheduleCreated       = "schedule.created"
	TypeScheduleCompleted     = "schedule.completed"
)

// RecommendationCreated is emitted when generate inserts a new active recommendation.
type RecommendationCreated struct {
	RecommendationID int64     `json:"recommendation_id"`
	TenantID         string    `json:"tenant_id"`
	UserID           string    `json:"user_id"`
	ExerciseID       int64     `json:"exercise_id"`
	ConditionID      int64     `json:"condition_id"`
	PriorityScore    float64   `json:"priority_score"`
	Frequency        string    `json:"recommended_frequency"`
	Intensity        string    `json:"recommended_intensity"`
	DurationMin      int       `json:"recommended_duration"`
	CreatedAt        time.Time `json:"created_at"`
}

// RecommendationUpdated tracks feedback and status changes.
type RecommendationUpdated struct {
	RecommendationID   int64     `json:"recommendation_id"`
	TenantID           string    `json:"tenant_id"`
	UserID             string    `json:"user_id"`
	Status             string    `json:"status"`
	UserRating         *int      `json:"user_rating,omitempty"`
	DifficultyFeedback string    `json:"difficulty_feedback,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// ScheduleCreated is emitted when a session is planned.
type ScheduleCreated struct {
	ScheduleID       int64     `json:"schedule_id"`
	RecommendationID int64     `json:"recommendation_id"`
	TenantID         string    `json:"tenant_id"`
	UserID           string    `json:"user_id"`
	ScheduledDate    time.Time `json:"scheduled_date"`
	DurationMin      int       `json:"scheduled_duration"`
	Intensity        string    `json:"scheduled_intensity"`
}

// ScheduleCompleted is emitted once per session when it is completed.
type ScheduleCompleted struct {
	ScheduleID             int64     `json:"schedule_id"`
	RecommendationID       int64     `json:"recommendation_id"`
	TenantID               string    `json:"tenant_id"`
	UserID                 string    `json:"user_id"`
	CompletedAt            time.Time `json:"completed_at"`
	ActualDuration         *int      `json:"actual_duration,omitempty"`
	CompletionRating       *int      `json:"completion_rating,omitempty"`
	TotalSessionsCompleted int       `json:"total_sessions_completed"`
	TotalMinutesExercised  int       `json:"total_minutes_exercised"`
	AverageUserRating      *float64  `json:"average_user_rating,omitempty"`
}
