package outbox

import "example.com/healthanalysis/internal/events"

const recommendationCreatedSchema = `{
  "type": "object",
  "title": "RecommendationCreated",
  "properties": {
    "recommendation_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "exercise_id": {"type": "integer"},
    "condition_id": {"type": "integer"},
    "priority_score": {"type": "number", "minimum": 0, "maximum": 1},
    "recommended_frequency": {"type": "string"},
    "recommended_intensity": {"type": "string"},
    "recommended_duration": {"type": "integer"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["recommendation_id", "tenant_id", "user_id", "exercise_id", "condition_id", "priority_score", "created_at"],
  "additionalProperties": false
}`

const recommendationUpdatedSchema = `{
  "type": "object",
  "title": "RecommendationUpdated",
  "properties": {
    "recommendation_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string", "enum": ["active", "completed", "paused", "discontinued"]},
    "user_rating": {"type": "integer", "minimum": 1, "maximum": 5},
    "difficulty_feedback": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["recommendation_id", "tenant_id", "user_id", "status", "occurred_at"],
  "additionalProperties": false
}`

const scheduleCreatedSchema = `{
  "type": "object",
  "title": "ScheduleCreated",
  "properties": {
    "schedule_id": {"type": "integer"},
    "recommendation_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "scheduled_date": {"type": "string", "format": "date-time"},
    "scheduled_duration": {"type": "integer"},
    "scheduled_intensity": {"type": "string"}
  },
  "required": ["schedule_id", "recommendation_id", "tenant_id", "user_id", "scheduled_date"],
  "additionalProperties": false
}`

const scheduleCompletedSchema = `{
  "type": "object",
  "title": "ScheduleCompleted",
  "properties": {
    "schedule_id": {"type": "integer"},
    "recommendation_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"},
    "actual_duration": {"type": "integer"},
    "completion_rating": {"type": "integer", "minimum": 1, "maximum": 5},
    "total_sessions_completed": {"type": "integer"},
    "total_minutes_exercised": {"type": "integer"},
    "average_user_rating": {"type": "number"}
  },
  "required": ["schedule_id", "recommendation_id", "tenant_id", "user_id", "completed_at", "total_sessions_completed"],
  "additionalProperties": false
}`

var schemaByEventType = map[string]string{
	events.TypeRecommendationCreated: recommendationCreatedSchema,
	events.TypeRecommendationUpdated: recommendationUpdatedSchema,
	events.TypeScheduleCreated:       scheduleCreatedSchema,
	events.TypeScheduleCompleted:     scheduleCompletedSchema,
}
