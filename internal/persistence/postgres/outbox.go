package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/healthanalysis/internal/events"
)

// aggregateRef identifies the row an outbox event describes.
type aggregateRef struct {
	Type             string
	ID               int64
	TenantID         string
	UserID           string
	RecommendationID int64
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(aggregateRef) string
	// Repeatable events get a unique dedupe suffix so every occurrence is kept.
	Repeatable bool
}

var eventCatalog = map[string]EventMetadata{
	events.TypeRecommendationCreated: {
		Topic:         "health_recommendation_events",
		SchemaSubject: "health_recommendation_events-RecommendationCreated",
		PartitionKeyFn: func(a aggregateRef) string {
			return fmt.Sprintf("%s:%s", a.TenantID, a.UserID)
		},
	},
	events.TypeRecommendationUpdated: {
		Topic:         "health_recommendation_events",
		SchemaSubject: "health_recommendation_events-RecommendationUpdated",
		PartitionKeyFn: func(a aggregateRef) string {
			return strconv.FormatInt(a.RecommendationID, 10)
		},
		Repeatable: true,
	},
	events.TypeScheduleCreated: {
		Topic:         "health_schedule_events",
		SchemaSubject: "health_schedule_events-ScheduleCreated",
		PartitionKeyFn: func(a aggregateRef) string {
			return strconv.FormatInt(a.RecommendationID, 10)
		},
	},
	events.TypeScheduleCompleted: {
		Topic:         "health_schedule_events",
		SchemaSubject: "health_schedule_events-ScheduleCompleted",
		PartitionKeyFn: func(a aggregateRef) string {
			return strconv.FormatInt(a.RecommendationID, 10)
		},
	},
}

func insertOutbox(ctx context.Context, tx pgx.Tx, ref aggregateRef, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	aggregateID := strconv.FormatInt(ref.ID, 10)
	dedupeKey := fmt.Sprintf("%s:%s:%s", ref.Type, aggregateID, eventType)
	if meta.Repeatable {
		dedupeKey = fmt.Sprintf("%s:%s", dedupeKey, uuid.NewString())
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		ref.TenantID,
		ref.Type,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(ref),
		body,
		dedupeKey,
	)
	return err
}
