// Package outbox ships recommendation and schedule events from the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/healthanalysis/internal/logger"
)

const (
	maxReasonLength = 1000

	// defaultClaimLease bounds how long a claimed row stays invisible to other dispatchers.
	defaultClaimLease = 2 * time.Minute
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one claimed outbox row.
type Message struct {
	EventID       int64
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	RetryCount    int
}

// failure pairs an undeliverable message with the reason it is dead-lettered.
type failure struct {
	msg Message
	err error
}

// Dispatcher claims unpublished outbox rows, frames them with their registry schema id
// and publishes them per topic. Rows that cannot be published go to outbox_dlq.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	log          *logger.Logger
	pollInterval time.Duration
	batchSize    int
	claimLease   time.Duration

	mu        sync.Mutex
	schemaIDs map[string]int
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, log *logger.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		log:          log,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		claimLease:   defaultClaimLease,
		schemaIDs:    make(map[string]int),
	}
}

// Run polls until ctx is cancelled. Batch errors are logged, never returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started", "interval", d.pollInterval.String(), "batch_size", d.batchSize)
	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("outbox batch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return err
	}
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	failures := d.deliver(ctx, messages)
	delivered, deadLettered := partition(messages, failures)

	// Delivered rows are marked published before any dead-letter write.
	if err := markPublished(ctx, d.pool, delivered); err != nil {
		return err
	}
	recordOutcome(delivered, outcomeDelivered)
	if len(failures) == 0 {
		return nil
	}

	err = pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, f := range failures {
			d.log.Warn("outbox event dead-lettered",
				"event_id", f.msg.EventID, "event_type", f.msg.EventType, "topic", f.msg.Topic, "error", f.err)
			if err := insertDLQ(ctx, tx, f.msg, f.err.Error(), retryAt(time.Now().UTC(), defaultBaseDelay, f.msg.RetryCount)); err != nil {
				return fmt.Errorf("dead-letter event %d: %w", f.msg.EventID, err)
			}
		}
		return markPublished(ctx, tx, deadLettered)
	})
	if err != nil {
		return err
	}
	recordOutcome(deadLettered, outcomeDeadLettered)
	return nil
}

// partition splits a batch into delivered messages and the messages behind failures,
// both in batch order.
func partition(messages []Message, failures []failure) (delivered, deadLettered []Message) {
	failed := make(map[int64]bool, len(failures))
	for _, f := range failures {
		failed[f.msg.EventID] = true
	}
	for _, msg := range messages {
		if failed[msg.EventID] {
			deadLettered = append(deadLettered, msg)
		} else {
			delivered = append(delivered, msg)
		}
	}
	return delivered, deadLettered
}

// claim locks up to batchSize unpublished rows whose claim is absent or older than the
// lease, stamps claimed_at and returns them.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	var messages []Message
	now := time.Now().UTC()
	err := pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT event_id, tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count
              FROM outbox
             WHERE published_at IS NULL
               AND (claimed_at IS NULL OR claimed_at < $2)
             ORDER BY event_id
             LIMIT $1
               FOR UPDATE SKIP LOCKED`, d.batchSize, now.Add(-d.claimLease))
		if err != nil {
			return err
		}
		messages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
			var m Message
			err := row.Scan(&m.EventID, &m.TenantID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Topic, &m.SchemaSubject, &m.PartitionKey, &m.Payload, &m.RetryCount)
			return m, err
		})
		if err != nil || len(messages) == 0 {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = $2 WHERE event_id = ANY($1)`, eventIDs(messages), now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	return messages, nil
}

// deliver publishes messages grouped by topic in first-seen order. It returns the
// messages that could not be encoded or whose topic write failed.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) []failure {
	var failures []failure
	topics := make([]string, 0)
	records := make(map[string][]kafka.Message)
	sources := make(map[string][]Message)

	for _, msg := range messages {
		record, err := d.encode(ctx, msg)
		if err != nil {
			failures = append(failures, failure{msg: msg, err: err})
			continue
		}
		if _, seen := records[msg.Topic]; !seen {
			topics = append(topics, msg.Topic)
		}
		records[msg.Topic] = append(records[msg.Topic], record)
		sources[msg.Topic] = append(sources[msg.Topic], msg)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, records[topic]...); err != nil {
			for _, msg := range sources[topic] {
				failures = append(failures, failure{msg: msg, err: fmt.Errorf("write %s: %w", topic, err)})
			}
		}
	}
	return failures
}

func (d *Dispatcher) encode(ctx context.Context, msg Message) (kafka.Message, error) {
	schema, ok := schemaByEventType[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema registered for event type %q", msg.EventType)
	}
	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("resolve schema %s: %w", msg.SchemaSubject, err)
	}
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "tenant_id", Value: []byte(msg.TenantID)},
			{Key: "aggregate_id", Value: []byte(msg.AggregateID)},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	d.mu.Lock()
	id, ok := d.schemaIDs[subject]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.schemaIDs[subject] = id
	d.mu.Unlock()
	return id, nil
}

func markPublished(ctx context.Context, db execer, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	if _, err := db.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// insertDLQ records an undeliverable message. The entry keeps the retry count the message
// was published with so repeated failures converge on quarantine.
func insertDLQ(ctx context.Context, db execer, msg Message, reason string, nextRetry time.Time) error {
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	_, err := db.Exec(ctx,
		`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		msg.TenantID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
		msg.RetryCount, nextRetry,
	)
	return err
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	return ids
}

// encodeWireFormat applies Confluent framing: a zero magic byte, the big-endian schema id,
// then the payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
