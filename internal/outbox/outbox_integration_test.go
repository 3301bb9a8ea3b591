//go:build integration

package outbox

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/healthanalysis/internal/events"
	"example.com/healthanalysis/internal/persistence/postgres"
)

const scheduleTopic = "health_schedule_events"

func startPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("health"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		p, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return false
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return false
		}
		pool = p
		return true
	}, 30*time.Second, time.Second)
	t.Cleanup(pool.Close)

	_, err = postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := kafkacontainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: scheduleTopic, NumPartitions: 1, ReplicationFactor: 1}))
	return brokers[0]
}

func fixedIDRegistry(t *testing.T, id string) *SchemaRegistryClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": ` + id + `}`))
	}))
	t.Cleanup(srv.Close)
	return NewSchemaRegistryClient(srv.URL)
}

func insertOutboxRow(ctx context.Context, t *testing.T, pool *pgxpool.Pool, eventType string) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ('tenant-a', 'schedule', '3', $1, $2, $3, '1', '{"schedule_id":3}')`,
		eventType, scheduleTopic, scheduleTopic+"-ScheduleCompleted")
	require.NoError(t, err)
}

func countRows(ctx context.Context, t *testing.T, pool *pgxpool.Pool, query string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, query).Scan(&n))
	return n
}

func TestDispatcherPublishesAndDeadLetters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)
	broker := startKafka(ctx, t)

	producer := NewKafkaProducer([]string{broker})
	t.Cleanup(func() { _ = producer.Close() })
	d := NewDispatcher(pool, producer, fixedIDRegistry(t, "21"), nil, time.Second, 10)

	insertOutboxRow(ctx, t, pool, events.TypeScheduleCompleted)
	insertOutboxRow(ctx, t, pool, "schedule.archived")

	require.NoError(t, d.processBatch(ctx))
	assert.Equal(t, 0, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
	assert.Equal(t, 1, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox_dlq WHERE event_type = 'schedule.archived'`))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       scheduleTopic,
		GroupID:     "outbox-integration",
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)
	assert.Equal(t, "1", string(msg.Key))
	assert.Equal(t, byte(0), msg.Value[0])
	assert.Equal(t, uint32(21), binary.BigEndian.Uint32(msg.Value[1:5]))
	assert.JSONEq(t, `{"schedule_id":3}`, string(msg.Value[5:]))
}

func TestDLQManagerRequeuesUntilQuarantine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)
	writer := &fakeWriter{}
	d := NewDispatcher(pool, writer, testRegistry(), nil, time.Second, 10)
	manager := NewDLQManager(pool, nil, 2, time.Millisecond)

	insertOutboxRow(ctx, t, pool, "schedule.archived")
	require.NoError(t, d.processBatch(ctx))

	for attempt := 1; attempt <= 2; attempt++ {
		requeued, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, requeued, "attempt %d", attempt)
		assert.Equal(t, 0, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox_dlq`))

		require.NoError(t, d.processBatch(ctx))
		_, err = pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW() - INTERVAL '1 second'`)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, countRows(ctx, t, pool, `SELECT retry_count FROM outbox_dlq`))

	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, requeued)
	assert.Equal(t, 1, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`))
	assert.Empty(t, writer.byTopic)
}

func TestDispatcherSettlesDeliveredRowsWhenDeadLetteringFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)
	writer := &fakeWriter{}
	d := NewDispatcher(pool, writer, testRegistry(), nil, time.Second, 10)

	insertOutboxRow(ctx, t, pool, events.TypeScheduleCompleted)
	insertOutboxRow(ctx, t, pool, "schedule.archived")

	_, err := pool.Exec(ctx, `ALTER TABLE outbox_dlq RENAME TO outbox_dlq_offline`)
	require.NoError(t, err)
	require.Error(t, d.processBatch(ctx))
	assert.Equal(t, 1, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND event_type = 'schedule.archived'`))
	assert.Len(t, writer.byTopic[scheduleTopic], 1)

	_, err = pool.Exec(ctx, `ALTER TABLE outbox_dlq_offline RENAME TO outbox_dlq`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE outbox SET claimed_at = NULL`)
	require.NoError(t, err)

	require.NoError(t, d.processBatch(ctx))
	assert.Equal(t, 0, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
	assert.Equal(t, 1, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox_dlq`))
	assert.Len(t, writer.byTopic[scheduleTopic], 1)
}

func TestDispatcherSkipsRowsUnderLiveClaim(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)
	writer := &fakeWriter{}
	d := NewDispatcher(pool, writer, testRegistry(), nil, time.Second, 10)

	insertOutboxRow(ctx, t, pool, events.TypeScheduleCompleted)
	_, err := pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW()`)
	require.NoError(t, err)

	require.NoError(t, d.processBatch(ctx))
	assert.Empty(t, writer.byTopic)
	assert.Equal(t, 1, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))

	_, err = pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() - INTERVAL '1 hour'`)
	require.NoError(t, err)

	require.NoError(t, d.processBatch(ctx))
	assert.Len(t, writer.byTopic[scheduleTopic], 1)
	assert.Equal(t, 0, countRows(ctx, t, pool, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
}
