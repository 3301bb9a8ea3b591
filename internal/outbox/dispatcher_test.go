package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/healthanalysis/internal/events"
)

type fakeWriter struct {
	byTopic  map[string][]kafka.Message
	failures map[string]error
}

func (w *fakeWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if err := w.failures[topic]; err != nil {
		return err
	}
	if w.byTopic == nil {
		w.byTopic = make(map[string][]kafka.Message)
	}
	w.byTopic[topic] = append(w.byTopic[topic], msgs...)
	return nil
}

type fakeRegistry struct {
	calls atomic.Int32
	ids   map[string]int
}

func (r *fakeRegistry) EnsureSchema(_ context.Context, subject, _ string) (int, error) {
	r.calls.Add(1)
	id, ok := r.ids[subject]
	if !ok {
		return 0, errors.New("unknown subject")
	}
	return id, nil
}

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(42, []byte(`{"a":1}`))
	require.Len(t, frame, 5+7)
	assert.Equal(t, byte(0), frame[0])
	assert.Equal(t, uint32(42), binary.BigEndian.Uint32(frame[1:5]))
	assert.Equal(t, `{"a":1}`, string(frame[5:]))
}

func recommendationCreated(id int64) Message {
	return Message{
		EventID: id, TenantID: "t", AggregateID: "1", EventType: events.TypeRecommendationCreated, Topic: "health_recommendation_events",
		SchemaSubject: "health_recommendation_events-RecommendationCreated", PartitionKey: "t:u",
		Payload: json.RawMessage(`{"recommendation_id":1}`),
	}
}

func scheduleCompleted(id int64) Message {
	return Message{
		EventID: id, TenantID: "t", AggregateID: "3", EventType: events.TypeScheduleCompleted, Topic: "health_schedule_events",
		SchemaSubject: "health_schedule_events-ScheduleCompleted", PartitionKey: "1",
		Payload: json.RawMessage(`{"schedule_id":3}`),
	}
}

func testRegistry() *fakeRegistry {
	return &fakeRegistry{ids: map[string]int{
		"health_recommendation_events-RecommendationCreated": 7,
		"health_schedule_events-ScheduleCompleted":           9,
	}}
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	writer := &fakeWriter{}
	registry := testRegistry()
	d := NewDispatcher(nil, writer, registry, nil, 0, 0)

	failures := d.deliver(context.Background(), []Message{recommendationCreated(1), recommendationCreated(2), scheduleCompleted(3)})
	require.Empty(t, failures)

	require.Len(t, writer.byTopic["health_recommendation_events"], 2)
	require.Len(t, writer.byTopic["health_schedule_events"], 1)
	assert.EqualValues(t, 2, registry.calls.Load())

	first := writer.byTopic["health_recommendation_events"][0]
	assert.Equal(t, "t:u", string(first.Key))
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(first.Value[1:5]))
	assert.Equal(t, `{"recommendation_id":1}`, string(first.Value[5:]))

	completed := writer.byTopic["health_schedule_events"][0]
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(completed.Value[1:5]))

	d.deliver(context.Background(), []Message{recommendationCreated(4)})
	assert.EqualValues(t, 2, registry.calls.Load())
}

func TestDeliverIsolatesUnknownEventTypes(t *testing.T) {
	writer := &fakeWriter{}
	d := NewDispatcher(nil, writer, testRegistry(), nil, 0, 0)

	failures := d.deliver(context.Background(), []Message{
		{EventID: 1, EventType: "mystery.event", Topic: "health_recommendation_events"},
		recommendationCreated(2),
	})
	require.Len(t, failures, 1)
	assert.EqualValues(t, 1, failures[0].msg.EventID)
	assert.Contains(t, failures[0].err.Error(), "mystery.event")
	assert.Len(t, writer.byTopic["health_recommendation_events"], 1)
}

func TestDeliverFailsOnlyTheBrokenTopic(t *testing.T) {
	writer := &fakeWriter{failures: map[string]error{"health_schedule_events": errors.New("broker down")}}
	d := NewDispatcher(nil, writer, testRegistry(), nil, 0, 0)

	failures := d.deliver(context.Background(), []Message{recommendationCreated(1), scheduleCompleted(2), scheduleCompleted(3)})
	require.Len(t, failures, 2)
	for _, f := range failures {
		assert.Equal(t, "health_schedule_events", f.msg.Topic)
		assert.ErrorContains(t, f.err, "broker down")
	}
	assert.Len(t, writer.byTopic["health_recommendation_events"], 1)
}

func TestDeliverDeadLettersSchemaFailures(t *testing.T) {
	writer := &fakeWriter{}
	d := NewDispatcher(nil, writer, &fakeRegistry{}, nil, 0, 0)

	failures := d.deliver(context.Background(), []Message{scheduleCompleted(1)})
	require.Len(t, failures, 1)
	assert.ErrorContains(t, failures[0].err, "unknown subject")
	assert.Empty(t, writer.byTopic)
}

func TestPartitionSplitsDeliveredFromFailed(t *testing.T) {
	batch := []Message{recommendationCreated(1), scheduleCompleted(2), recommendationCreated(3), scheduleCompleted(4)}
	delivered, deadLettered := partition(batch, []failure{
		{msg: batch[3], err: errors.New("broker down")},
		{msg: batch[1], err: errors.New("broker down")},
	})
	assert.Equal(t, []int64{1, 3}, eventIDs(delivered))
	assert.Equal(t, []int64{2, 4}, eventIDs(deadLettered))

	delivered, deadLettered = partition(batch, nil)
	assert.Len(t, delivered, 4)
	assert.Empty(t, deadLettered)
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(nil, &fakeWriter{}, testRegistry(), nil, 0, 0)
	assert.Equal(t, 100, d.batchSize)
	assert.Equal(t, time.Second, d.pollInterval)
	assert.Equal(t, defaultClaimLease, d.claimLease)
}

func TestEventIDs(t *testing.T) {
	assert.Equal(t, []int64{4, 9}, eventIDs([]Message{{EventID: 4}, {EventID: 9}}))
}

func TestSchemaCatalogCoversEveryEventType(t *testing.T) {
	for _, eventType := range []string{
		events.TypeRecommendationCreated,
		events.TypeRecommendationUpdated,
		events.TypeScheduleCreated,
		events.TypeScheduleCompleted,
	} {
		schema, ok := schemaByEventType[eventType]
		require.True(t, ok, eventType)
		assert.True(t, json.Valid([]byte(schema)), eventType)
	}
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, nil, 0, 0)
	assert.Equal(t, defaultMaxRetries, m.maxRetries)
	assert.Equal(t, time.Minute, backoffDelay(m.baseDelay, 1))
	assert.Equal(t, 2*time.Minute, backoffDelay(m.baseDelay, 2))
	assert.Equal(t, 16*time.Minute, backoffDelay(m.baseDelay, 5))
	assert.Equal(t, time.Hour, backoffDelay(m.baseDelay, 7))
	assert.Equal(t, time.Hour, backoffDelay(m.baseDelay, 64))

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, now, retryAt(now, time.Minute, 0))
	assert.Equal(t, now.Add(4*time.Minute), retryAt(now, time.Minute, 3))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/orders-value/versions/latest":
			if !registered.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"id": 11}`))
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/orders-value/versions":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "JSON", body["schemaType"])
			registered.Store(true)
			_, _ = w.Write([]byte(`{"id": 11}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "orders-value", `{"type":"object"}`)
	require.NoError(t, err)
	assert.Equal(t, 11, id)
	assert.True(t, registered.Load())

	id, err = client.EnsureSchema(context.Background(), "orders-value", `{"type":"object"}`)
	require.NoError(t, err)
	assert.Equal(t, 11, id)
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "s", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestKafkaProducerReusesWriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})
	first := p.writer("health_schedule_events")
	assert.Same(t, first, p.writer("health_schedule_events"))
	assert.NotSame(t, first, p.writer("health_recommendation_events"))
	assert.Equal(t, &kafka.Hash{}, first.Balancer)

	require.NoError(t, p.Close())
	assert.Empty(t, p.writers)
}

func TestRecordOutcomeLabelsByEventType(t *testing.T) {
	counter := eventsTotal.WithLabelValues(events.TypeScheduleCompleted, outcomeDeadLettered)
	before := testutil.ToFloat64(counter)

	recordOutcome([]Message{scheduleCompleted(1), scheduleCompleted(2)}, outcomeDeadLettered)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
