package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthanalysis/internal/logger"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = time.Minute
	maxBackoff        = time.Hour
)

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	log        *logger.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, log *logger.Logger, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DLQManager{pool: pool, log: log, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce processes a batch of due DLQ entries and returns how many were re-queued.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY created_at
        LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries := make([]dlqEntry, 0)
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}

	requeued := 0
	for _, entry := range entries {
		ok, procErr := m.handleEntry(ctx, entry)
		if procErr != nil {
			err = errors.Join(err, procErr)
			continue
		}
		if ok {
			requeued++
		}
	}
	refreshBacklog(ctx, m.pool)
	return requeued, err
}

// Watch runs RunOnce on every tick until ctx is cancelled.
func (m *DLQManager) Watch(ctx context.Context, interval time.Duration, batchSize int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		requeued, err := m.RunOnce(ctx, batchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error("dlq retry pass failed", "error", err)
		} else if requeued > 0 {
			m.log.Info("dlq entries requeued", "count", requeued)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// handleEntry applies retry or quarantine to one entry and reports whether it was re-queued.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) (bool, error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		recordTransition(entry, actionQuarantined)
		m.log.Warn("dlq entry quarantined", "dlq_id", entry.ID, "event_type", entry.EventType, "retries", entry.RetryCount)
		return false, nil
	}

	if insertErr := requeueOutbox(ctx, tx, entry); insertErr != nil {
		// the failed insert aborted tx; record the retry in its own statement
		tx.Rollback(ctx)
		nextRetry := retryAt(time.Now().UTC(), m.baseDelay, entry.RetryCount+1)
		if _, err := m.pool.Exec(ctx,
			`UPDATE outbox_dlq
                SET retry_count = retry_count + 1,
                    last_attempt_at = NOW(),
                    next_retry_at = $1,
                    reason = $2
              WHERE dlq_id = $3`,
			nextRetry, insertErr.Error(), entry.ID,
		); err != nil {
			return false, err
		}
		recordTransition(entry, actionRetryScheduled)
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	recordTransition(entry, actionRequeued)
	return true, nil
}

// backoffDelay doubles base for every attempt after the first, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return maxBackoff
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	return delay
}

// retryAt is when an entry that has been retried attempts times becomes due. First
// failures are due immediately.
func retryAt(now time.Time, base time.Duration, attempts int) time.Time {
	if attempts <= 0 {
		return now
	}
	return now.Add(backoffDelay(base, attempts))
}

// requeueOutbox reinserts the payload into the primary outbox table for replay, carrying
// the incremented retry count.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := tx.Exec(ctx, stmt,
		entry.TenantID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
		entry.RetryCount+1,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	TenantID      string
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
