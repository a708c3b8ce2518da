package buffer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/restosync/pos-agent/internal/model"
	"github.com/restosync/pos-agent/internal/util"
)

// Enqueue buffers a payload for a future delivery attempt and returns
// the assigned batch id. IDs are ULIDs, so id order matches creation
// order.
func (q *Queue) Enqueue(ctx context.Context, storeID string, payload []byte, recordCount int) (string, error) {
	id := util.NewID()

	const ins = `
		INSERT INTO pending_sync (id, store_id, payload, record_count, created_at, retry_count, status)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	err := q.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, ins, id, storeID, payload, recordCount, time.Now(), model.StatusPending)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPending returns up to limit pending batches, oldest first.
// Oldest-first is what keeps redelivery fair: new extractions never
// starve data buffered during an outage.
func (q *Queue) ListPending(ctx context.Context, limit int) ([]model.PendingBatch, error) {
	const sel = `
		SELECT id, store_id, payload, record_count, created_at, retry_count, last_error, status
		FROM pending_sync
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`
	var batches []model.PendingBatch
	if err := q.db.SelectContext(ctx, &batches, sel, model.StatusPending, limit); err != nil {
		return nil, err
	}
	return batches, nil
}

// MarkDelivered appends a history row for the batch and removes it from
// pending, atomically. Unknown ids are a no-op: a duplicate success
// signal after a retry must not fail or double-record.
func (q *Queue) MarkDelivered(ctx context.Context, id string, duration time.Duration) error {
	return q.withTx(ctx, func(tx *sqlx.Tx) error {
		var b model.PendingBatch
		err := tx.GetContext(ctx, &b,
			`SELECT id, store_id, record_count FROM pending_sync WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		const hist = `
			INSERT INTO sync_history (id, store_id, record_count, synced_at, duration_seconds, status)
			VALUES (?, ?, ?, ?, ?, 'success')
		`
		if _, err := tx.ExecContext(ctx, hist,
			b.ID, b.StoreID, b.RecordCount, time.Now(), duration.Seconds()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM pending_sync WHERE id = ?`, id)
		return err
	})
}

// MarkFailed records a failed redelivery attempt: retry_count is
// incremented and last_error overwritten. Unknown ids are a no-op.
func (q *Queue) MarkFailed(ctx context.Context, id, errMsg string) error {
	const upd = `
		UPDATE pending_sync
		SET retry_count = retry_count + 1, last_error = ?
		WHERE id = ?
	`
	return q.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, upd, errMsg, id)
		return err
	})
}

// Stats aggregates the buffer into a health snapshot. Batches whose
// retry_count has reached retryCeiling are counted as abandoned so the
// operator can see work the agent has stopped hammering on.
func (q *Queue) Stats(ctx context.Context, retryCeiling int) (model.HealthSnapshot, error) {
	var snap model.HealthSnapshot

	const pending = `
		SELECT COUNT(*) AS batches, COALESCE(SUM(record_count), 0) AS records
		FROM pending_sync WHERE status = ?
	`
	var p struct {
		Batches int `db:"batches"`
		Records int `db:"records"`
	}
	if err := q.db.GetContext(ctx, &p, pending, model.StatusPending); err != nil {
		return snap, err
	}
	snap.PendingBatches = p.Batches
	snap.PendingRecords = p.Records

	const abandoned = `
		SELECT COUNT(*) FROM pending_sync WHERE status = ? AND retry_count >= ?
	`
	if err := q.db.GetContext(ctx, &snap.AbandonedBatches, abandoned, model.StatusPending, retryCeiling); err != nil {
		return snap, err
	}

	const synced = `
		SELECT COUNT(*) AS batches, COALESCE(SUM(record_count), 0) AS records
		FROM sync_history WHERE synced_at > ?
	`
	var s struct {
		Batches int `db:"batches"`
		Records int `db:"records"`
	}
	if err := q.db.GetContext(ctx, &s, synced, time.Now().Add(-24*time.Hour)); err != nil {
		return snap, err
	}
	snap.Synced24hBatches = s.Batches
	snap.Synced24hRecords = s.Records

	return snap, nil
}

// PurgeOlderThan deletes pending and history rows older than age,
// regardless of status, and returns how many rows went. This is the
// bounded-retention policy: pending work past the ceiling is dropped
// here, deliberately, rather than accumulating forever.
func (q *Queue) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	var deleted int64
	err := q.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM pending_sync WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		deleted += n

		res, err = tx.ExecContext(ctx, `DELETE FROM sync_history WHERE synced_at < ?`, cutoff)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		deleted += n

		return nil
	})
	return deleted, err
}

// SetStatus upserts one key in the agent_status table. Used to persist
// things like the last successful sync across restarts.
func (q *Queue) SetStatus(ctx context.Context, key, value string) error {
	const upsert = `
		INSERT INTO agent_status (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	return q.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, upsert, key, value, time.Now())
		return err
	})
}

// GetStatus reads one key from agent_status. The bool reports whether
// the key exists.
func (q *Queue) GetStatus(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := q.db.GetContext(ctx, &value, `SELECT value FROM agent_status WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value.String, true, nil
}
