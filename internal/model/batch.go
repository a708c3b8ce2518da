package model

import (
	"database/sql"
	"time"
)

type BatchStatus string

// StatusPending is the only status a pending_sync row can hold:
// delivery deletes the row and writes sync_history instead of flagging
// it in place.
const StatusPending BatchStatus = "pending"

// PendingBatch is one unit of extracted data awaiting delivery,
// persisted in the pending_sync table. Delivered batches are removed
// from pending and copied into sync_history, never kept around.
type PendingBatch struct {
	ID          string         `db:"id"` // ULID, so id order == creation order
	StoreID     string         `db:"store_id"`
	Payload     []byte         `db:"payload"` // serialized SyncPayload
	RecordCount int            `db:"record_count"`
	CreatedAt   time.Time      `db:"created_at"`
	RetryCount  int            `db:"retry_count"`
	LastError   sql.NullString `db:"last_error"`
	Status      BatchStatus    `db:"status"`
}

// SyncHistoryRecord is the append-only audit row written when a batch
// is delivered. Never mutated after insert; purged by age.
type SyncHistoryRecord struct {
	ID              string         `db:"id"`
	StoreID         string         `db:"store_id"`
	RecordCount     int            `db:"record_count"`
	SyncedAt        time.Time      `db:"synced_at"`
	DurationSeconds float64        `db:"duration_seconds"`
	Status          string         `db:"status"`
	ErrorMessage    sql.NullString `db:"error_message"`
}

// HealthSnapshot is the derived aggregate view over the buffer,
// computed on demand and never cached.
type HealthSnapshot struct {
	PendingBatches   int `json:"pending_batches"`
	PendingRecords   int `json:"pending_records"`
	AbandonedBatches int `json:"abandoned_batches"`
	Synced24hBatches int `json:"synced_24h_batches"`
	Synced24hRecords int `json:"synced_24h_records"`
}
