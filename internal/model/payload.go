package model

// ExtractionTimeLayout is the timestamp format the ingest endpoint
// expects in SyncPayload.ExtractionTime.
const ExtractionTimeLayout = "2006-01-02 15:04:05"

// ChunkInfo carries chunk-position metadata when an extraction was
// split into multiple deliveries.
type ChunkInfo struct {
	ChunkNumber  int `json:"chunk_number"`
	TotalChunks  int `json:"total_chunks"`
	ChunkRecords int `json:"chunk_records"`
}

// SyncPayload is the wire payload POSTed to the ingest endpoint.
type SyncPayload struct {
	StoreID        string           `json:"store_id"`
	Data           ExtractionResult `json:"data"`
	ExtractionTime string           `json:"extraction_time"`
	AgentVersion   string           `json:"agent_version"`
	ChunkInfo      *ChunkInfo       `json:"chunk_info,omitempty"`
}

// Heartbeat is the best-effort status report POSTed to the heartbeat
// endpoint, independent of data delivery.
type Heartbeat struct {
	StoreID        string  `json:"store_id"`
	AgentVersion   string  `json:"agent_version"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"` // "healthy" | "degraded"
	LastSync       *string `json:"last_sync"`
	PendingRecords int     `json:"pending_records"`
	Synced24h      int     `json:"synced_24h"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
}
