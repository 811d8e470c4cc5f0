package types

// IndexSizes reports the number of entries held by each secondary index.
type IndexSizes struct {
	Temporal    int64 `json:"temporal"`
	Process     int64 `json:"process"`
	Function    int64 `json:"function"`
	Correlation int64 `json:"correlation"`
	ASTNode     int64 `json:"ast_node"`
}

// Stats is a point-in-time snapshot of store-wide counters. It reflects
// the state after the last completed write or prune batch; there is no
// guarantee of consistency with an in-flight operation.
//
// MemoryBytesEstimate is advisory — a cheap approximation, not a precise
// allocator accounting — and may lag reality by one operation.
type Stats struct {
	TotalEvents         int64      `json:"total_events"`
	MemoryBytesEstimate int64      `json:"memory_bytes_estimate"`
	IndexSizes          IndexSizes `json:"index_sizes"`
	OldestTimestamp     *int64     `json:"oldest_timestamp,omitempty"`
	NewestTimestamp     *int64     `json:"newest_timestamp,omitempty"`
	FullScanCount       int64      `json:"full_scan_count"`
}
