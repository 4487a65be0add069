package handlers

import "time"

// ErrorResponse is the JSON body returned for any non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// IngestRequest is the body of POST /memories.
type IngestRequest struct {
	Messages    []MessageDTO           `json:"messages"`
	UserID      string                 `json:"user_id"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	SummaryMode bool                   `json:"summary_mode,omitempty"`
	InitMode    bool                   `json:"init_mode,omitempty"`
}

// MessageDTO is one role-tagged transcript turn on the wire.
type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestResultDTO is one outcome of an ingestion request.
type IngestResultDTO struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

// IngestResponse wraps the per-fact results of an ingestion request.
type IngestResponse struct {
	Results []IngestResultDTO `json:"results"`
}

// ListResponse is the body of GET /memories.
type ListResponse struct {
	Memories []MemoryDTO `json:"memories"`
}

// MemoryDTO is one stored fact as surfaced over the wire.
type MemoryDTO struct {
	ID        string                 `json:"id"`
	Memory    string                 `json:"memory"`
	Chunk     string                 `json:"chunk,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SearchRequest is the body of POST /memories/search.
type SearchRequest struct {
	Query         string  `json:"query"`
	UserID        string  `json:"user_id"`
	Limit         int     `json:"limit,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	RecencyWeight float64 `json:"recency_weight,omitempty"`
}

// SearchResultDTO is one ranked result.
type SearchResultDTO struct {
	Score     float64                `json:"score"`
	Memory    string                 `json:"memory"`
	Chunk     string                 `json:"chunk,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Date      string                 `json:"date,omitempty"`
}

// SearchResponse wraps the ranked results of a search request.
type SearchResponse struct {
	Results []SearchResultDTO `json:"results"`
}

// HealthResponse reports which required environment variables are still
// unset, per the Unconfigured error taxonomy: while the list is non-empty,
// ingestion and search are refused with 503; listing and delete still run.
type HealthResponse struct {
	Unconfigured []string `json:"unconfigured"`
}
