package model

// SearchResult represents a knowledge record retrieved by a query
type SearchResult struct {
	Record     *KnowledgeRecord `json:"record"`
	Similarity float64          `json:"similarity"`
}

// Stats is the aggregate view of the knowledge base.
type Stats struct {
	TotalChunks          int64              `json:"totalChunks"`
	TotalTokens          int64              `json:"totalTokens"`
	CategoryDistribution map[Category]int64 `json:"categoryDistribution"`
	UrgencyDistribution  map[Urgency]int64  `json:"urgencyDistribution"`
	SeasonDistribution   map[Season]int64   `json:"seasonDistribution,omitempty"`
}

// UpsertResult counts a single upsert call.
type UpsertResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// EmbedOutcome is the result of embedding one chunk, including its retry history.
type EmbedOutcome struct {
	ChunkID   string        `json:"chunk_id"`
	Status    OutcomeStatus `json:"status"`
	Attempts  int           `json:"attempts"`
	Calls     int           `json:"calls"`
	Tokens    int           `json:"tokens"`
	Truncated bool          `json:"truncated,omitempty"`
	Error     string        `json:"error,omitempty"`
	Embedding *Embedding    `json:"-"`
}

// FailedChunk is a chunk kept for manual reprocessing.
type FailedChunk struct {
	Chunk    *Chunk `json:"chunk"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// EmbedReport summarizes an embedding run.
type EmbedReport struct {
	RunID         string         `json:"run_id"`
	Embeddings    []*Embedding   `json:"-"`
	Failed        []*FailedChunk `json:"failed"`
	Outcomes      []EmbedOutcome `json:"outcomes"`
	Succeeded     int            `json:"succeeded"`
	TotalTokens   int            `json:"total_tokens"`
	APICalls      int            `json:"api_calls"`
	EstimatedCost float64        `json:"estimated_cost_usd"`
}

// BatchOutcome is the result of writing one upload batch.
type BatchOutcome struct {
	Index      int           `json:"index"`
	Status     OutcomeStatus `json:"status"`
	Attempts   int           `json:"attempts"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Error      string        `json:"error,omitempty"`
}

// FailedBatch is an upload batch that exhausted its retries.
type FailedBatch struct {
	Index    int                `json:"index"`
	Records  []*KnowledgeRecord `json:"records"`
	Error    string             `json:"error"`
	Attempts int                `json:"attempts"`
}

// UploadReport summarizes an upload run.
type UploadReport struct {
	RunID         string         `json:"run_id"`
	Inserted      int            `json:"inserted"`
	Duplicates    int            `json:"duplicates"`
	Batches       []BatchOutcome `json:"batches"`
	FailedBatches []*FailedBatch `json:"failed_batches"`
}

// IngestReport summarizes chunk, embed and upload of a document source.
type IngestReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Embed     *EmbedReport  `json:"embed"`
	Upload    *UploadReport `json:"upload"`
}

// QueryRequest is the input of the RAG query API.
type QueryRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// SourceReference describes a chunk used to ground a response.
type SourceReference struct {
	Title      string   `json:"title"`
	Category   Category `json:"category"`
	Similarity float64  `json:"similarity"`
}

// QueryMetadata describes how a response was grounded.
type QueryMetadata struct {
	SourcesUsed     int               `json:"sourcesUsed"`
	SearchQuality   float64           `json:"searchQuality"`
	RelevantSources []SourceReference `json:"relevantSources"`
	Topic           string            `json:"topic"`
	Urgency         Urgency           `json:"urgency"`
	Fallback        bool              `json:"fallback"`
}

// QueryResponse is the output of the RAG query API.
type QueryResponse struct {
	Response  string        `json:"response"`
	SessionID string        `json:"sessionId"`
	Metadata  QueryMetadata `json:"metadata"`
}
