package domain

import "time"

const (
	// DefaultRetrievalLimit is used when a query does not ask for a result count
	DefaultRetrievalLimit = 5

	// MaxRetrievalLimit caps caller-supplied result counts
	MaxRetrievalLimit = 50

	// DefaultMinSimilarity is used when a query does not supply a threshold
	DefaultMinSimilarity = 0.7
)

// IngestRequest is the input to the ingestion pipeline
type IngestRequest struct {
	Title    string
	SectorID string
	Kind     SourceKind
	Data     []byte
	Metadata map[string]string
}

// IngestResult summarises a finished ingestion
type IngestResult struct {
	SourceID      string       `json:"source_id"`
	Title         string       `json:"title"`
	FragmentCount int          `json:"fragment_count"`
	ContentSize   int          `json:"content_size"` // Bytes of normalized text
	Status        SourceStatus `json:"status"`
}

// RetrievalOptions are the caller-tunable search knobs.
// A zero Limit or nil MinSimilarity selects the default.
type RetrievalOptions struct {
	Limit         int
	MinSimilarity *float64
}

// Resolve applies defaults and clamps
func (o RetrievalOptions) Resolve(defaultLimit, maxLimit int, defaultMinSimilarity float64) (int, float64) {
	limit := o.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	threshold := defaultMinSimilarity
	if o.MinSimilarity != nil {
		threshold = *o.MinSimilarity
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return limit, threshold
}

// QueryRequest is the input to the query pipeline
type QueryRequest struct {
	UserID         string
	SectorID       string
	Question       string
	ConversationID string // Optional; empty resolves by user and sector
	Options        RetrievalOptions
}

// Citation is a retrieved fragment returned alongside an answer
type Citation struct {
	FragmentID string            `json:"fragment_id"`
	SourceID   string            `json:"source_id"`
	Content    string            `json:"content"`
	Position   int               `json:"position"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QueryResponse is the answer to a question
type QueryResponse struct {
	ResponseText   string      `json:"response_text"`
	ConversationID string      `json:"conversation_id"`
	Sources        []*Citation `json:"sources"`
	Timestamp      time.Time   `json:"timestamp"`
}
