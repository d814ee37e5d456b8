package learning

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/storage"
)

// similarityThreshold is the cosine floor for prior-query recall.
const similarityThreshold = 0.7

// HistoryRecord captures one executed query.
type HistoryRecord struct {
	QueryID       string    `json:"queryId"`
	ScopeID       string    `json:"scopeId,omitempty"`
	Query         string    `json:"query"`
	QueryHash     string    `json:"queryHash"`
	QueryVector   []float32 `json:"queryVector,omitempty"`
	Timestamp     string    `json:"timestamp"`
	ResultSummary string    `json:"resultSummary,omitempty"`
}

// HistoryStore is the append-only query log with similarity recall.
type HistoryStore struct {
	segments *segmentStore
	logger   *slog.Logger
}

// NewHistoryStore creates a history store under the learning directory.
func NewHistoryStore(store storage.Storage, maxRecords, maxFiles int) *HistoryStore {
	return &HistoryStore{
		segments: newSegmentStore(store, index.HistoryDir, "history", maxRecords, maxFiles),
		logger:   slog.Default(),
	}
}

// WithClock overrides the segment-naming time source.
func (h *HistoryStore) WithClock(now func() time.Time) *HistoryStore {
	h.segments.now = now
	return h
}

// Append records a query. Write failures are logged, never propagated.
func (h *HistoryStore) Append(rec HistoryRecord) {
	if rec.QueryID == "" {
		rec.QueryID = uuid.NewString()
	}
	if rec.QueryHash == "" {
		rec.QueryHash = hashutil.Sha256String(rec.Query)
	}
	if rec.Timestamp == "" {
		rec.Timestamp = h.segments.now().UTC().Format(time.RFC3339)
	}
	if err := h.segments.append(rec); err != nil {
		h.logger.Warn("history append failed", "error", err)
	}
}

// Recent returns up to limit records for a scope, oldest-first.
func (h *HistoryStore) Recent(scope string, limit int) []HistoryRecord {
	return h.filter(limit, func(rec *HistoryRecord) bool {
		return scope == "" || rec.ScopeID == scope
	})
}

// Similar returns records whose stored query vector is cosine-similar to
// queryVector above the recall threshold.
func (h *HistoryStore) Similar(queryVector []float32, limit int) []HistoryRecord {
	return h.filter(limit, func(rec *HistoryRecord) bool {
		if len(rec.QueryVector) == 0 {
			return false
		}
		return hashutil.CosineSimilarity(queryVector, rec.QueryVector) > similarityThreshold
	})
}

func (h *HistoryStore) filter(limit int, keep func(*HistoryRecord) bool) []HistoryRecord {
	var out []HistoryRecord
	raws, err := h.segments.read(limit, func(raw json.RawMessage) bool {
		var rec HistoryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return false
		}
		return keep(&rec)
	})
	if err != nil {
		h.logger.Warn("history read failed", "error", err)
		return nil
	}
	for _, raw := range raws {
		var rec HistoryRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}
