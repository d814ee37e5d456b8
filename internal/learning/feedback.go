package learning

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/storage"
)

// Feedback types.
const (
	FeedbackImplicit = "implicit"
	FeedbackExplicit = "explicit"
)

// FeedbackEntry grades one chunk's usefulness for one query. The chunk
// need not still exist.
type FeedbackEntry struct {
	FeedbackID string         `json:"feedbackId"`
	QueryID    string         `json:"queryId"`
	ChunkID    string         `json:"chunkId"`
	ScopeID    string         `json:"scopeId,omitempty"`
	Type       string         `json:"type"`
	Score      float64        `json:"score"`
	Timestamp  string         `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChunkFeedback aggregates feedback per chunk.
type ChunkFeedback struct {
	AvgScore float64 `json:"avgScore"`
	Count    int     `json:"count"`
}

// FeedbackStore is the append-only feedback log.
type FeedbackStore struct {
	segments *segmentStore
	logger   *slog.Logger
}

// NewFeedbackStore creates a feedback store under the learning directory.
func NewFeedbackStore(store storage.Storage, maxRecords, maxFiles int) *FeedbackStore {
	return &FeedbackStore{
		segments: newSegmentStore(store, index.FeedbackDir, "feedback", maxRecords, maxFiles),
		logger:   slog.Default(),
	}
}

// WithClock overrides the segment-naming time source.
func (f *FeedbackStore) WithClock(now func() time.Time) *FeedbackStore {
	f.segments.now = now
	return f
}

// Append records feedback, clamping score into [0,1]. Write failures are
// logged, never propagated.
func (f *FeedbackStore) Append(entry FeedbackEntry) {
	if entry.FeedbackID == "" {
		entry.FeedbackID = uuid.NewString()
	}
	if entry.Type == "" {
		entry.Type = FeedbackImplicit
	}
	if entry.Score < 0 {
		entry.Score = 0
	}
	if entry.Score > 1 {
		entry.Score = 1
	}
	if entry.Timestamp == "" {
		entry.Timestamp = f.segments.now().UTC().Format(time.RFC3339)
	}
	if err := f.segments.append(entry); err != nil {
		f.logger.Warn("feedback append failed", "error", err)
	}
}

// Aggregate computes per-chunk average score and usage count for a scope
// (all scopes when empty).
func (f *FeedbackStore) Aggregate(scope string) map[string]ChunkFeedback {
	sums := map[string]float64{}
	counts := map[string]int{}

	raws, err := f.segments.read(0, nil)
	if err != nil {
		f.logger.Warn("feedback read failed", "error", err)
		return map[string]ChunkFeedback{}
	}
	for _, raw := range raws {
		var entry FeedbackEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if scope != "" && entry.ScopeID != scope {
			continue
		}
		sums[entry.ChunkID] += entry.Score
		counts[entry.ChunkID]++
	}

	out := make(map[string]ChunkFeedback, len(counts))
	for chunkID, count := range counts {
		out[chunkID] = ChunkFeedback{
			AvgScore: sums[chunkID] / float64(count),
			Count:    count,
		}
	}
	return out
}

// boostWeight scales feedback averages into a small score bonus so
// popularity nudges ranking without overriding similarity.
const boostWeight = 0.05

// Boosts converts aggregated feedback into per-chunk search-score bonuses.
func Boosts(agg map[string]ChunkFeedback) map[string]float64 {
	out := make(map[string]float64, len(agg))
	for chunkID, fb := range agg {
		out[chunkID] = fb.AvgScore * boostWeight
	}
	return out
}
