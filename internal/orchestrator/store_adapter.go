package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlas-cortex/cortex/internal/data"
	"github.com/atlas-cortex/cortex/internal/memory"
	"github.com/atlas-cortex/cortex/internal/resolver"
)

func newInteractionID() string {
	return uuid.NewString()
}

// StoreAdapter narrows data.Store to the handful of methods the Pipeline
// Driver's collaborators need, and translates between data's persistence
// shapes and the orchestrator/resolver packages' own request-scoped types —
// keeping those packages decoupled from data's schema.
type StoreAdapter struct {
	db  *data.Store
	enq ColdEnqueuer
}

// ColdEnqueuer enqueues a raw interaction for the memory COLD path. Only
// InteractionRecord.MessageText is ever considered memory-worthy; response
// text is logged but never fed back into the memory pipeline.
type ColdEnqueuer interface {
	EnqueueColdEvent(ctx context.Context, userID, interactionID, rawText string) error
}

// NewStoreAdapter wraps db. Pass the same *data.Store as enq; it implements
// ColdEnqueuer directly.
func NewStoreAdapter(db *data.Store) *StoreAdapter {
	return &StoreAdapter{db: db, enq: db}
}

// RecentInteractions implements resolver.InteractionReader.
func (a *StoreAdapter) RecentInteractions(ctx context.Context, userID string, limit int) ([]resolver.RecentInteraction, error) {
	recs, err := a.db.RecentInteractions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.RecentInteraction, len(recs))
	for i, r := range recs {
		out[i] = resolver.RecentInteraction{MessageText: r.MessageText, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// LogInteraction implements orchestrator.InteractionLogger: it persists the
// append-only interaction log row, then enqueues the user's message text
// onto the memory COLD path so the consumer can redact/classify/embed it
// asynchronously.
func (a *StoreAdapter) LogInteraction(ctx context.Context, rec InteractionRecord) error {
	id := newInteractionID()
	err := a.db.LogInteraction(ctx, &data.InteractionRecord{
		ID:                id,
		UserID:            rec.UserID,
		MessageText:       rec.MessageText,
		MatchedLayer:      rec.Layer,
		ResponseText:      rec.ResponseText,
		ResponseLatencyMS: rec.Latency.Milliseconds(),
		SelectedModel:     rec.ModelUsed,
		Confidence:        rec.Confidence,
	})
	if err != nil {
		return err
	}

	if rec.Blocked || rec.MessageText == "" {
		return nil
	}
	return a.enq.EnqueueColdEvent(ctx, rec.UserID, id, rec.MessageText)
}

// SystemAssembler's only dependency on memory is MemoryProvider's
// RetrieveContext, already satisfied by *memory.HotStore; this assertion
// documents that seam.
var _ interface {
	RetrieveContext(ctx context.Context, userID, query string) (string, error)
} = (*memory.HotStore)(nil)
