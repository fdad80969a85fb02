package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/atlas-cortex/cortex/internal/data"
)

// DefaultRRFTopK is how many fused memory cells the HOT path returns absent
// an explicit override.
const DefaultRRFTopK = 8

// denseSearchThreshold is the minimum cosine similarity SearchSimilar
// considers a candidate worth returning at all; RRF itself only cares about
// rank, so this just bounds how far the dense fan-out reaches.
const denseSearchThreshold = 0.3

// HotStore is the Memory Store's HOT-path read path: it reciprocal-rank-fuses
// a dense vector search against the bucketed LSH index with a sparse BM25
// search over memories_fts, then hydrates and returns the fused top-K memory
// cells. It implements a2a.MemoryProvider via RetrieveContext.
type HotStore struct {
	db       *data.Store
	index    *VectorIndex
	embedder Embedder
	rrfK     int
	topN     int
}

// NewHotStore builds a HotStore. rrfK is the RRF constant (Config.Memory.RRFConstantK,
// typically 60); Search and RetrieveContext return at most DefaultRRFTopK
// fused results.
func NewHotStore(db *data.Store, index *VectorIndex, embedder Embedder, rrfK int) *HotStore {
	if rrfK <= 0 {
		rrfK = 60
	}
	return &HotStore{db: db, index: index, embedder: embedder, rrfK: rrfK, topN: DefaultRRFTopK}
}

// Search runs the dense and sparse legs concurrently and reciprocal-rank-fuses
// their rankings: score(c) = sum(1 / (k + rank_i(c))) across every ranking
// list c appears in. Candidates that appear in both lists score higher than
// either alone, which is the point of RRF over picking one modality.
func (h *HotStore) Search(ctx context.Context, userID, query string) ([]*data.MemoryCell, error) {
	var denseIDs []string
	var sparseCells []*data.MemoryCell

	p := pool.New().WithErrors()

	p.Go(func() error {
		if h.embedder == nil {
			return nil // dense leg unavailable; sparse-only is an acceptable degrade
		}
		queryEmb, err := h.embedder.EmbedFast(ctx, query)
		if err != nil {
			return nil // timeout/unavailable embedder degrades to sparse-only, not an error
		}
		scored, err := h.index.SearchSimilar(ctx, queryEmb, h.topN*3, denseSearchThreshold)
		if err != nil {
			return nil
		}
		ids := make([]string, len(scored))
		for i, s := range scored {
			ids[i] = s.Item.ID
		}
		denseIDs = ids
		return nil
	})

	p.Go(func() error {
		cells, err := h.db.SearchMemoriesFTS(ctx, userID, query, h.topN*3)
		if err != nil {
			return fmt.Errorf("sparse search: %w", err)
		}
		sparseCells = cells
		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	sparseIDs := make([]string, len(sparseCells))
	for i, c := range sparseCells {
		sparseIDs[i] = c.ID
	}

	fusedIDs := reciprocalRankFusion(h.rrfK, h.topN, denseIDs, sparseIDs)
	if len(fusedIDs) == 0 {
		return nil, nil
	}

	return h.db.GetMemoriesByIDs(ctx, userID, fusedIDs)
}

// reciprocalRankFusion combines any number of ranked id lists into a single
// ranking by score(c) = sum(1/(k+rank)) over every list containing c, rank
// being 1-indexed position. Returns the top n ids, highest score first.
func reciprocalRankFusion(k, n int, rankings ...[]string) []string {
	scores := make(map[string]float64)
	order := make([]string, 0) // preserves first-seen order for stable ties

	for _, ranking := range rankings {
		for rank, id := range ranking {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if n > 0 && len(order) > n {
		order = order[:n]
	}
	return order
}

// RetrieveContext implements a2a.MemoryProvider: it fuses HOT-path search
// results into a short text block the Context Assembler / fast-chat path can
// prepend to the model's input.
func (h *HotStore) RetrieveContext(ctx context.Context, userID, query string) (string, error) {
	cells, err := h.Search(ctx, userID, query)
	if err != nil {
		return "", err
	}
	if len(cells) == 0 {
		return "", nil
	}

	out := "Relevant things you remember about this user:\n"
	for _, c := range cells {
		out += "- " + c.Content + "\n"
	}
	return out, nil
}
