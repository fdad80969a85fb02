package guardrail

import (
	"context"
	"math"
	"sync"
)

// Embedder is the capability the semantic detector needs. Satisfied by the
// Provider Registry's `embed` role.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// exemplar is one known attack embedding in the semantic library.
type exemplar struct {
	text     string
	vector   []float32
	category Category
}

// SemanticDetector flags inputs whose embedding is close to a library of
// known attack exemplars. Cosine similarity above threshold triggers warn.
type SemanticDetector struct {
	embedder  Embedder
	threshold float64

	mu        sync.RWMutex
	exemplars []exemplar
}

// NewSemanticDetector creates a detector with the given cosine threshold
// (spec default 0.82).
func NewSemanticDetector(embedder Embedder, threshold float64) *SemanticDetector {
	if threshold <= 0 {
		threshold = 0.82
	}
	return &SemanticDetector{embedder: embedder, threshold: threshold}
}

// AddExemplar registers a known-attack embedding, typically supplied by the
// adaptive learner after a hard_block event.
func (d *SemanticDetector) AddExemplar(ctx context.Context, text string, category Category) error {
	if d.embedder == nil {
		return nil
	}
	vec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.exemplars = append(d.exemplars, exemplar{text: text, vector: vec, category: category})
	d.mu.Unlock()
	return nil
}

// Check embeds the variant and compares it against every exemplar, returning
// a warn finding for the closest match above threshold, if any.
func (d *SemanticDetector) Check(ctx context.Context, text, variant string) (*Finding, error) {
	if d.embedder == nil {
		return nil, nil
	}
	d.mu.RLock()
	exemplars := d.exemplars
	d.mu.RUnlock()
	if len(exemplars) == 0 {
		return nil, nil
	}

	vec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	var best float64
	var bestCategory Category
	for _, ex := range exemplars {
		sim := cosineSimilarity(vec, ex.vector)
		if sim > best {
			best = sim
			bestCategory = ex.category
		}
	}

	if best >= d.threshold {
		return &Finding{
			Category: bestCategory,
			Severity: Warn,
			RuleID:   "semantic-exemplar",
			Detail:   "embedding similarity above threshold",
			Variant:  variant,
		}, nil
	}
	return nil, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
