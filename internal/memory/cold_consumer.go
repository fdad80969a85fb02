package memory

import (
	"context"
	"regexp"
	"strings"

	"github.com/atlas-cortex/cortex/internal/data"
)

// piiPatterns match the COLD path's required redaction classes: emails,
// phone numbers, SSN-like sequences, and card numbers. Matched substrings
// are replaced before anything is persisted; raw text is never stored
// post-redaction.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),        // email
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`),                       // SSN-like
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),                                  // card number
	regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), // phone
}

// RedactPII masks every matched PII pattern in text with a type tag, leaving
// the surrounding sentence intact so the redacted text is still useful as a
// memory.
func RedactPII(text string) string {
	redacted := text
	tags := []string{"[EMAIL]", "[SSN]", "[CARD]", "[PHONE]"}
	for i, re := range piiPatterns {
		redacted = re.ReplaceAllString(redacted, tags[i])
	}
	return redacted
}

// decisionKeywords classify candidate text by deterministic heuristic,
// cheapest-and-most-specific first. Ambiguous text (no keyword match) is
// classified as interaction, the lowest-signal type, rather than calling a
// model for every COLD event.
var decisionKeywords = []struct {
	keywords []string
	memType  MemoryType
}{
	{[]string{"i prefer", "i like", "i want", "always set", "please keep"}, MemoryTypePreference},
	{[]string{"i decided", "let's go with", "we'll use", "i'm switching to"}, MemoryTypeDecision},
	{[]string{"actually", "no, i meant", "correction", "that's wrong", "i meant to say"}, MemoryTypeCorrection},
	{[]string{"i'm feeling", "i feel", "i'm so", "that makes me"}, MemoryTypeMood},
	{[]string{"my name is", "i live", "i work", "i was born", "my birthday"}, MemoryTypeFact},
}

// Decider classifies a redacted COLD candidate into the Memory Record
// taxonomy. LLMProvider is used only when no keyword rule fires and the
// candidate is long enough to plausibly carry durable signal; short,
// unclassifiable text is dropped as low-signal chit-chat.
type Decider struct {
	llm LLMProvider // optional; nil disables the ambiguous-case model call
}

// NewDecider creates a Decider. llm may be nil.
func NewDecider(llm LLMProvider) *Decider {
	return &Decider{llm: llm}
}

// deciderMinAmbiguousLength is the shortest text worth an ambiguous-case
// model call; anything shorter is dropped as low-signal without spending a
// call on it.
const deciderMinAmbiguousLength = 40

// Classify returns the inferred type and whether the candidate carries
// enough signal to keep. ok is false for low-signal chit-chat that should be
// dropped rather than persisted.
func (d *Decider) Classify(ctx context.Context, text string) (memType MemoryType, ok bool) {
	lower := strings.ToLower(text)
	for _, rule := range decisionKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.memType, true
			}
		}
	}

	if len(text) < deciderMinAmbiguousLength {
		return MemoryTypeInteraction, false
	}

	if d.llm == nil {
		// No model available to disambiguate; keep it as low-priority
		// interaction history rather than drop potentially useful context.
		return MemoryTypeInteraction, true
	}

	resp, err := d.llm.Complete(ctx, classifyPrompt(text))
	if err != nil {
		return MemoryTypeInteraction, true
	}
	return parseClassification(resp), true
}

func classifyPrompt(text string) string {
	return "Classify the following statement as exactly one of: preference, fact, decision, correction, mood, interaction. " +
		"Respond with only the single word.\n\nStatement: " + text
}

func parseClassification(resp string) MemoryType {
	word := strings.ToLower(strings.TrimSpace(resp))
	switch MemoryType(word) {
	case MemoryTypePreference, MemoryTypeFact, MemoryTypeDecision, MemoryTypeCorrection, MemoryTypeMood:
		return MemoryType(word)
	default:
		return MemoryTypeInteraction
	}
}

// Consumer drains cold_events: redact, classify, embed, and upsert into the
// sparse index (memories_fts, via the Store trigger) and then the dense
// index (VectorIndex); the two writes are separate, not one transaction. One
// failed event doesn't block the rest of the batch; it's marked failed and
// stays pending, so a later Drain claims it again, until its fifth failed
// attempt marks it dead.
type Consumer struct {
	db       *data.Store
	index    *VectorIndex
	embedder Embedder
	decider  *Decider
}

// NewConsumer creates a COLD-path consumer.
func NewConsumer(db *data.Store, index *VectorIndex, embedder Embedder, decider *Decider) *Consumer {
	return &Consumer{db: db, index: index, embedder: embedder, decider: decider}
}

// Drain claims up to limit pending cold_events and processes each in turn,
// returning how many were committed as memories.
func (c *Consumer) Drain(ctx context.Context, limit int) (int, error) {
	events, err := c.db.ClaimPendingColdEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	committed := 0
	for _, ev := range events {
		if err := c.processOne(ctx, ev); err != nil {
			maxAttempts := 5
			c.db.MarkColdEventFailed(ctx, ev.ID, err, maxAttempts)
			continue
		}
		if err := c.db.MarkColdEventProcessed(ctx, ev.ID); err != nil {
			continue
		}
		committed++
	}
	return committed, nil
}

func (c *Consumer) processOne(ctx context.Context, ev *data.ColdEvent) error {
	redacted := RedactPII(ev.RawText)

	memType, ok := c.decider.Classify(ctx, redacted)
	if !ok {
		// Low-signal chit-chat: drop without writing a memory record, but
		// the event itself is still marked processed so it isn't retried.
		return nil
	}

	cell := &data.MemoryCell{
		Type:    string(memType),
		OwnerID: ev.UserID,
		Content: redacted,
	}

	if c.embedder != nil {
		if emb, err := c.embedder.Embed(ctx, redacted); err == nil {
			cell.Embedding = Float32SliceToBytes(emb)
		}
	}

	if err := c.db.UpsertMemory(ctx, cell); err != nil {
		return err
	}

	if c.index != nil && len(cell.Embedding) > 0 {
		emb := BytesToFloat32Slice(cell.Embedding)
		if err := c.index.IndexMemory(ctx, cell.ID, memType, emb); err != nil {
			return err
		}
	}

	return nil
}
