package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-cortex/cortex/internal/cognitive"
	"github.com/atlas-cortex/cortex/internal/data"
	"github.com/atlas-cortex/cortex/internal/llm"
)

// registryLane adapts llm.ProviderRegistry's role-keyed resolution to
// cognitive.LLMProvider, so the Pipeline's Fast/Smart lanes each resolve
// their own role through the registry (with its health-cached fallback)
// instead of binding to one fixed provider at construction time.
type registryLane struct {
	registry *llm.ProviderRegistry
	role     llm.Role
}

func (l *registryLane) Complete(ctx context.Context, req *cognitive.CompletionRequest) (*cognitive.CompletionResponse, error) {
	provider, err := l.registry.Resolve(ctx, l.role)
	if err != nil {
		return nil, fmt.Errorf("resolve %s provider: %w", l.role, err)
	}

	msgs := make([]llm.Message, len(req.Messages))
	var systemPrompt string
	n := 0
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemPrompt = m.Content
			continue
		}
		msgs[n] = llm.Message{Role: m.Role, Content: m.Content}
		n++
	}
	msgs = msgs[:n]

	model := req.Model
	if model == "" {
		model = l.registry.ModelFor(l.role, provider.Name())
	}

	resp, err := provider.Chat(ctx, &llm.ChatRequest{
		Model:        model,
		SystemPrompt: systemPrompt,
		Messages:     msgs,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return &cognitive.CompletionResponse{
		Content:    resp.Content,
		TokensUsed: resp.TokensUsed,
		Model:      resp.Model,
	}, nil
}

// FillerProvider supplies a short spoken filler phrase while the model
// generates, implementing the Layer 3 filler-prefetch behavior (§4.5): the
// filler and the model call start concurrently, and the filler is only used
// if generation hasn't returned by the time it's needed.
type FillerProvider interface {
	Filler(ctx context.Context, userID, sentiment string) (string, error)
}

// defaultFillerPool is the phrase set StoreFillerProvider rotates through per
// sentiment when nothing more specific has been configured.
var defaultFillerPool = map[string][]string{
	"neutral":  {"Let me think about that.", "One moment.", "Okay, working on it."},
	"positive": {"Ooh, good question.", "Let's see...", "Happy to help with that."},
	"negative": {"I hear you, let me check.", "Give me a second with that."},
}

// StoreFillerProvider selects the least-recently-used filler phrase per
// (user, sentiment) from data.Store, so the same phrase doesn't repeat on
// back-to-back turns.
type StoreFillerProvider struct {
	db *data.Store
}

// NewStoreFillerProvider builds a FillerProvider backed by db.
func NewStoreFillerProvider(db *data.Store) *StoreFillerProvider {
	return &StoreFillerProvider{db: db}
}

// Filler returns the least-recently-used phrase for (userID, sentiment) and
// records it as just-used.
func (f *StoreFillerProvider) Filler(ctx context.Context, userID, sentiment string) (string, error) {
	pool, ok := defaultFillerPool[sentiment]
	if !ok {
		pool = defaultFillerPool["neutral"]
	}

	phrase, err := f.db.LeastRecentFiller(ctx, userID, sentiment, pool)
	if err != nil {
		return pool[0], nil
	}
	_ = f.db.TouchFillerPhrase(ctx, userID, sentiment, phrase)
	return phrase, nil
}

// CognitiveGenerator implements orchestrator.Generator over a
// cognitive.Pipeline, wiring the Fast and Thinking lanes to distinct roles
// resolved through the Provider Registry, and prefetching a filler phrase
// concurrently with the model call via errgroup so a slow Smart Lane
// response never blocks the filler from being ready first.
type CognitiveGenerator struct {
	pipeline *cognitive.Pipeline
	filler   FillerProvider
}

// NewCognitiveGenerator builds a Generator. filler may be nil, in which case
// no filler is prefetched and the caller waits on generation directly.
func NewCognitiveGenerator(registry *llm.ProviderRegistry, modeTracker *cognitive.ModeTracker, cfg cognitive.PipelineConfig, filler FillerProvider) *CognitiveGenerator {
	fastLLM := &registryLane{registry: registry, role: llm.RoleFast}
	smartLLM := &registryLane{registry: registry, role: llm.RoleThinking}
	pipeline := cognitive.NewPipeline(fastLLM, smartLLM, modeTracker, cfg)
	return &CognitiveGenerator{pipeline: pipeline, filler: filler}
}

// Generate runs the cognitive pipeline for one turn. If a filler provider is
// configured, the filler phrase and the model call are started concurrently;
// the filler's result is discarded once generation completes, since only the
// final text is returned to the Pipeline Driver (streaming delivery of the
// filler-then-answer sequence is the voice Bridge's concern, not the
// Generator's). If the first call comes back near the lane's fixed
// generation cap, Generate hands off to the overflow-and-continuation state
// machine (Step D, below) rather than returning a truncated answer.
func (g *CognitiveGenerator) Generate(ctx context.Context, userID, systemPrompt string, history []Message, input string) (Generation, error) {
	msgs := make([]cognitive.Message, len(history))
	for i, m := range history {
		msgs[i] = cognitive.Message{Role: m.Role, Content: m.Content}
	}

	var group errgroup.Group
	if g.filler != nil {
		group.Go(func() error {
			_, _ = g.filler.Filler(ctx, userID, "neutral")
			return nil
		})
	}

	resp, err := g.pipeline.Process(ctx, &cognitive.PipelineRequest{
		SystemPrompt:   systemPrompt,
		Message:        input,
		History:        msgs,
		ConversationID: userID,
	})
	_ = group.Wait()
	if err != nil {
		return Generation{}, err
	}

	if !isNearOverflow(resp.TokensUsed) {
		return Generation{Text: resp.Content, TokensUsed: resp.TokensUsed, ModelUsed: resp.Model}, nil
	}

	return g.continueOverflow(ctx, userID, systemPrompt, input, resp)
}

// Summarize implements orchestrator.CheckpointSummarizer over the same
// pipeline Generate uses, on the fast lane: checkpoint construction (spec
// §4.6) is a background Layer 0 concern, not a user-facing answer, so it
// never needs the smart lane's latency budget.
func (g *CognitiveGenerator) Summarize(ctx context.Context, turns []Message) (Checkpoint, error) {
	var transcript strings.Builder
	for _, t := range turns {
		transcript.WriteString(t.Role)
		transcript.WriteString(": ")
		transcript.WriteString(t.Content)
		transcript.WriteString("\n")
	}

	fastLane := cognitive.FastLane
	resp, err := g.pipeline.Process(ctx, &cognitive.PipelineRequest{
		SystemPrompt: "Summarize the following conversation turns in 2-3 sentences. Note any decisions made and anything left unresolved. Be brief.",
		Message:      transcript.String(),
		ForceLane:    &fastLane,
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{Summary: resp.Content}, nil
}

// pipelineGenerationCap mirrors cognitive.Pipeline's own fixed per-call
// MaxTokens (processDirect/processWithThinking both hardcode 2000); the
// orchestrator has no direct visibility into the provider's finish reason,
// so a response landing near this cap is the best available proxy for
// "the model signals termination due to length" (spec §4.5 Step D).
const pipelineGenerationCap = 2000

// overflowRatio is the fraction of pipelineGenerationCap above which a
// response is treated as truncated rather than merely long.
const overflowRatio = 0.92

// maxContinuationCycles caps how many compact-and-continue round trips
// Step D will run before forcing a close, per the spec's policy cap.
const maxContinuationCycles = 3

// maxTotalOutputTokens is the policy absolute cap across every
// continuation cycle combined.
const maxTotalOutputTokens = pipelineGenerationCap * (maxContinuationCycles + 1)

// dedupSimilarityFloor is the normalised-Jaccard threshold (spec: "cosine
// or Jaccard ≥ 0.85") above which a later sentence is treated as a repeat
// of one already emitted.
const dedupSimilarityFloor = 0.85

func isNearOverflow(tokensUsed int) bool {
	return float64(tokensUsed) >= overflowRatio*float64(pipelineGenerationCap)
}

// continueOverflow runs the Step D state machine:
// Streaming -> FillerSent -> Compacting -> Continuing -> (Streaming again
// or) Deduping -> Done. first is the response that triggered overflow.
func (g *CognitiveGenerator) continueOverflow(ctx context.Context, userID, systemPrompt, originalInput string, first *cognitive.PipelineResponse) (Generation, error) {
	chunks := []string{first.Content}
	totalTokens := first.TokensUsed
	model := first.Model

	for cycle := 0; cycle < maxContinuationCycles; cycle++ {
		if totalTokens >= maxTotalOutputTokens {
			chunks = append(chunks, "I'll stop there for now — let me know if you'd like more.")
			break
		}

		// FillerSent: the continuation filler itself is only meaningful to a
		// streaming transport; Generate returns one final string, so this
		// state is a no-op here beyond marking the transition.

		// Compacting: force a checkpoint over what's been delivered so far
		// and compact the context down to question + summary + instruction.
		summary := summarizeDelivered(strings.Join(chunks, " "))
		compactedPrompt := fmt.Sprintf(
			"%s\n\nYou are continuing a response that ran long. Original question: %q. "+
				"You have already told the user: %s. Continue; do not repeat anything already covered.",
			systemPrompt, originalInput, summary,
		)

		// Continuing: re-issue the chat call with the compacted context.
		resp, err := g.pipeline.Process(ctx, &cognitive.PipelineRequest{
			SystemPrompt:   compactedPrompt,
			Message:        "Please continue.",
			ConversationID: userID,
		})
		if err != nil {
			break
		}
		totalTokens += resp.TokensUsed
		model = resp.Model
		chunks = append(chunks, resp.Content)

		if !isNearOverflow(resp.TokensUsed) {
			break
		}
	}

	// Deduping: collapse near-duplicate sentences across every chunk.
	final, removedFraction := dedupSentences(chunks)

	if removedFraction >= 0.20 {
		if smoothed, err := g.smoothTransitions(ctx, userID, systemPrompt, final); err == nil && smoothed != "" {
			final = smoothed
		}
	}

	return Generation{Text: final, TokensUsed: totalTokens, ModelUsed: model}, nil
}

// summarizeDelivered produces the "short summary of delivered chunks"
// Step D's compacted context needs. A real deployment could route this
// through the fast model; collapsing to the first and last sentence keeps
// the behavior deterministic and avoids a second model round trip just to
// describe the first one.
func summarizeDelivered(delivered string) string {
	sentences := splitSentences(delivered)
	if len(sentences) <= 2 {
		return delivered
	}
	return sentences[0] + " [...] " + sentences[len(sentences)-1]
}

// smoothTransitions asks the fast lane to smooth the joins in a
// dedup-trimmed response, per Step D's "if ≥20% of content was removed run
// a second smooth transitions model call".
func (g *CognitiveGenerator) smoothTransitions(ctx context.Context, userID, systemPrompt, joined string) (string, error) {
	fastLane := cognitive.FastLane
	resp, err := g.pipeline.Process(ctx, &cognitive.PipelineRequest{
		SystemPrompt:   systemPrompt + "\n\nSmooth the transitions in the following text without changing its meaning or removing information; return only the smoothed text.",
		Message:        joined,
		ForceLane:      &fastLane,
		ConversationID: userID,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dedupSentences joins chunks into one response, dropping any sentence
// that is a near-duplicate (Jaccard similarity on normalised token sets)
// of one already kept. Returns the joined text and the fraction of
// sentences removed.
func dedupSentences(chunks []string) (string, float64) {
	var all []string
	for _, c := range chunks {
		all = append(all, splitSentences(c)...)
	}
	if len(all) == 0 {
		return strings.Join(chunks, " "), 0
	}

	kept := make([]string, 0, len(all))
	for _, s := range all {
		if !hasNearDuplicate(kept, s) {
			kept = append(kept, s)
		}
	}

	removed := float64(len(all)-len(kept)) / float64(len(all))
	return strings.Join(kept, ". ") + ".", removed
}

func hasNearDuplicate(kept []string, candidate string) bool {
	candidateSet := tokenSet(candidate)
	for _, k := range kept {
		if jaccard(candidateSet, tokenSet(k)) >= dedupSimilarityFloor {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// overflowState names the Step D continuation state machine's states,
// documenting the transitions continueOverflow walks through even though
// Generate's non-streaming return type collapses them into one call.
type overflowState string

const (
	stateStreaming   overflowState = "streaming"
	stateFillerSent  overflowState = "filler_sent"
	stateCompacting  overflowState = "compacting"
	stateContinuing  overflowState = "continuing"
	stateDeduping    overflowState = "deduping"
	stateDone        overflowState = "done"
	stateInterrupted overflowState = "interrupted"
)

// InterruptKind classifies a user-originated message that arrives while a
// prior generation for the same conversation is still in flight (spec §4.5
// Step E). Classification is pattern-based, never model-based.
type InterruptKind string

const (
	InterruptNone     InterruptKind = ""
	InterruptStop     InterruptKind = "stop"
	InterruptRedirect InterruptKind = "redirect"
	InterruptClarify  InterruptKind = "clarify"
	InterruptRefine   InterruptKind = "refine"
)

var (
	stopPatterns     = regexp.MustCompile(`(?i)^\s*(stop|cancel|never ?mind|that's (ok|okay|fine|enough)|forget it)\b`)
	clarifyPatterns  = regexp.MustCompile(`(?i)\b(wait,? what|what do you mean|can you clarify|i meant|to clarify)\b`)
	refinePatterns   = regexp.MustCompile(`(?i)^\s*(actually|instead|make it|can you make|shorter|longer|more (detail|concise))\b`)
	redirectPatterns = regexp.MustCompile(`(?i)^\s*(actually,? (can|could) you|forget that,|on second thought|different question)\b`)
)

// ClassifyInterruption matches spec §4.5 Step E's four categories. An
// input matching none of them returns InterruptNone, meaning the caller
// should treat it as an unrelated new request rather than an interruption.
func ClassifyInterruption(input string) InterruptKind {
	switch {
	case stopPatterns.MatchString(input):
		return InterruptStop
	case redirectPatterns.MatchString(input):
		return InterruptRedirect
	case clarifyPatterns.MatchString(input):
		return InterruptClarify
	case refinePatterns.MatchString(input):
		return InterruptRefine
	default:
		return InterruptNone
	}
}
