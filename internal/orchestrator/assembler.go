package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-cortex/cortex/internal/cognitive"
	"github.com/atlas-cortex/cortex/internal/data"
	"github.com/atlas-cortex/cortex/internal/identity"
	"github.com/atlas-cortex/cortex/internal/spatial"
)

// historyLimit bounds how many prior turns Assemble reads from the store
// before applying the token-budget layout below; it's a read-ahead cap, not
// the budget itself, so the compactor has enough raw material to checkpoint.
const historyLimit = 60

// Token budget layout (spec §4.6). The pack carries no tokenizer library
// for any language model provider here (llm.Provider implementations report
// usage only after the fact), so estimateTokens uses the common ~4
// characters/token approximation rather than an exact count; compaction
// decisions are tolerant of that slack by design.
const (
	defaultTokenBudget = 8192

	standardGenerationReserve = 2048
	thinkingGenerationReserve = 4096

	memoryBudgetFraction    = 0.20
	memoryHardCeilingTokens = 800

	activeTurnsBudgetFraction    = 0.60
	activeTurnsHardCeilingTokens = 3000

	utilizationSummarizeThreshold  = 0.60
	utilizationCheckpointThreshold = 0.80

	checkpointTailTurns = 5 // turns kept verbatim even by an aggressive checkpoint
)

func estimateTokens(s string) int {
	return len(s) / 4
}

// MemoryProvider retrieves HOT-path memory context for prompt assembly.
// Satisfied by *memory.HotStore.
type MemoryProvider interface {
	RetrieveContext(ctx context.Context, userID, query string) (string, error)
}

// ProfileResolver resolves a request to an identity. Satisfied by
// *identity.Service.
type ProfileResolver interface {
	Resolve(ctx context.Context, sessionUserID string, voiceEmbedding []float32) (identity.Identity, error)
}

// AreaResolver resolves a spatial area for a request. Satisfied by
// *spatial.Resolver.
type AreaResolver interface {
	Resolve(ctx context.Context, req spatial.Request) spatial.Result
}

// ModeSignal reports which lane a conversation's most recent turn used, so
// Assemble can size the generation reserve and force a checkpoint on a
// switch into the thinking lane. Satisfied by *cognitive.ModeTracker.
type ModeSignal interface {
	LastLane(conversationID string) (cognitive.Lane, bool)
}

// Checkpoint is an immutable summary of a contiguous, now-compacted range of
// conversation turns (spec §4.6). Once built it is never rewritten, only
// expanded on demand from the interaction log by turn range — Assemble
// doesn't do that expansion itself, since nothing downstream has asked for
// it yet.
type Checkpoint struct {
	FromTurn   int
	ToTurn     int
	Summary    string
	Decisions  []string
	Unresolved []string
	Entities   []string
	Topics     []string
}

// CheckpointSummarizer builds a Checkpoint from a contiguous range of turns
// via a fast-model call. Satisfied by a thin wrapper around
// cognitive.Pipeline constructed in cmd/cortexd; may be left nil, in which
// case Assemble falls back to a deterministic first/last-sentence summary.
type CheckpointSummarizer interface {
	Summarize(ctx context.Context, turns []Message) (Checkpoint, error)
}

// SystemAssembler builds Layer 0 context by fanning out identity resolution,
// HOT memory retrieval, and spatial resolution concurrently (via errgroup,
// since the three are independent reads with no ordering dependency), then
// combining them into the Driver's Context and a system prompt tailored to
// the resolved content tier.
type SystemAssembler struct {
	identity    ProfileResolver
	spatial     AreaResolver
	memory      MemoryProvider
	db          *data.Store
	base        string // base persona/system prompt, prepended to tier guidance
	modes       ModeSignal
	summarizer  CheckpointSummarizer
	tokenBudget int

	mu          sync.Mutex
	checkpoints map[string][]Checkpoint
}

// NewSystemAssembler wires a ContextAssembler. Any of ids/area/mem may be nil
// to degrade that signal gracefully (anonymous identity, unresolved area, no
// memory context) rather than fail the request. modes and summarizer may
// also be nil: without modes, the generation reserve always assumes the
// standard lane; without summarizer, checkpoint construction falls back to a
// deterministic summary instead of a fast-model call.
func NewSystemAssembler(ids ProfileResolver, area AreaResolver, mem MemoryProvider, db *data.Store, basePrompt string, modes ModeSignal, summarizer CheckpointSummarizer) *SystemAssembler {
	return &SystemAssembler{
		identity:    ids,
		spatial:     area,
		memory:      mem,
		db:          db,
		base:        basePrompt,
		modes:       modes,
		summarizer:  summarizer,
		tokenBudget: defaultTokenBudget,
		checkpoints: make(map[string][]Checkpoint),
	}
}

// Assemble implements orchestrator.ContextAssembler.
func (a *SystemAssembler) Assemble(ctx context.Context, userID, conversationID, input string) (Context, error) {
	var ident identity.Identity
	var areaResult spatial.Result
	var memText string
	var history []Message

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if a.identity == nil {
			ident = identity.Identity{Anonymous: true, AgeGroup: identity.AgeUnknown, Tier: identity.TierStrict}
			return nil
		}
		var err error
		ident, err = a.identity.Resolve(gctx, userID, nil)
		return err
	})

	group.Go(func() error {
		if a.spatial == nil {
			return nil
		}
		areaResult = a.spatial.Resolve(gctx, spatial.Request{})
		return nil
	})

	group.Go(func() error {
		if a.memory == nil {
			return nil
		}
		text, err := a.memory.RetrieveContext(gctx, userID, input)
		if err != nil {
			return nil // HOT path never fails the request (§4.4)
		}
		memText = text
		return nil
	})

	group.Go(func() error {
		if a.db == nil {
			return nil
		}
		recs, err := a.db.RecentInteractions(gctx, userID, historyLimit)
		if err != nil {
			return nil
		}
		history = make([]Message, 0, len(recs)*2)
		for i := len(recs) - 1; i >= 0; i-- {
			r := recs[i]
			history = append(history, Message{Role: "user", Content: r.MessageText})
			if r.ResponseText != "" {
				history = append(history, Message{Role: "assistant", Content: r.ResponseText})
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return Context{}, err
	}

	displayName := ident.DisplayName
	if displayName == "" {
		displayName = "there"
	}

	systemPrompt := buildSystemPrompt(a.base, ident, areaResult)
	memText, history = a.layoutBudget(ctx, conversationID, systemPrompt, input, memText, history)

	return Context{
		DisplayName:   displayName,
		Area:          areaResult.Area,
		SystemPrompt:  systemPrompt,
		History:       history,
		MemoryContext: memText,
	}, nil
}

// layoutBudget applies the §4.6 token budget to the free-form memory text
// and the verbatim turn history: it trims memory to its region ceiling,
// checkpoints the oldest active turns once the active-turn region crosses
// its utilization thresholds (or unconditionally, absorbing all but the
// last checkpointTailTurns, on a switch into the thinking lane), and
// prepends any stored checkpoints — oldest first — to the turns kept
// verbatim so the ordering invariant holds regardless of what got
// compacted this turn.
func (a *SystemAssembler) layoutBudget(ctx context.Context, conversationID, systemPrompt, input, memText string, history []Message) (string, []Message) {
	budget := a.tokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	reserve := standardGenerationReserve
	forceCheckpoint := false
	if a.modes != nil {
		if lane, ok := a.modes.LastLane(conversationID); ok && lane == cognitive.SmartLane {
			reserve = thinkingGenerationReserve
			forceCheckpoint = true
		}
	}

	fixed := estimateTokens(systemPrompt) + estimateTokens(input) + reserve
	free := budget - fixed
	if free < 0 {
		free = 0
	}

	memoryBudget := int(float64(free) * memoryBudgetFraction)
	if memoryBudget > memoryHardCeilingTokens {
		memoryBudget = memoryHardCeilingTokens
	}
	memText = truncateToTokens(memText, memoryBudget)

	activeBudget := int(float64(free) * activeTurnsBudgetFraction)
	if activeBudget > activeTurnsHardCeilingTokens {
		activeBudget = activeTurnsHardCeilingTokens
	}

	activeTurns, toCheckpoint := splitByBudget(history, activeBudget)

	utilization := 0.0
	if activeBudget > 0 {
		utilization = float64(budget-free+tokensOf(activeTurns)) / float64(activeBudget)
	}

	switch {
	case forceCheckpoint || utilization >= utilizationCheckpointThreshold:
		tail := checkpointTailTurns
		if tail > len(history) {
			tail = len(history)
		}
		toCheckpoint = history[:len(history)-tail]
		activeTurns = history[len(history)-tail:]
	case utilization >= utilizationSummarizeThreshold && len(toCheckpoint) == 0 && len(activeTurns) > 3:
		// Nothing fell outside the raw budget yet but utilization is high:
		// proactively fold the oldest third of what's kept into a
		// checkpoint so the next turn doesn't cross the hard ceiling cold.
		cut := len(activeTurns) / 3
		toCheckpoint = append(toCheckpoint, activeTurns[:cut]...)
		activeTurns = activeTurns[cut:]
	}

	if len(toCheckpoint) > 0 {
		a.recordCheckpoint(ctx, conversationID, toCheckpoint)
	}

	return memText, append(a.orderedCheckpoints(conversationID), activeTurns...)
}

func tokensOf(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Content)
	}
	return total
}

// splitByBudget walks history from the newest turn backward, keeping turns
// while the running token count stays within budget; everything older is
// returned as the checkpoint candidate set.
func splitByBudget(history []Message, budget int) (active, overflow []Message) {
	if budget <= 0 {
		return nil, history
	}
	used := 0
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		used += estimateTokens(history[i].Content)
		if used > budget {
			break
		}
		cut = i
	}
	return history[cut:], history[:cut]
}

func (a *SystemAssembler) recordCheckpoint(ctx context.Context, conversationID string, turns []Message) {
	a.mu.Lock()
	from := 0
	for _, cps := range a.checkpoints[conversationID] {
		if cps.ToTurn > from {
			from = cps.ToTurn
		}
	}
	a.mu.Unlock()

	var cp Checkpoint
	var err error
	if a.summarizer != nil {
		cp, err = a.summarizer.Summarize(ctx, turns)
	}
	if a.summarizer == nil || err != nil {
		cp = fallbackCheckpoint(turns)
	}
	cp.FromTurn = from
	cp.ToTurn = from + len(turns)

	a.mu.Lock()
	a.checkpoints[conversationID] = append(a.checkpoints[conversationID], cp)
	a.mu.Unlock()
}

func fallbackCheckpoint(turns []Message) Checkpoint {
	if len(turns) == 0 {
		return Checkpoint{}
	}
	first := turns[0].Content
	last := turns[len(turns)-1].Content
	summary := first
	if last != first {
		summary = first + " ... " + last
	}
	return Checkpoint{Summary: summary}
}

// orderedCheckpoints returns every stored checkpoint for conversationID,
// oldest-first, rendered as system-role messages so they slot ahead of the
// verbatim active turns without changing the Context/History shape.
func (a *SystemAssembler) orderedCheckpoints(conversationID string) []Message {
	a.mu.Lock()
	cps := append([]Checkpoint(nil), a.checkpoints[conversationID]...)
	a.mu.Unlock()

	msgs := make([]Message, 0, len(cps))
	for _, cp := range cps {
		msgs = append(msgs, Message{Role: "system", Content: "Earlier in this conversation: " + cp.Summary})
	}
	return msgs
}

func truncateToTokens(text string, budget int) string {
	if budget <= 0 || text == "" {
		return ""
	}
	maxChars := budget * 4
	if len(text) <= maxChars {
		return text
	}
	return strings.TrimSpace(text[:maxChars]) + "..."
}

func buildSystemPrompt(base string, ident identity.Identity, area spatial.Result) string {
	prompt := base
	switch ident.Tier {
	case identity.TierStrict:
		prompt += "\n\nContent tier: strict. Keep responses simple, avoid mature themes entirely."
	case identity.TierModerate:
		prompt += "\n\nContent tier: moderate. Avoid explicit or mature themes; keep language age-appropriate for a teen."
	}
	if ident.DisplayName != "" {
		prompt += fmt.Sprintf("\n\nYou are speaking with %s.", ident.DisplayName)
	}
	if area.Area != "" {
		prompt += fmt.Sprintf(" They're in the %s.", area.Area)
	}
	return prompt
}
