// Package orchestrator implements the Pipeline Driver (§4.1): the top-level
// coordinator that runs every request through Layer 0 context assembly,
// input guardrails, the Instant Resolver, the Action Registry, the
// Generation Orchestrator, output guardrails, and interaction logging, in
// that fixed order, short-circuiting as soon as a layer produces an answer.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-cortex/cortex/internal/action"
	"github.com/atlas-cortex/cortex/internal/guardrail"
	"github.com/atlas-cortex/cortex/internal/logging"
	"github.com/atlas-cortex/cortex/internal/resolver"
)

// Message is one turn of conversation history handed to the generator.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Generation is the outcome of a Layer 3 model call.
type Generation struct {
	Text       string
	TokensUsed int
	ModelUsed  string
}

// Generator is the Layer 3 Generation Orchestrator seam. The Pipeline Driver
// depends only on this interface; filler prefetch, overflow-and-continuation,
// and interruption handling live behind it.
type Generator interface {
	Generate(ctx context.Context, userID, systemPrompt string, history []Message, input string) (Generation, error)
}

// ContextAssembler resolves everything Layer 0 needs before a request can be
// guardrailed, resolved, or generated.
type ContextAssembler interface {
	Assemble(ctx context.Context, userID, conversationID, input string) (Context, error)
}

// Context is the Layer 0 output: identity, memory, and conversation state
// resolved once per request and threaded through every later phase.
type Context struct {
	DisplayName   string
	Area          string
	SystemPrompt  string
	History       []Message
	MemoryContext string
}

// InteractionLogger records the terminal outcome of a request for the
// interaction log and enqueues it onto the memory COLD path.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, rec InteractionRecord) error
}

// InteractionRecord is one row of the append-only interaction log.
type InteractionRecord struct {
	UserID         string
	ConversationID string
	MessageText    string
	Layer          string // "instant", "action", "llm", "blocked"
	ResponseText   string
	Latency        time.Duration
	Confidence     float64
	ModelUsed      string
	Blocked        bool
	BlockReason    string
}

// PipelineResult mirrors a2a.PipelineResult so Driver satisfies a2a.Driver
// without this package importing a2a (which would create an import cycle:
// a2a constructs the driver, the driver must not depend back on a2a).
type PipelineResult struct {
	Layer       string
	Text        string
	Confidence  float64
	TokensUsed  int
	ModelUsed   string
	Duration    time.Duration
	Blocked     bool
	BlockReason string
}

// activeGeneration tracks one in-flight Layer 3 call so a later Process
// call on the same conversation can be classified as an interruption of it
// (spec §4.5 Step E) rather than an unrelated concurrent request.
type activeGeneration struct {
	cancel context.CancelFunc
	input  string
}

// Driver is the Pipeline Driver (component I). Beyond its collaborators, it
// holds only the in-flight generation table Step E needs; every other piece
// of per-request state lives in the Context built fresh each call.
type Driver struct {
	assembler  ContextAssembler
	guardrails *guardrail.Engine
	resolver   *resolver.Resolver
	actions    *action.Registry
	generator  Generator
	logger     InteractionLogger
	log        *logging.Logger

	mu     sync.Mutex
	active map[string]*activeGeneration
}

// New wires a Pipeline Driver from its collaborators. logger may be nil if
// interaction logging isn't wired yet (the driver then skips step 7).
func New(assembler ContextAssembler, guardrails *guardrail.Engine, resolve *resolver.Resolver, actions *action.Registry, generator Generator, logger InteractionLogger) *Driver {
	return &Driver{
		assembler:  assembler,
		guardrails: guardrails,
		resolver:   resolve,
		actions:    actions,
		generator:  generator,
		logger:     logger,
		log:        logging.Global(),
		active:     make(map[string]*activeGeneration),
	}
}

// Process runs the full sequential pipeline for one request and returns the
// terminal layer's result. personaID doubles as the conversation id for
// guardrail drift tracking and context assembly; every component downstream
// of context assembly sees the same Context for the duration of the call.
func (d *Driver) Process(ctx context.Context, userID, personaID, input string) (*PipelineResult, error) {
	start := time.Now()
	conversationID := personaID
	if conversationID == "" {
		conversationID = userID
	}

	// Step E: if a generation is already in flight for this conversation,
	// classify this input as an interruption of it rather than letting the
	// two calls race unacknowledged.
	registerGeneration := true
	d.mu.Lock()
	if prior, ok := d.active[conversationID]; ok {
		switch ClassifyInterruption(input) {
		case InterruptStop:
			prior.cancel()
			delete(d.active, conversationID)
			d.mu.Unlock()
			return d.finish(ctx, userID, conversationID, input, &PipelineResult{
				Layer:      "instant",
				Text:       "Okay, stopping.",
				Confidence: 1.0,
				Duration:   time.Since(start),
			})
		case InterruptRefine:
			input = prior.input + ". " + input
			prior.cancel()
			delete(d.active, conversationID)
		case InterruptRedirect:
			prior.cancel()
			delete(d.active, conversationID)
		case InterruptClarify:
			// Answered alongside the generation already in flight; leave
			// its registration (and cancellation) alone.
			registerGeneration = false
		}
	}
	d.mu.Unlock()

	// Phase 1: Layer 0 — context assembly.
	var pctx Context
	if d.assembler != nil {
		var err error
		pctx, err = d.assembler.Assemble(ctx, userID, conversationID, input)
		if err != nil {
			d.log.Warn("context assembly failed, degrading to anonymous context: %v", err)
		}
	}

	// Phase 2: input guardrails. Guardrail failures are fatal (fail-closed):
	// an error here is treated as a hard block, never silently skipped.
	if d.guardrails != nil {
		result, err := d.guardrails.CheckInput(ctx, conversationID, input)
		if err != nil {
			return d.finish(ctx, userID, conversationID, input, &PipelineResult{
				Layer:       "blocked",
				Text:        "I'm not able to help with that.",
				Blocked:     true,
				BlockReason: "guardrail engine error",
				Duration:    time.Since(start),
			})
		}
		if result.Blocked() {
			return d.finish(ctx, userID, conversationID, input, &PipelineResult{
				Layer:       "blocked",
				Text:        result.SafeResponse,
				Blocked:     true,
				BlockReason: string(result.Findings[0].Category),
				Duration:    time.Since(start),
			})
		}
		if result.Severity == guardrail.Warn || result.DriftTemperature > 0.7 {
			pctx.SystemPrompt += "\n\nException: treat this conversation with additional care; avoid ambiguity that could be read as encouragement toward harm."
		}
	}

	// Phase 3: Layer 1 — Instant Resolver.
	if d.resolver != nil {
		if m, ok := d.resolver.Resolve(ctx, userID, pctx.DisplayName, input); ok {
			return d.finish(ctx, userID, conversationID, input, &PipelineResult{
				Layer:      "instant",
				Text:       m.Text,
				Confidence: m.Confidence,
				Duration:   time.Since(start),
			})
		}
	}

	// Phase 4: Layer 2 — Action Registry.
	if d.actions != nil {
		if res, ok := d.actions.Dispatch(ctx, userID, pctx.Area, input); ok {
			return d.finish(ctx, userID, conversationID, input, &PipelineResult{
				Layer:      "action",
				Text:       res.Text,
				Confidence: 1.0,
				Duration:   time.Since(start),
			})
		}
	}

	// Phase 5: Layer 3 — Generation Orchestrator.
	if d.generator == nil {
		return d.finish(ctx, userID, conversationID, input, &PipelineResult{
			Layer:       "blocked",
			Text:        "I'm having trouble generating a response right now.",
			Blocked:     true,
			BlockReason: "no generator configured",
			Duration:    time.Since(start),
		})
	}

	genCtx := ctx
	if registerGeneration {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithCancel(ctx)
		d.mu.Lock()
		d.active[conversationID] = &activeGeneration{cancel: cancel, input: input}
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			// Only clear the slot if it's still ours; a later call may
			// have already replaced or cleared it (e.g. a "stop").
			if cur, ok := d.active[conversationID]; ok && cur.input == input {
				delete(d.active, conversationID)
			}
			d.mu.Unlock()
			cancel()
		}()
	}

	gen, err := d.generator.Generate(genCtx, userID, pctx.SystemPrompt, pctx.History, input)
	if err != nil {
		d.log.Warn("generation failed, degrading to safe response: %v", err)
		return d.finish(ctx, userID, conversationID, input, &PipelineResult{
			Layer:       "blocked",
			Text:        "I'm having trouble with that one — can you try again in a moment?",
			Blocked:     true,
			BlockReason: "generation error",
			Duration:    time.Since(start),
		})
	}

	finalText := gen.Text

	// Phase 6: output guardrails. These observe the complete final text,
	// never partial output.
	if d.guardrails != nil {
		result, err := d.guardrails.CheckOutput(ctx, conversationID, finalText)
		if err == nil && result.Blocked() {
			finalText = result.SafeResponse
		}
	}

	return d.finish(ctx, userID, conversationID, input, &PipelineResult{
		Layer:      "llm",
		Text:       finalText,
		Confidence: 0.85,
		TokensUsed: gen.TokensUsed,
		ModelUsed:  gen.ModelUsed,
		Duration:   time.Since(start),
	})
}

// finish performs phase 7 — interaction logging and COLD memory enqueue —
// then returns res unchanged. Logging failures never fail the request: the
// response has already been decided.
func (d *Driver) finish(ctx context.Context, userID, conversationID, input string, res *PipelineResult) (*PipelineResult, error) {
	if d.logger != nil {
		rec := InteractionRecord{
			UserID:         userID,
			ConversationID: conversationID,
			MessageText:    input,
			Layer:          res.Layer,
			ResponseText:   res.Text,
			Latency:        res.Duration,
			Confidence:     res.Confidence,
			ModelUsed:      res.ModelUsed,
			Blocked:        res.Blocked,
			BlockReason:    res.BlockReason,
		}
		if err := d.logger.LogInteraction(ctx, rec); err != nil {
			d.log.Warn("interaction logging failed: %v", err)
		}
	}
	return res, nil
}
