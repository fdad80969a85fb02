package guardrail

import (
	"context"
)

// safeResponses maps each non-pass severity to a pre-written response. The
// model is never asked to explain or apologise for a block in detail.
var safeResponses = map[Severity]string{
	Warn:      "",
	SoftBlock: "I can't help with that one. Is there something else I can do for you?",
	HardBlock: "I'm not able to help with that.",
}

// Engine composes the full input/output guardrail cage: deobfuscation,
// static pattern matching, semantic exemplar matching, and the per-
// conversation drift monitor. A failure of the engine itself is fatal
// (fail-closed) — callers should treat an error as hard_block.
type Engine struct {
	Patterns *PatternTable
	Semantic *SemanticDetector
	Drift    *DriftMonitor
	Learner  *Learner
}

// NewEngine wires a default engine. Semantic and Learner may be nil until an
// embed-capable provider is registered.
func NewEngine(patterns *PatternTable, semantic *SemanticDetector, learner *Learner) *Engine {
	return &Engine{
		Patterns: patterns,
		Semantic: semantic,
		Drift:    NewDriftMonitor(),
		Learner:  learner,
	}
}

// CheckInput runs the deobfuscation + detector cage over a user message and
// updates the conversation's drift temperature.
func (e *Engine) CheckInput(ctx context.Context, conversationID, text string) (Result, error) {
	result := e.checkVariants(ctx, text)

	temp := e.Drift.Observe(conversationID, result.Severity)
	result.DriftTemperature = temp

	if temp > 0.9 {
		result.Severity = Worse(result.Severity, SoftBlock)
		e.Drift.Reset(conversationID)
	}

	result.SafeResponse = safeResponses[result.Severity]

	if result.Blocked() && e.Learner != nil {
		cat := CategoryPromptInjection
		if len(result.Findings) > 0 {
			cat = result.Findings[0].Category
		}
		_ = e.Learner.Observe(ctx, text, cat) // best-effort; learner errors never block the request
	}

	return result, nil
}

// CheckOutput runs the same static and semantic detectors as CheckInput,
// including the output-side persona-break and system-prompt-leak rules,
// against the complete generated text; it does not update drift. Output
// checks never see partial text.
func (e *Engine) CheckOutput(ctx context.Context, conversationID, generated string) (Result, error) {
	result := e.checkVariants(ctx, generated)
	result.SafeResponse = safeResponses[result.Severity]
	return result, nil
}

// checkVariants deobfuscates text into its candidate variants and runs the
// static + semantic detectors over every one, keeping the worst finding.
func (e *Engine) checkVariants(ctx context.Context, text string) Result {
	var result Result

	for _, variant := range Variants(text) {
		for _, f := range e.Patterns.Match(variant, variant) {
			result.Findings = append(result.Findings, f)
			result.Severity = Worse(result.Severity, f.Severity)
		}

		if e.Semantic != nil {
			if f, err := e.Semantic.Check(ctx, variant, variant); err == nil && f != nil {
				result.Findings = append(result.Findings, *f)
				result.Severity = Worse(result.Severity, f.Severity)
			}
		}
	}

	return result
}
