// Package action implements the Action Registry (Layer 2): a registry of
// (pattern, priority, capability set, handler) entries contributed by
// integration plugins. Dispatch tokenises the message, evaluates patterns in
// priority order, and invokes the first handler whose pattern matches.
package action

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// AccessChecker answers whether a user may act on a target entity, used to
// enforce the registry's parental-control short-circuit.
type AccessChecker interface {
	// Allowed reports whether userID may invoke an action against entity.
	// refusal is the text returned to the user when allowed is false.
	Allowed(ctx context.Context, userID, entity string) (allowed bool, refusal string)
}

// Result is what a successful handler invocation produces.
type Result struct {
	Text        string
	Entities    []string // observable entities touched, for memory/logging
	SideEffects []string
}

// Handler executes a matched action. groups are the regex capture groups
// (index 0 is the whole match). area is the resolved spatial area, if any.
// ok is false to signal "not applicable", letting dispatch fall through to
// the next-priority entry even though the pattern matched.
type Handler func(ctx context.Context, userID, area string, groups []string) (Result, bool)

// Entry is one registered (pattern, priority, capability set, handler) tuple.
type Entry struct {
	Name         string
	Pattern      *regexp.Regexp
	Priority     float64 // higher dispatches first
	Capabilities []string
	Entity       string // target entity class, checked against AccessChecker; empty skips the check
	Handler      Handler

	hitCount int64
}

// Registry holds registered entries, evaluated highest-priority-first.
// Safe for concurrent registration and dispatch.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	access  AccessChecker

	// onFallthrough is called when nothing in the registry matches, flagging
	// the input for the learner collaborator's offline analysis.
	onFallthrough func(input string)
}

// New creates an empty Action Registry. access may be nil if no parental
// control policy is wired yet.
func New(access AccessChecker) *Registry {
	return &Registry{access: access}
}

// OnFallthrough registers a callback invoked for every request that no entry
// matched, so it can be queued for the adaptive learner.
func (r *Registry) OnFallthrough(fn func(input string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFallthrough = fn
}

// Register adds an entry. Integrations may call this at startup or at
// runtime; the entries slice is re-sorted by priority × recent hit-count.
func (r *Registry) Register(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.resort()
}

// resort orders entries by priority times a small recency boost from hit
// count, highest first. Must be called with mu held.
func (r *Registry) resort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.score(r.entries[i]) > r.score(r.entries[j])
	})
}

func (r *Registry) score(e *Entry) float64 {
	return e.Priority * (1 + 0.01*float64(e.hitCount))
}

// Dispatch tokenises message against every registered pattern in priority
// order and invokes the first successful handler. ok is false if nothing
// matched or every match's handler reported "not applicable", in which case
// the fallthrough callback fires and the caller should proceed to Layer 3.
func (r *Registry) Dispatch(ctx context.Context, userID, area, message string) (Result, bool) {
	trimmed := strings.TrimSpace(message)

	r.mu.RLock()
	entries := make([]*Entry, len(r.entries))
	copy(entries, r.entries)
	access := r.access
	fallthroughFn := r.onFallthrough
	r.mu.RUnlock()

	for _, e := range entries {
		groups := e.Pattern.FindStringSubmatch(trimmed)
		if groups == nil {
			continue
		}

		if e.Entity != "" && access != nil {
			if allowed, refusal := access.Allowed(ctx, userID, e.Entity); !allowed {
				return Result{Text: refusal}, true
			}
		}

		res, ok := e.Handler(ctx, userID, area, groups)
		if !ok {
			continue
		}

		r.mu.Lock()
		e.hitCount++
		r.resort()
		r.mu.Unlock()

		return res, true
	}

	if fallthroughFn != nil {
		fallthroughFn(trimmed)
	}
	return Result{}, false
}

// Entries returns a snapshot of registered entries for diagnostics.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
