// Package resolver implements the Instant Resolver: a closed set of
// deterministic intents answered without any model call. A match terminates
// the pipeline immediately with a synthesised response.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Match is a terminal Instant Resolver response.
type Match struct {
	Text       string
	Confidence float64
}

// InteractionReader supplies recent interaction-log rows for the "recall my
// last request" intent; it reads from the log, never the model.
type InteractionReader interface {
	RecentInteractions(ctx context.Context, userID string, limit int) ([]RecentInteraction, error)
}

// RecentInteraction is the subset of an interaction-log row the resolver
// needs to answer a recall request.
type RecentInteraction struct {
	MessageText string
	CreatedAt   time.Time
}

// intentFunc attempts to answer input; ok is false if this intent doesn't
// apply, letting the resolver fall through to the next closed-set intent and
// ultimately to Layer 2 if none match.
type intentFunc func(ctx context.Context, r *Resolver, userID, displayName, input string) (Match, bool)

// Resolver holds the closed set of deterministic intents, evaluated in order.
type Resolver struct {
	clock   func() time.Time
	history InteractionReader
	intents []intentFunc
}

// New creates an Instant Resolver. history may be nil if recall support is
// not wired yet; the recall intent then simply never matches.
func New(history InteractionReader) *Resolver {
	r := &Resolver{clock: time.Now, history: history}
	r.intents = []intentFunc{
		intentDateTime,
		intentDayOfWeek,
		intentArithmetic,
		intentGreeting,
		intentIdentityHelp,
		intentRecall,
	}
	return r
}

// Resolve tries every closed-set intent in order and returns the first
// match. ok is false if nothing in the closed set applies.
func (r *Resolver) Resolve(ctx context.Context, userID, displayName, input string) (Match, bool) {
	for _, intent := range r.intents {
		if m, ok := intent(ctx, r, userID, displayName, input); ok {
			return m, true
		}
	}
	return Match{}, false
}

var dateTimePattern = regexp.MustCompile(`(?i)^(what'?s? (the )?time( is it)?|what time is it|what'?s? today'?s? date|what'?s? the date)\??$`)

func intentDateTime(_ context.Context, r *Resolver, _, _, input string) (Match, bool) {
	trimmed := strings.TrimSpace(input)
	if !dateTimePattern.MatchString(trimmed) {
		return Match{}, false
	}
	now := r.clock()
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "date") {
		return Match{Text: fmt.Sprintf("Today is %s.", now.Format("Monday, January 2")), Confidence: 1.0}, true
	}
	return Match{Text: fmt.Sprintf("It's %s.", now.Format("3:04 PM")), Confidence: 1.0}, true
}

var dayOfWeekPattern = regexp.MustCompile(`(?i)^what day (is it|is today)\??$`)

func intentDayOfWeek(_ context.Context, r *Resolver, _, _, input string) (Match, bool) {
	if !dayOfWeekPattern.MatchString(strings.TrimSpace(input)) {
		return Match{}, false
	}
	return Match{Text: fmt.Sprintf("Today is %s.", r.clock().Format("Monday")), Confidence: 1.0}, true
}

var greetingPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|good morning|good afternoon|good evening)[.!]?$`)

func intentGreeting(_ context.Context, r *Resolver, _, displayName, input string) (Match, bool) {
	if !greetingPattern.MatchString(strings.TrimSpace(input)) {
		return Match{}, false
	}
	greeting := timeOfDayGreeting(r.clock())
	if displayName != "" {
		return Match{Text: fmt.Sprintf("%s, %s.", greeting, displayName), Confidence: 1.0}, true
	}
	return Match{Text: greeting + ".", Confidence: 1.0}, true
}

func timeOfDayGreeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 5:
		return "Still up"
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

var identityHelpPattern = regexp.MustCompile(`(?i)^(who are you|what can you do|help)\??$`)

func intentIdentityHelp(_ context.Context, _ *Resolver, _, _, input string) (Match, bool) {
	if !identityHelpPattern.MatchString(strings.TrimSpace(input)) {
		return Match{}, false
	}
	return Match{
		Text:       "I'm Atlas. Ask me about the time, your schedule, or just talk — I'll route anything more involved to the right place.",
		Confidence: 1.0,
	}, true
}

var recallPattern = regexp.MustCompile(`(?i)^what (did i|was the) (just |last )?(say|ask|request)\??$`)

func intentRecall(ctx context.Context, r *Resolver, userID, _, input string) (Match, bool) {
	if r.history == nil || !recallPattern.MatchString(strings.TrimSpace(input)) {
		return Match{}, false
	}
	rows, err := r.history.RecentInteractions(ctx, userID, 2)
	if err != nil || len(rows) < 2 {
		return Match{}, false
	}
	// rows[0] is this very request, already logged by the time it's read back
	// in some deployments; prefer the second-most-recent as "last time".
	prior := rows[1]
	if len(rows) > 0 && rows[0].MessageText != input {
		prior = rows[0]
	}
	return Match{Text: fmt.Sprintf("You said: %q", prior.MessageText), Confidence: 0.9}, true
}
