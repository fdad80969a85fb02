package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"
)

// duplicateScoreFloor is the minimum sahilm/fuzzy match score (roughly
// proportional to trigger length for a near-identical string) above which a
// new candidate is considered a restatement of one already learned, rather
// than a distinct attack shape worth its own pattern.
const duplicateScoreFloor = 8

// structuralWords are verbs/intent words worth preserving verbatim in a
// generalised candidate pattern; everything else is treated as a noun-like
// token and replaced with a wildcard.
var structuralWords = map[string]bool{
	"ignore": true, "forget": true, "disregard": true, "reveal": true,
	"repeat": true, "print": true, "show": true, "pretend": true,
	"act": true, "roleplay": true, "bypass": true, "override": true,
	"you": true, "are": true, "your": true, "the": true, "a": true, "an": true,
	"now": true, "no": true, "not": true, "do": true, "is": true, "as": true,
}

// Learner watches blocked events and, over time, promotes generalised
// regexes into the active static pattern table. It never auto-admits a
// candidate without validating it against a known-good corpus first.
type Learner struct {
	patterns   *PatternTable
	semantic   *SemanticDetector
	knownGood  []string // benign corpus used for false-positive validation
	maxFPR     float64
	candidates []candidate
}

type candidate struct {
	id      string
	regex   string
	trigger string
	hits    int
}

// NewLearner creates a learner bound to a pattern table and semantic
// detector, with maxFPR as the admission ceiling (spec default policy-set,
// commonly ~0.01).
func NewLearner(patterns *PatternTable, semantic *SemanticDetector, knownGood []string, maxFPR float64) *Learner {
	if maxFPR <= 0 {
		maxFPR = 0.01
	}
	return &Learner{patterns: patterns, semantic: semantic, knownGood: knownGood, maxFPR: maxFPR}
}

// Observe is called with every hard_block/soft_block event's triggering text.
// It extracts a generalised candidate, stores the raw text as a semantic
// exemplar, and admits the candidate to the active pattern set only if it
// clears the known-good corpus at an acceptable false-positive rate.
func (l *Learner) Observe(ctx context.Context, triggerText string, category Category) error {
	if l.semantic != nil {
		if err := l.semantic.AddExemplar(ctx, triggerText, category); err != nil {
			return fmt.Errorf("semantic exemplar: %w", err)
		}
	}

	if l.isDuplicate(triggerText) {
		return nil
	}

	pattern := generalise(triggerText)
	if pattern == "" {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	fpr := falsePositiveRate(re, l.knownGood)
	if fpr > l.maxFPR {
		return nil
	}

	id := fmt.Sprintf("learned-%s-%d", category, len(l.candidates))
	l.candidates = append(l.candidates, candidate{id: id, regex: pattern, trigger: triggerText, hits: 1})
	return l.patterns.Add(id, category, Warn, pattern)
}

// isDuplicate fuzzy-matches triggerText against every previously admitted
// candidate's raw trigger text, so a reworded restatement of an attack
// already learned doesn't spawn a second near-identical pattern in the
// table. Unlike the false-positive check below, this never causes the
// Learner to auto-admit anything new — it only suppresses redundant growth.
func (l *Learner) isDuplicate(triggerText string) bool {
	if len(l.candidates) == 0 {
		return false
	}
	triggers := make([]string, len(l.candidates))
	for i, c := range l.candidates {
		triggers[i] = c.trigger
	}
	matches := fuzzy.Find(triggerText, triggers)
	return len(matches) > 0 && matches[0].Score >= duplicateScoreFloor
}

// generalise tokenises the trigger text, keeps structural/intent words
// verbatim, and replaces other (noun-like) tokens with a wildcard, producing
// a regex that still catches paraphrases of the same attack shape.
func generalise(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 || len(words) > 12 {
		return ""
	}

	parts := make([]string, 0, len(words))
	for _, w := range words {
		clean := strings.Trim(w, ".,!?\"'")
		if clean == "" {
			continue
		}
		if structuralWords[clean] {
			parts = append(parts, regexp.QuoteMeta(clean))
		} else {
			parts = append(parts, `\S+`)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(?i)" + strings.Join(parts, `\s+`)
}

// falsePositiveRate measures how often a candidate regex fires against a
// corpus of benign messages.
func falsePositiveRate(re *regexp.Regexp, corpus []string) float64 {
	if len(corpus) == 0 {
		return 0 // nothing to validate against; treat as safe to admit
	}
	hits := 0
	for _, msg := range corpus {
		if re.MatchString(strings.ToLower(msg)) {
			hits++
		}
	}
	return float64(hits) / float64(len(corpus))
}
