package guardrail

import (
	"regexp"
	"sync/atomic"
)

// rule is a single compiled static pattern.
type rule struct {
	id       string
	category Category
	severity Severity
	regex    *regexp.Regexp
}

// patternSet is an immutable snapshot of the active static rules. Reloads
// build a brand new set and swap it in atomically so concurrent readers
// always see either the old or the new set, never a partial one.
type patternSet struct {
	rules []rule
}

// PatternTable holds the hot-reloadable static rule set.
type PatternTable struct {
	current atomic.Pointer[patternSet]
}

// NewPatternTable builds a table seeded with the default jailbreak/self-harm/
// illegal-request/PII pattern families.
func NewPatternTable() *PatternTable {
	t := &PatternTable{}
	t.current.Store(&patternSet{rules: compileRules(defaultRules())})
	return t
}

// Match runs every compiled rule against text and returns one finding per
// matching rule, in rule order.
func (t *PatternTable) Match(text, variant string) []Finding {
	set := t.current.Load()
	var findings []Finding
	for _, r := range set.rules {
		if r.regex.MatchString(text) {
			findings = append(findings, Finding{
				Category: r.category,
				Severity: r.severity,
				RuleID:   r.id,
				Detail:   "matched static pattern",
				Variant:  variant,
			})
		}
	}
	return findings
}

// Reload atomically swaps in a new rule set, e.g. after the learner promotes
// a candidate pattern or an operator edits the patterns file.
func (t *PatternTable) Reload(defs []ruleDef) {
	t.current.Store(&patternSet{rules: compileRules(defs)})
}

// Add appends one rule to the active set via copy-on-write: the old slice is
// never mutated in place.
func (t *PatternTable) Add(id string, category Category, severity Severity, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	old := t.current.Load()
	next := make([]rule, len(old.rules), len(old.rules)+1)
	copy(next, old.rules)
	next = append(next, rule{id: id, category: category, severity: severity, regex: re})
	t.current.Store(&patternSet{rules: next})
	return nil
}

type ruleDef struct {
	id       string
	category Category
	severity Severity
	pattern  string
}

func compileRules(defs []ruleDef) []rule {
	rules := make([]rule, 0, len(defs))
	for _, d := range defs {
		re, err := regexp.Compile(d.pattern)
		if err != nil {
			continue
		}
		rules = append(rules, rule{id: d.id, category: d.category, severity: d.severity, regex: re})
	}
	return rules
}

// defaultRules seeds the table with known jailbreak families and the other
// input-side detectors. The learner extends this set at runtime; it never
// removes these base entries.
func defaultRules() []ruleDef {
	return []ruleDef{
		// Prompt injection / jailbreak families.
		{"inj-ignore-instructions", CategoryPromptInjection, HardBlock, `(?i)ignore (all )?(previous|prior|above) instructions`},
		{"inj-system-prompt-leak", CategoryPromptInjection, HardBlock, `(?i)(reveal|repeat|print|show) (your |the )?(system prompt|instructions)`},
		{"inj-dan-roleplay", CategoryPromptInjection, SoftBlock, `(?i)\byou are (now |)?(dan|do anything now)\b`},
		{"inj-pretend-no-rules", CategoryPromptInjection, SoftBlock, `(?i)pretend (you have |that you have )?no (rules|restrictions|guidelines)`},
		{"inj-developer-mode", CategoryPromptInjection, Warn, `(?i)\b(developer mode|jailbreak mode)\b`},

		// Self-harm.
		{"selfharm-explicit", CategorySelfHarm, HardBlock, `(?i)\b(kill myself|end my life|suicide plan)\b`},
		{"selfharm-ideation", CategorySelfHarm, SoftBlock, `(?i)\b(want to die|no reason to live)\b`},

		// Illegal request.
		{"illegal-weapons", CategoryIllegalRequest, HardBlock, `(?i)\bhow (do i|to) (build|make) a (bomb|explosive)\b`},
		{"illegal-drugs-synth", CategoryIllegalRequest, HardBlock, `(?i)\bsynthesi[sz]e (meth|fentanyl)\b`},

		// PII exposure in the user's own message (risk of storing/echoing it).
		{"pii-ssn", CategoryPIIExposure, Warn, `\b\d{3}-\d{2}-\d{4}\b`},
		{"pii-card", CategoryPIIExposure, Warn, `\b(?:\d[ -]?){13,16}\b`},
		{"pii-email", CategoryPIIExposure, Warn, `\b[\w.+-]+@[\w-]+\.[\w.-]+\b`},

		// Output-side checks (run against generated text, not user input).
		{"out-persona-break", CategoryPersonaBreak, Warn, `(?i)\bas an ai language model\b`},
		{"out-leak-system-fragment", CategoryDataLeakage, SoftBlock, `(?i)\b(my system prompt|my instructions are)\b`},
	}
}
