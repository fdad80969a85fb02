package guardrail

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// homoglyphs maps common look-alike characters (Cyrillic, fullwidth, etc.)
// back to their closest ASCII Latin equivalent.
var homoglyphs = map[rune]rune{
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', // Cyrillic
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H', 'Ι': 'I', 'Κ': 'K',
	'０': '0', '１': '1', '２': '2', '３': '3', '４': '4', '５': '5', '６': '6', '７': '7', '８': '8', '９': '9',
}

// leetMap maps common leetspeak substitutions back to letters.
var leetMap = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't', '@': 'a', '$': 's',
}

const zeroWidthChars = "\u200b\u200c\u200d\ufeff\u00ad"

// Variants generates the deobfuscated candidate set for a piece of input
// text. Every guardrail detector runs against every variant; the worst
// severity across all of them wins.
func Variants(input string) []string {
	seen := map[string]bool{input: true}
	variants := []string{input}

	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			variants = append(variants, s)
		}
	}

	add(stripZeroWidth(input))
	add(normalizeHomoglyphs(input))
	add(normalizeLeetspeak(input))
	add(rot13(input))
	if decoded, ok := tryBase64(input); ok {
		add(decoded)
	}
	add(stripHTML(input))

	return variants
}

// stripHTML collapses any HTML markup in the input down to its visible text,
// catching an attack shape smuggled inside tags or entities (e.g.
// "<b>ignore</b>&nbsp;previous&nbsp;instructions") that would otherwise read
// as noise to the pattern/semantic detectors. Only returns a variant when
// the input actually looks like markup, so plain text isn't round-tripped
// through a parser for nothing.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" || text == s {
		return ""
	}
	return text
}

func stripZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(zeroWidthChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeHomoglyphs(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for _, r := range s {
		if repl, ok := homoglyphs[r]; ok {
			b.WriteRune(repl)
			changed = true
			continue
		}
		b.WriteRune(r)
	}
	if !changed {
		return ""
	}
	return b.String()
}

func normalizeLeetspeak(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for _, r := range s {
		if repl, ok := leetMap[r]; ok {
			b.WriteRune(repl)
			changed = true
			continue
		}
		b.WriteRune(r)
	}
	if !changed {
		return ""
	}
	return b.String()
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

// tryBase64 attempts to decode the input (or a long token within it) as
// base64; returns the decoded text only if it looks like printable ASCII,
// since most legitimate messages are not base64.
func tryBase64(s string) (string, bool) {
	candidate := strings.TrimSpace(s)
	if len(candidate) < 8 {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(candidate)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(candidate)
		if err != nil {
			return "", false
		}
	}
	if !looksPrintable(decoded) {
		return "", false
	}
	return string(decoded), true
}

func looksPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if c >= 32 && c < 127 {
			printable++
		}
	}
	return float64(printable)/float64(len(b)) > 0.9
}
