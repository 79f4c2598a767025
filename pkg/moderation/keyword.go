package moderation

import (
	"context"
	"regexp"
)

// pattern pairs a compiled expression with the category it reports.
type pattern struct {
	regex    *regexp.Regexp
	category string
}

// KeywordGate flags content matching a fixed pattern list. It is a local,
// dependency-free gate suitable for development and as a first line in
// front of a remote classifier; it cannot fail, so Check never returns an
// error.
type KeywordGate struct {
	patterns []pattern
}

// NewKeywordGate creates a gate with the built-in pattern set.
func NewKeywordGate() *KeywordGate {
	return &KeywordGate{
		patterns: []pattern{
			{regexp.MustCompile(`(?i)\b(make|build|synthesize)\s+(a\s+)?(bomb|explosive|nerve\s+agent)\b`), "dangerous_instructions"},
			{regexp.MustCompile(`(?i)\b(steal|exfiltrate)\s+(credentials|passwords|keys)\b`), "criminal_planning"},
			{regexp.MustCompile(`(?i)\bkill\s+(yourself|himself|herself|themselves)\b`), "self_harm"},
		},
	}
}

// NewKeywordGateWithPatterns creates a gate from caller-supplied
// expressions, one category per expression. Useful for tests and for
// deployment-specific blocklists.
func NewKeywordGateWithPatterns(exprs map[string]string) (*KeywordGate, error) {
	g := &KeywordGate{}
	for category, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		g.patterns = append(g.patterns, pattern{regex: re, category: category})
	}
	return g, nil
}

// Check reports the first matching pattern's category.
func (g *KeywordGate) Check(ctx context.Context, candidate string) (Verdict, error) {
	for _, p := range g.patterns {
		if p.regex.MatchString(candidate) {
			return Verdict{Flagged: true, Category: p.category}, nil
		}
	}
	return Verdict{}, nil
}
