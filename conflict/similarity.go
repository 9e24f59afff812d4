package conflict

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/ekartashov/knowsync/core"
)

// TokenOverlapScorer is the default core.SimilarityScorer: a deterministic
// Jaccard similarity over the lowercased word sets of the two artifacts'
// string content values. Changed concepts are the tokens present on exactly
// one side. It is a baseline suitable for tests and small deployments;
// production systems typically plug in an embedding-based scorer.
type TokenOverlapScorer struct{}

// Score returns |A∩B| / |A∪B| over the token sets plus the symmetric
// difference as changed concepts. Two empty contents score 1.0.
func (TokenOverlapScorer) Score(_ context.Context, source, target *core.Artifact) (float64, []string, error) {
	srcTokens := tokenize(source.Content)
	tgtTokens := tokenize(target.Content)
	if len(srcTokens) == 0 && len(tgtTokens) == 0 {
		return 1.0, nil, nil
	}

	union := make(map[string]struct{}, len(srcTokens)+len(tgtTokens))
	intersection := 0
	for tok := range srcTokens {
		union[tok] = struct{}{}
		if _, ok := tgtTokens[tok]; ok {
			intersection++
		}
	}
	for tok := range tgtTokens {
		union[tok] = struct{}{}
	}

	var changed []string
	for tok := range union {
		_, inSrc := srcTokens[tok]
		_, inTgt := tgtTokens[tok]
		if inSrc != inTgt {
			changed = append(changed, tok)
		}
	}
	sort.Strings(changed)
	return float64(intersection) / float64(len(union)), changed, nil
}

// tokenize collects lowercased alphanumeric words from every string value in
// the payload, descending into nested maps and slices.
func tokenize(content map[string]any) map[string]struct{} {
	tokens := make(map[string]struct{})
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, word := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			}) {
				tokens[word] = struct{}{}
			}
		case map[string]any:
			for _, nested := range t {
				walk(nested)
			}
		case []any:
			for _, nested := range t {
				walk(nested)
			}
		}
	}
	walk(content)
	return tokens
}
