package analysis

import "strings"

// Tokenize splits text into a set of lowercase whitespace-delimited tokens.
// The token set feeds similarity computation only; lexicon classifiers match
// trigger phrases as substrings and never go through here.
func Tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Similarity returns the Jaccard similarity of the two texts' token sets in
// [0,1]. Two texts that both reduce to empty sets score 0. Symmetric and
// pure: Similarity(a,b) == Similarity(b,a), Similarity(a,a) == 1 for
// non-empty a.
func Similarity(a, b string) float64 {
	sa := Tokenize(a)
	sb := Tokenize(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	intersection := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
