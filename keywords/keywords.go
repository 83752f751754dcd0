package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Fallback is the label used when no keywords can be extracted.
const Fallback = "N/A"

// minTokenLen is the exclusive lower bound on token length in runes.
const minTokenLen = 2

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
	"been": {}, "be": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "it": {}, "its": {}, "they": {},
	"them": {}, "their": {}, "what": {}, "which": {}, "who": {},
	"when": {}, "where": {}, "why": {}, "how": {}, "all": {}, "each": {},
	"every": {}, "both": {}, "few": {}, "more": {}, "most": {},
	"other": {}, "some": {}, "such": {}, "no": {}, "not": {}, "only": {},
	"own": {}, "same": {}, "so": {}, "than": {}, "too": {}, "very": {},
	"just": {},
}

// Extract returns the top n most frequent keywords in text, after
// lowercasing, stripping punctuation, and removing stopwords and tokens
// shorter than three runes. Ties are broken by first encounter order.
func Extract(text string, n int) []string {
	if n <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var order []string

	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) <= minTokenLen {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := counts[tok]; !ok {
			firstSeen[tok] = len(order)
			order = append(order, tok)
		}
		counts[tok]++
	}

	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Label formats the top n keywords of text as a comma-joined string,
// falling back to a sentinel when nothing survives filtering.
func Label(text string, n int) string {
	kw := Extract(text, n)
	if len(kw) == 0 {
		return Fallback
	}
	return strings.Join(kw, ", ")
}
