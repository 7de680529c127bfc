package insights

import "sort"

// stopwords filters common English function words from theme-keyword and
// bug-pattern term extraction. It is the only stopword list in the module;
// the self-query and schemas packages do no stopword filtering.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "can": true, "need": true,
	"not": true, "this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "we": true, "they": true, "them": true,
	"their": true, "our": true, "your": true, "my": true, "all": true,
	"any": true, "some": true, "no": true, "when": true, "where": true,
	"how": true, "what": true, "which": true, "who": true, "why": true,
	"if": true, "then": true, "than": true, "so": true, "just": true,
	"only": true, "also": true, "very": true, "too": true, "more": true,
	"most": true, "other": true, "into": true, "over": true, "after": true,
	"before": true, "between": true,
}

// extractKeywords does frequency-based keyword extraction over a set of
// texts: lowercase, strip non-alphanumerics, drop stopwords and anything
// shorter than 3 characters, return the topK most frequent terms.
func extractKeywords(texts []string, topK int) []string {
	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		for _, raw := range splitWords(text) {
			word := cleanWord(raw)
			if len(word) <= 2 || stopwords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topK {
		order = order[:topK]
	}
	return order
}

func splitWords(text string) []string {
	var words []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			flush()
			continue
		}
		cur = append(cur, c)
	}
	flush()
	return words
}

func cleanWord(word string) string {
	out := make([]byte, 0, len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		}
	}
	return string(out)
}
