package services

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`\b[a-zA-Z]+\b`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {},
	"did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "can": {}, "what": {}, "how": {}, "when": {}, "where": {},
	"why": {},
}

// ExtractKeyTerms pulls up to five meaningful terms from text in order of
// appearance, dropping stopwords and words of three characters or fewer.
func ExtractKeyTerms(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)

	terms := make([]string, 0, 5)
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		terms = append(terms, word)
		if len(terms) == 5 {
			break
		}
	}
	return terms
}
