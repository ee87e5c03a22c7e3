package lexical

import "strings"

// reservedOperators are stripped from query words before matching.
const reservedOperators = "&|!():"

// PrepareQuery converts free text into distinct prefix terms combined with
// OR semantics. Words are split on whitespace, stripped of operator
// characters and tokenized like indexed text. An empty result means the
// query cannot match anything.
func PrepareQuery(query string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(query) {
		cleaned := strings.Map(func(r rune) rune {
			if strings.ContainsRune(reservedOperators, r) {
				return -1
			}
			return r
		}, word)
		for _, tok := range Tokenize(cleaned) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			terms = append(terms, tok)
		}
	}
	return terms
}

// TSQuery renders terms as a PostgreSQL tsquery of OR-ed prefix matches.
func TSQuery(terms []string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t + ":*"
	}
	return strings.Join(parts, " | ")
}
