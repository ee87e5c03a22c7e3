package search

import (
	"strings"

	"github.com/poiesic/partners/core"
)

// FieldWeight is the score one keyword earns from a field.
type FieldWeight struct {
	Field  core.Field
	Weight float64
}

// KeywordWeights lists the scored fields in the order they are tried.
var KeywordWeights = []FieldWeight{
	{core.FieldName, 1.0},
	{core.FieldIndustry, 0.9},
	{core.FieldDescription, 0.8},
	{core.FieldLocation, 0.7},
	{core.FieldWebsite, 0.6},
	{core.FieldContactEmail, 0.5},
	{core.FieldContactPhone, 0.5},
	{core.FieldAdditionalData, 0.4},
}

// keywordFields is every field a keyword candidate may match.
var keywordFields = func() []core.Field {
	fields := make([]core.Field, len(KeywordWeights))
	for i, fw := range KeywordWeights {
		fields[i] = fw.Field
	}
	return fields
}()

// fallbackFields are searched while the lexical index is missing.
var fallbackFields = []core.Field{
	core.FieldName,
	core.FieldDescription,
	core.FieldIndustry,
	core.FieldLocation,
}

// fallbackScore is assigned to every fulltext fallback match.
const fallbackScore = 0.5

// Keywords splits query on whitespace and lowercases each keyword.
// Repeated keywords are kept; each occurrence scores separately.
func Keywords(query string) []string {
	fields := strings.Fields(query)
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		keywords = append(keywords, strings.ToLower(f))
	}
	return keywords
}

// KeywordScore sums, for each keyword, the weight of the first field in
// KeywordWeights order that contains it. Keywords must be lowercased.
func KeywordScore(p *core.Partner, keywords []string) float64 {
	texts := make([]string, len(KeywordWeights))
	present := make([]bool, len(KeywordWeights))
	for i, fw := range KeywordWeights {
		if v, ok := p.FieldText(fw.Field); ok {
			texts[i] = strings.ToLower(v)
			present[i] = true
		}
	}

	var score float64
	for _, kw := range keywords {
		for i, fw := range KeywordWeights {
			if present[i] && strings.Contains(texts[i], kw) {
				score += fw.Weight
				break
			}
		}
	}
	return score
}
