package core

import (
	"fmt"
	"strings"
)

// Strategy selects a retrieval method.
type Strategy string

const (
	// StrategySemantic ranks by embedding cosine similarity.
	StrategySemantic Strategy = "semantic"
	// StrategyKeyword ranks by weighted substring matches.
	StrategyKeyword Strategy = "keyword"
	// StrategyFullText ranks by weighted lexical relevance.
	StrategyFullText Strategy = "fulltext"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategySemantic, StrategyKeyword, StrategyFullText}

// ParseStrategy converts a user supplied name to a Strategy.
// "tfidf" and "full-text" are accepted as aliases of fulltext.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "semantic", "vector":
		return StrategySemantic, nil
	case "keyword", "keywords":
		return StrategyKeyword, nil
	case "fulltext", "full-text", "tfidf":
		return StrategyFullText, nil
	}
	return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownStrategy, s)
}

func (s Strategy) String() string {
	return string(s)
}
