package lexical

import (
	"math"
	"sort"

	"github.com/poiesic/partners/core"
)

// Weights maps weight classes to multipliers.
type Weights struct {
	A, B, C, D float64
}

// DefaultWeights are the class multipliers used by PostgreSQL ranking.
var DefaultWeights = Weights{A: 1.0, B: 0.4, C: 0.2, D: 0.1}

// Of returns the multiplier of class c.
func (w Weights) Of(c core.WeightClass) float64 {
	switch c {
	case core.WeightA:
		return w.A
	case core.WeightB:
		return w.B
	case core.WeightC:
		return w.C
	case core.WeightD:
		return w.D
	}
	return 0
}

// Hit is one occurrence of a query term in a document.
type Hit struct {
	// Term indexes the prepared query terms.
	Term     int
	Position uint32
	Class    core.WeightClass
}

// Document is a candidate with the occurrences of every matched query term.
type Document struct {
	Id     core.ID
	Length int
	Hits   []Hit
}

// IDF returns the inverse document frequency of a term found in df of
// total documents.
func IDF(total, df int) float64 {
	if df <= 0 || total <= 0 {
		return 0
	}
	return math.Log(1 + float64(total)/float64(df))
}

// coverBoost is the extra weight per additional adjacent hit in a cover.
const coverBoost = 0.5

// Scorer ranks candidate documents.
type Scorer struct {
	Weights Weights
}

// NewScorer returns a scorer with DefaultWeights.
func NewScorer() *Scorer {
	return &Scorer{Weights: DefaultWeights}
}

// Score computes the relevance of doc. idf holds one value per query term.
//
// Each hit contributes its class weight times the term idf. Maximal runs of
// adjacent hit positions (covers) multiply their summed contribution by
// 1 + 0.5*(length-1). The raw rank is divided by 1 + ln(document length)
// and mapped into [0, 1) as r/(r+1).
func (s *Scorer) Score(doc Document, idf []float64) float64 {
	if len(doc.Hits) == 0 {
		return 0
	}
	type weighted struct {
		position uint32
		contrib  float64
	}
	hits := make([]weighted, len(doc.Hits))
	for i, h := range doc.Hits {
		contrib := s.Weights.Of(h.Class)
		if h.Term >= 0 && h.Term < len(idf) {
			contrib *= idf[h.Term]
		}
		hits[i] = weighted{position: h.Position, contrib: contrib}
	}
	// Position order, strongest hit first at a shared position.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].position != hits[j].position {
			return hits[i].position < hits[j].position
		}
		return hits[i].contrib > hits[j].contrib
	})

	var rank, cover float64
	run := 0
	var last uint32
	for i, h := range hits {
		if i > 0 && h.position == last {
			// Same position matched by two prefix terms; count once.
			continue
		}
		if i > 0 && h.position == last+1 {
			cover += h.contrib
			run++
		} else {
			rank += cover * (1 + coverBoost*float64(run-1))
			cover = h.contrib
			run = 1
		}
		last = h.position
	}
	rank += cover * (1 + coverBoost*float64(run-1))

	length := doc.Length
	if length < 1 {
		length = 1
	}
	rank /= 1 + math.Log(float64(length))
	return rank / (rank + 1)
}

// Rank scores every document and returns the best limit matches ordered by
// descending score, ties broken by ascending ID.
func (s *Scorer) Rank(docs []Document, idf []float64, limit int) []core.Match {
	matches := make([]core.Match, 0, len(docs))
	for _, doc := range docs {
		score := s.Score(doc, idf)
		if score <= 0 {
			continue
		}
		matches = append(matches, core.Match{Id: doc.Id, Score: score})
	}
	SortMatches(matches)
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// SortMatches orders matches by descending score, ties by ascending ID.
func SortMatches(matches []core.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Id < matches[j].Id
	})
}
