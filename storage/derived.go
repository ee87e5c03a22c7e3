package storage

import (
	"math"
	"strings"

	"github.com/poiesic/partners/core"
)

// CheckDerived verifies that a partner about to be written carries
// artifacts computed from its current fields.
func CheckDerived(p *core.Partner) error {
	if p.Digest == "" || p.Digest != core.Project(p).Digest() {
		return ErrStaleArtifacts
	}
	return nil
}

// MatchesAnyKeyword reports whether any lowercased keyword is a substring
// of any of the given fields of p, ignoring case.
func MatchesAnyKeyword(p *core.Partner, keywords []string, fields []core.Field) bool {
	for _, f := range fields {
		text, ok := p.FieldText(f)
		if !ok || text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Normalize returns v scaled to unit length, or nil for a zero vector.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the dot product over the common prefix of a and b.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Similarity returns the cosine similarity of two unit vectors. float32
// rounding can push the dot product of near-identical vectors past 1, so
// the result is clamped to [-1, 1].
func Similarity(a, b []float32) float64 {
	return ClampSimilarity(Dot(a, b))
}

// ClampSimilarity limits a cosine similarity to [-1, 1].
func ClampSimilarity(score float64) float64 {
	return max(-1, min(1, score))
}
