package lexical

import (
	"testing"

	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"info", "securepay", "com"}, Tokenize("Info@SecurePay.com"))
	assert.Equal(t, []string{"zürich", "2024"}, Tokenize("Zürich, 2024!"))
	assert.Empty(t, Tokenize("  -- "))
}

func TestAnalyze(t *testing.T) {
	p := &core.Partner{
		Name:         "SecurePay Systems",
		Description:  core.Text("Payment security for payment providers"),
		Industry:     core.Text("Financial Technology"),
		ContactEmail: core.Text("sales@securepay.example"),
	}
	lexemes := Analyze(p)

	byKey := map[string]core.Lexeme{}
	for _, lx := range lexemes {
		byKey[lx.Term+"/"+lx.Class.String()] = lx
	}

	require.Contains(t, byKey, "securepay/A")
	require.Contains(t, byKey, "securepay/D")
	require.Contains(t, byKey, "payment/B")
	require.Contains(t, byKey, "financial/A")

	assert.Equal(t, []uint32{1}, byKey["securepay/A"].Positions)
	assert.Equal(t, []uint32{3, 6}, byKey["payment/B"].Positions)
	assert.Equal(t, 12, DocumentLength(lexemes))

	// Null fields add nothing and the placeholder is not indexed.
	assert.NotContains(t, byKey, "n/C")
	assert.NotContains(t, byKey, "a/C")

	for i := 1; i < len(lexemes); i++ {
		assert.LessOrEqual(t, lexemes[i-1].Term, lexemes[i].Term)
	}
}

func TestAnalyze_AdditionalData(t *testing.T) {
	var attrs core.Attributes
	attrs.Set("certification", core.StringValue("ISO 27001"))
	p := &core.Partner{Name: "Acme", AdditionalData: attrs}

	found := map[string]core.WeightClass{}
	for _, lx := range Analyze(p) {
		found[lx.Term] = lx.Class
	}
	assert.Equal(t, core.WeightC, found["certification"])
	assert.Equal(t, core.WeightC, found["27001"])
}

func TestPrepareQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"simple", "fintech payment", []string{"fintech", "payment"}},
		{"operators stripped", "(pay|ment) & !risk:", []string{"payment", "risk"}},
		{"duplicates removed", "Pay pay PAY", []string{"pay"}},
		{"blank", "   \t ", nil},
		{"only operators", "&& || !", nil},
		{"punctuation splits", "e-commerce", []string{"e", "commerce"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrepareQuery(tt.query))
		})
	}
}

func TestTSQuery(t *testing.T) {
	assert.Equal(t, "fintech:* | payment:*", TSQuery([]string{"fintech", "payment"}))
}

func TestScorer_Score(t *testing.T) {
	s := NewScorer()
	idf := []float64{1, 1}

	t.Run("class A outranks class D", func(t *testing.T) {
		a := s.Score(Document{Id: 1, Length: 10, Hits: []Hit{{Term: 0, Position: 1, Class: core.WeightA}}}, idf)
		d := s.Score(Document{Id: 2, Length: 10, Hits: []Hit{{Term: 0, Position: 1, Class: core.WeightD}}}, idf)
		assert.Greater(t, a, d)
	})

	t.Run("longer documents are penalized", func(t *testing.T) {
		hit := []Hit{{Term: 0, Position: 1, Class: core.WeightB}}
		short := s.Score(Document{Id: 1, Length: 5, Hits: hit}, idf)
		long := s.Score(Document{Id: 2, Length: 500, Hits: hit}, idf)
		assert.Greater(t, short, long)
	})

	t.Run("adjacent hits form a denser cover", func(t *testing.T) {
		adjacent := s.Score(Document{Id: 1, Length: 10, Hits: []Hit{
			{Term: 0, Position: 3, Class: core.WeightB},
			{Term: 1, Position: 4, Class: core.WeightB},
		}}, idf)
		apart := s.Score(Document{Id: 2, Length: 10, Hits: []Hit{
			{Term: 0, Position: 1, Class: core.WeightB},
			{Term: 1, Position: 8, Class: core.WeightB},
		}}, idf)
		assert.Greater(t, adjacent, apart)
	})

	t.Run("scores stay in unit interval", func(t *testing.T) {
		var hits []Hit
		for i := uint32(1); i <= 50; i++ {
			hits = append(hits, Hit{Term: 0, Position: i, Class: core.WeightA})
		}
		score := s.Score(Document{Id: 1, Length: 50, Hits: hits}, []float64{10})
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	})

	t.Run("term order does not change the score", func(t *testing.T) {
		// "pay" and "payment" both prefix-match the same three tokens.
		hits := func(pay, payment int) []Hit {
			var out []Hit
			for _, pos := range []uint32{1, 3, 5} {
				out = append(out,
					Hit{Term: pay, Position: pos, Class: core.WeightB},
					Hit{Term: payment, Position: pos, Class: core.WeightB})
			}
			return out
		}
		forward := s.Score(Document{Id: 1, Length: 10, Hits: hits(0, 1)}, []float64{0.2, 2.0})
		swapped := s.Score(Document{Id: 1, Length: 10, Hits: hits(1, 0)}, []float64{2.0, 0.2})
		assert.InDelta(t, forward, swapped, 1e-12)

		strongest := s.Score(Document{Id: 1, Length: 10, Hits: hits(1, 1)}, []float64{0.2, 2.0})
		assert.InDelta(t, strongest, forward, 1e-12, "the higher idf counts at a shared position")
	})

	t.Run("no hits scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Score(Document{Id: 1, Length: 3}, idf))
	})
}

func TestScorer_Rank(t *testing.T) {
	s := NewScorer()
	hit := []Hit{{Term: 0, Position: 1, Class: core.WeightA}}
	docs := []Document{
		{Id: 3, Length: 4, Hits: hit},
		{Id: 1, Length: 4, Hits: hit},
		{Id: 2, Length: 40, Hits: hit},
		{Id: 4, Length: 4},
	}
	matches := s.Rank(docs, []float64{1}, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(1), matches[0].Id, "ties broken by ascending id")
	assert.Equal(t, core.ID(3), matches[1].Id)
	assert.Equal(t, matches[0].Score, matches[1].Score)
}

func TestIDF(t *testing.T) {
	assert.Greater(t, IDF(100, 1), IDF(100, 50))
	assert.Equal(t, 0.0, IDF(100, 0))
}
