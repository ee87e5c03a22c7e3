package lexical

import (
	"sort"
	"strings"
	"unicode"

	"github.com/poiesic/partners/core"
)

// Tokenize lowercases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// analyzedFields is the field order of the lexical representation.
var analyzedFields = append(append([]core.Field(nil), core.ProjectedFields...), core.FieldAdditionalData)

// Analyze computes the lexemes of p. Null fields contribute nothing;
// additional data is analyzed in its serialized form, keys included.
// Lexemes are sorted by term, then by descending class.
func Analyze(p *core.Partner) []core.Lexeme {
	type key struct {
		term  string
		class core.WeightClass
	}
	index := make(map[key]int)
	var lexemes []core.Lexeme
	var pos uint32

	for _, f := range analyzedFields {
		text, ok := p.FieldText(f)
		if !ok {
			continue
		}
		class := f.Class()
		for _, tok := range Tokenize(text) {
			pos++
			k := key{tok, class}
			i, seen := index[k]
			if !seen {
				i = len(lexemes)
				index[k] = i
				lexemes = append(lexemes, core.Lexeme{Term: tok, Class: class})
			}
			lexemes[i].Positions = append(lexemes[i].Positions, pos)
		}
	}

	sort.Slice(lexemes, func(i, j int) bool {
		if lexemes[i].Term != lexemes[j].Term {
			return lexemes[i].Term < lexemes[j].Term
		}
		return lexemes[i].Class > lexemes[j].Class
	})
	return lexemes
}

// DocumentLength returns the token count of an analyzed document.
func DocumentLength(lexemes []core.Lexeme) int {
	n := 0
	for _, lx := range lexemes {
		n += len(lx.Positions)
	}
	return n
}
