package badger

import (
	"bytes"
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
)

// writeLexicalEntries stores one posting per distinct term of p plus its
// document length.
func writeLexicalEntries(tx *badger.Txn, p *core.Partner) error {
	byTerm := make(map[string][]core.Lexeme)
	for _, lx := range p.SearchableText {
		byTerm[lx.Term] = append(byTerm[lx.Term], lx)
	}
	for term, lxs := range byTerm {
		if err := tx.Set(makePostingKey(term, p.Id), storage.MarshalLexemes(lxs)); err != nil {
			return err
		}
	}
	return tx.Set(makeDocLengthKey(p.Id), storage.MarshalCount(lexical.DocumentLength(p.SearchableText)))
}

func distinctTerms(lxs []core.Lexeme) []string {
	var terms []string
	for i, lx := range lxs {
		if i > 0 && lxs[i-1].Term == lx.Term {
			continue
		}
		terms = append(terms, lx.Term)
	}
	return terms
}

// RankLexical ranks partners matching any of the prefix terms.
func (s *Store) RankLexical(ctx context.Context, terms []string, limit int) ([]core.Match, error) {
	if len(terms) == 0 || limit <= 0 {
		return []core.Match{}, nil
	}

	var matches []core.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ready, err := keyExists(tx, []byte(lexicalIndexKey))
		if err != nil {
			return err
		}
		if !ready {
			return storage.ErrIndexUnavailable
		}

		docs := make(map[core.ID]*lexical.Document)
		idf := make([]float64, len(terms))
		postings := make([]*roaring64.Bitmap, len(terms))
		for i, term := range terms {
			if postings[i], err = collectPostings(ctx, tx, i, term, docs); err != nil {
				return err
			}
		}

		total := countKeys(tx, []byte(docLengthPrefix))
		for i, bm := range postings {
			idf[i] = lexical.IDF(total, int(bm.GetCardinality()))
		}

		candidates := roaring64.New()
		for _, bm := range postings {
			candidates.Or(bm)
		}
		list := make([]lexical.Document, 0, candidates.GetCardinality())
		it := candidates.Iterator()
		for it.HasNext() {
			id := core.ID(it.Next())
			doc := docs[id]
			doc.Length, err = readDocLength(tx, id)
			if err != nil {
				return err
			}
			list = append(list, *doc)
		}
		matches = s.scorer.Rank(list, idf, limit)
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// collectPostings gathers the hits of every term starting with prefix and
// returns the set of documents containing one.
func collectPostings(ctx context.Context, tx *badger.Txn, termIdx int, prefix string, docs map[core.ID]*lexical.Document) (*roaring64.Bitmap, error) {
	found := roaring64.New()
	scan := makePostingScanPrefix(prefix)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := it.Item()
		key := item.Key()
		// The separator must follow the term, which can't contain one.
		if sep := bytes.IndexByte(key[len(postingPrefix):], postingSeparator); sep < 0 || len(key) != len(postingPrefix)+sep+9 {
			continue
		}
		id, _ := idFromKeySuffix(key)
		err := item.Value(func(val []byte) error {
			lxs, err := storage.UnmarshalLexemes(val)
			if err != nil {
				return err
			}
			doc, ok := docs[id]
			if !ok {
				doc = &lexical.Document{Id: id}
				docs[id] = doc
			}
			for _, lx := range lxs {
				for _, pos := range lx.Positions {
					doc.Hits = append(doc.Hits, lexical.Hit{Term: termIdx, Position: pos, Class: lx.Class})
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		found.Add(uint64(id))
	}
	return found, nil
}

func readDocLength(tx *badger.Txn, id core.ID) (int, error) {
	item, err := tx.Get(makeDocLengthKey(id))
	if err != nil {
		return 0, err
	}
	var n int
	err = item.Value(func(val []byte) error {
		n, err = storage.UnmarshalCount(val)
		return err
	})
	return n, err
}

// EnsureLexicalIndex backfills postings for partners that lack them and
// marks the index as built. Concurrent callers share one build.
func (s *Store) EnsureLexicalIndex(ctx context.Context) error {
	_, err, _ := s.maintenance.Do(lexicalIndexKey, func() (any, error) {
		return nil, s.ensureIndex(ctx, lexicalIndexKey, makeDocLengthKey, writeLexicalEntries)
	})
	return err
}
