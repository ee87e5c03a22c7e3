package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
)

// writeVectorEntry stores the normalized embedding of p. Partners without
// a usable embedding get no entry.
func writeVectorEntry(tx *badger.Txn, p *core.Partner) error {
	vec := storage.Normalize(p.Embedding)
	if vec == nil {
		return nil
	}
	return tx.Set(makeVectorKey(p.Id), storage.MarshalVector(vec))
}

// NearestPartners returns up to k partners by descending cosine similarity.
// With the vector index built it scans the precomputed normalized vectors;
// otherwise it normalizes every stored embedding.
func (s *Store) NearestPartners(ctx context.Context, vector []float32, k int) ([]core.Match, error) {
	if k <= 0 {
		return []core.Match{}, nil
	}
	query := storage.Normalize(vector)
	if query == nil {
		return []core.Match{}, nil
	}

	var matches []core.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		indexed, err := keyExists(tx, []byte(vectorIndexKey))
		if err != nil {
			return err
		}
		if indexed {
			matches, err = scanVectorIndex(ctx, tx, query)
		} else {
			matches, err = scanEmbeddings(ctx, tx, query)
		}
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	lexical.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func scanVectorIndex(ctx context.Context, tx *badger.Txn, query []float32) ([]core.Match, error) {
	prefix := []byte(vectorPrefix)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var matches []core.Match
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := it.Item()
		id, ok := idFromKeySuffix(item.Key())
		if !ok {
			continue
		}
		err := item.Value(func(val []byte) error {
			vec, err := storage.UnmarshalVector(val)
			if err != nil {
				return err
			}
			if len(vec) == len(query) {
				matches = append(matches, core.Match{Id: id, Score: storage.Similarity(query, vec)})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func scanEmbeddings(ctx context.Context, tx *badger.Txn, query []float32) ([]core.Match, error) {
	prefix := []byte(partnerPrefix)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var matches []core.Match
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := it.Item().Value(func(val []byte) error {
			p, err := storage.UnmarshalPartner(val)
			if err != nil {
				return err
			}
			vec := storage.Normalize(p.Embedding)
			if vec != nil && len(vec) == len(query) {
				matches = append(matches, core.Match{Id: p.Id, Score: storage.Similarity(query, vec)})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// EnsureVectorIndex backfills normalized vectors for partners that lack
// them and marks the index as built. Concurrent callers share one build.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	_, err, _ := s.maintenance.Do(vectorIndexKey, func() (any, error) {
		return nil, s.ensureIndex(ctx, vectorIndexKey, makeVectorKey, writeVectorEntry)
	})
	return err
}

// ensureIndex writes entries for every partner whose probe key is missing,
// then sets marker.
func (s *Store) ensureIndex(ctx context.Context, marker string, probe func(core.ID) []byte, write func(*badger.Txn, *core.Partner) error) error {
	var built bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		built, err = keyExists(tx, []byte(marker))
		return err
	}, false)
	if err != nil || built {
		return err
	}

	var missing []core.ID
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(partnerPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, ok := idFromKeySuffix(it.Item().Key())
			if !ok {
				continue
			}
			exists, err := keyExists(tx, probe(id))
			if err != nil {
				return err
			}
			if !exists {
				missing = append(missing, id)
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	for _, id := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.backfill(id, write); err != nil {
			return err
		}
	}

	s.logger.Info("index built", "index", marker, "backfilled", len(missing))
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(marker), []byte{1}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// backfillAttempts bounds retries when a backfill races a writer.
const backfillAttempts = 3

func (s *Store) backfill(id core.ID, write func(*badger.Txn, *core.Partner) error) error {
	var err error
	for range backfillAttempts {
		err = s.backend.WithTx(func(tx *badger.Txn) error {
			record, err := readPartner(tx, makePartnerKey(id))
			if err != nil || record == nil {
				// Deleted since the scan.
				return err
			}
			if err := write(tx, record); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
	}
	return err
}
