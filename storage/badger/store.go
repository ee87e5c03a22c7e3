package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
	"golang.org/x/sync/singleflight"
)

// Store implements storage.Store for BadgerDB.
type Store struct {
	backend     *Backend
	ownsBackend bool
	idSeq       *badger.Sequence
	scorer      *lexical.Scorer
	logger      *slog.Logger
	maintenance singleflight.Group
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithScorer replaces the lexical scorer used by RankLexical.
func WithScorer(scorer *lexical.Scorer) Option {
	return func(s *Store) {
		s.scorer = scorer
	}
}

// NewStore creates a Store on top of an open backend. The caller keeps
// ownership of the backend.
func NewStore(backend *Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	idSeq, err := backend.GetSequence(partnerIDSeq)
	if err != nil {
		return nil, err
	}

	s := &Store{
		backend: backend,
		idSeq:   idSeq,
		scorer:  lexical.NewScorer(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "partner-store")
	return s, nil
}

// Close releases the ID sequence, and the backend when the store owns it.
func (s *Store) Close() error {
	err := s.idSeq.Release()
	if s.ownsBackend {
		err = errors.Join(err, s.backend.Close())
	}
	return err
}

// AddPartner assigns an ID and timestamps and stores the partner.
func (s *Store) AddPartner(ctx context.Context, partner *core.Partner) (*core.Partner, error) {
	if partner == nil {
		return nil, storage.ErrInvalidQuery
	}
	if err := storage.CheckDerived(partner); err != nil {
		return nil, err
	}
	record := partner.Clone()

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := s.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = s.idSeq.Next()
			if err != nil {
				return err
			}
		}
		record.Id = core.ID(nextID)
		record.CreatedAt = now()
		record.UpdatedAt = record.CreatedAt

		if err := writePartner(tx, record); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpdatePartner applies mutate to a copy of the stored partner and writes
// the result together with refreshed index entries.
func (s *Store) UpdatePartner(ctx context.Context, id core.ID, mutate func(p *core.Partner) error) (*core.Partner, error) {
	var result *core.Partner
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readPartner(tx, makePartnerKey(id))
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		updated := old.Clone()
		if err := mutate(updated); err != nil {
			return err
		}
		updated.Id = old.Id
		updated.CreatedAt = old.CreatedAt
		updated.UpdatedAt = now()
		if err := storage.CheckDerived(updated); err != nil {
			return err
		}

		if err := deleteIndexEntries(tx, old); err != nil {
			return err
		}
		if err := writePartner(tx, updated); err != nil {
			return err
		}
		result = updated
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeletePartner removes a partner and its index entries.
func (s *Store) DeletePartner(ctx context.Context, id core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makePartnerKey(id)
		record, err := readPartner(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}
		if err := deleteIndexEntries(tx, record); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetPartner retrieves a single partner by ID.
func (s *Store) GetPartner(ctx context.Context, id core.ID) (*core.Partner, error) {
	var result *core.Partner
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPartner(tx, makePartnerKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetPartners retrieves the partners that exist among ids.
func (s *Store) GetPartners(ctx context.Context, ids ...core.ID) ([]*core.Partner, error) {
	results := make([]*core.Partner, 0, len(ids))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[core.ID]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			record, err := readPartner(tx, makePartnerKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListPartners returns up to limit partners ordered by ID, skipping offset.
// limit <= 0 returns every remaining partner.
func (s *Store) ListPartners(ctx context.Context, offset, limit int) ([]*core.Partner, error) {
	if offset < 0 {
		return nil, storage.ErrInvalidQuery
	}
	results := []*core.Partner{}
	err := s.scanPartners(ctx, func(p *core.Partner) bool {
		if offset > 0 {
			offset--
			return true
		}
		results = append(results, p)
		return limit <= 0 || len(results) < limit
	})
	return results, err
}

// CountPartners counts stored partners with a keys-only scan.
func (s *Store) CountPartners(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		count = countKeys(tx, []byte(partnerPrefix))
		return nil
	}, false)
	return count, err
}

// scanPartners calls fn for every partner in ID order until fn returns false.
func (s *Store) scanPartners(ctx context.Context, fn func(p *core.Partner) bool) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(partnerPrefix)
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.Partner
			err := it.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalPartner(val)
				return err
			})
			if err != nil {
				return err
			}
			if !fn(record) {
				break
			}
		}
		return nil
	}, false)
}

// readPartner reads a partner within a transaction. Returns nil if the
// record doesn't exist.
func readPartner(tx *badger.Txn, key []byte) (*core.Partner, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var record *core.Partner
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalPartner(val)
		return err
	})
	return record, err
}

// writePartner stores the record and every index entry derived from it.
func writePartner(tx *badger.Txn, p *core.Partner) error {
	if err := tx.Set(makePartnerKey(p.Id), storage.MarshalPartner(p)); err != nil {
		return err
	}
	if err := writeVectorEntry(tx, p); err != nil {
		return err
	}
	return writeLexicalEntries(tx, p)
}

// deleteIndexEntries removes the vector and lexical entries of p.
func deleteIndexEntries(tx *badger.Txn, p *core.Partner) error {
	if err := tx.Delete(makeVectorKey(p.Id)); err != nil {
		return err
	}
	for _, term := range distinctTerms(p.SearchableText) {
		if err := tx.Delete(makePostingKey(term, p.Id)); err != nil {
			return err
		}
	}
	return tx.Delete(makeDocLengthKey(p.Id))
}

// countKeys counts keys under prefix without fetching values.
func countKeys(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := tx.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}

func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
