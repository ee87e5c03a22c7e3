package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
)

// Searcher recommends partners using semantic, keyword or fulltext ranking.
type Searcher struct {
	store       storage.Store
	embedder    ai.Embedder
	logger      *slog.Logger
	maintenance sync.Once
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.Store, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: provider.Embedder(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search ranks partners for query with the given strategy.
// Returns up to topN results, best first.
func (s *Searcher) Search(ctx context.Context, query string, strategy core.Strategy, topN int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, strategy, topN, nil)
}

// SearchWithMonitor is Search with callbacks at each stage of the query.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, strategy core.Strategy, topN int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateQuery(query, topN); err != nil {
		return nil, err
	}
	if !slices.Contains(core.Strategies, strategy) {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrValidation, core.ErrUnknownStrategy, strategy)
	}

	monitor.Start(query, strategy)

	var (
		results []*core.SearchResult
		err     error
	)
	switch strategy {
	case core.StrategySemantic:
		results, err = s.semantic(ctx, query, topN, monitor)
	case core.StrategyKeyword:
		results, err = s.keyword(ctx, query, topN, monitor)
	case core.StrategyFullText:
		results, err = s.fullText(ctx, query, topN, monitor)
	}
	if err != nil {
		return nil, err
	}

	monitor.Finish(results)
	return results, nil
}

// Recommend runs req with strategy and echoes the query in the response.
func (s *Searcher) Recommend(ctx context.Context, strategy core.Strategy, req core.SearchRequest) (*core.SearchResponse, error) {
	results, err := s.Search(ctx, req.Query, strategy, req.TopN)
	if err != nil {
		return nil, err
	}
	return &core.SearchResponse{Query: req.Query, Results: results}, nil
}

// Semantic recommends partners by embedding similarity.
func (s *Searcher) Semantic(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	return s.Recommend(ctx, core.StrategySemantic, req)
}

// Keyword recommends partners by weighted keyword matches.
func (s *Searcher) Keyword(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	return s.Recommend(ctx, core.StrategyKeyword, req)
}

// FullText recommends partners by weighted lexical relevance.
func (s *Searcher) FullText(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	return s.Recommend(ctx, core.StrategyFullText, req)
}

// ensureIndexes builds the search indexes once per Searcher. Failures are
// logged; searches keep working without the indexes.
func (s *Searcher) ensureIndexes(ctx context.Context) {
	s.maintenance.Do(func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.store.EnsureVectorIndex(ctx); err != nil {
			s.logger.Warn("vector index maintenance failed", "err", err)
		}
		if err := s.store.EnsureLexicalIndex(ctx); err != nil {
			s.logger.Warn("lexical index maintenance failed", "err", err)
		}
	})
}

func (s *Searcher) semantic(ctx context.Context, query string, topN int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*core.SearchResult{}, nil
	}
	s.ensureIndexes(ctx)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("%w: embedding query: %w", core.ErrDependencyUnavailable, err)
	}
	if err := core.ValidateEmbedding(embedding, s.embedder.Dimensions()); err != nil {
		return nil, err
	}
	monitor.AfterEmbedding(embedding)

	matches, err := s.store.NearestPartners(ctx, embedding, topN)
	if err != nil {
		s.logger.Error("error querying for similar partners", "err", err)
		return nil, err
	}
	monitor.AfterRanking(matches)

	return s.resolve(ctx, matches, monitor)
}

func (s *Searcher) keyword(ctx context.Context, query string, topN int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return []*core.SearchResult{}, nil
	}

	candidates, err := s.store.FindByKeywords(ctx, keywords, keywordFields, 0)
	if err != nil {
		s.logger.Error("error finding keyword candidates", "err", err)
		return nil, err
	}
	monitor.AfterResolve(candidates)

	results := make([]*core.SearchResult, 0, len(candidates))
	for _, p := range candidates {
		if score := KeywordScore(p, keywords); score > 0 {
			results = append(results, &core.SearchResult{Partner: p, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Partner.Id < results[j].Partner.Id
	})
	if len(results) > topN {
		results = results[:topN]
	}

	matches := make([]core.Match, len(results))
	for i, r := range results {
		matches[i] = core.Match{Id: r.Partner.Id, Score: r.Score}
	}
	monitor.AfterRanking(matches)
	return results, nil
}

func (s *Searcher) fullText(ctx context.Context, query string, topN int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	terms := lexical.PrepareQuery(query)
	if len(terms) == 0 {
		return []*core.SearchResult{}, nil
	}
	s.ensureIndexes(ctx)

	matches, err := s.store.RankLexical(ctx, terms, topN)
	if errors.Is(err, storage.ErrIndexUnavailable) {
		s.logger.Warn("lexical index unavailable, using substring fallback", "query", query)
		monitor.FallbackUsed(err)
		return s.fallback(ctx, query, topN, monitor)
	}
	if err != nil {
		s.logger.Error("error ranking partners", "err", err)
		return nil, err
	}
	monitor.AfterRanking(matches)

	return s.resolve(ctx, matches, monitor)
}

// fallback matches the raw keywords against a few fields, scoring every
// hit the same.
func (s *Searcher) fallback(ctx context.Context, query string, topN int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return []*core.SearchResult{}, nil
	}
	partners, err := s.store.FindByKeywords(ctx, keywords, fallbackFields, topN)
	if err != nil {
		s.logger.Error("error in fulltext fallback", "err", err)
		return nil, err
	}
	monitor.AfterResolve(partners)

	results := make([]*core.SearchResult, 0, len(partners))
	for _, p := range partners {
		results = append(results, &core.SearchResult{Partner: p, Score: fallbackScore})
	}
	return results, nil
}

// resolve loads the matched partners in one call and keeps the ranking
// order. Partners deleted since ranking are dropped.
func (s *Searcher) resolve(ctx context.Context, matches []core.Match, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if len(matches) == 0 {
		return []*core.SearchResult{}, nil
	}

	ids := make([]core.ID, len(matches))
	for i, m := range matches {
		ids[i] = m.Id
	}
	partners, err := s.store.GetPartners(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving partners", "partnerCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterResolve(partners)

	byID := make(map[core.ID]*core.Partner, len(partners))
	for _, p := range partners {
		if p != nil {
			byID[p.Id] = p
		}
	}

	results := make([]*core.SearchResult, 0, len(matches))
	for _, m := range matches {
		p, ok := byID[m.Id]
		if !ok {
			s.logger.Debug("ranked partner no longer exists", "id", m.Id)
			continue
		}
		results = append(results, &core.SearchResult{Partner: p, Score: m.Score})
	}
	return results, nil
}
