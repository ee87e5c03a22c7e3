package search

import "github.com/poiesic/partners/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to trace intermediate steps of a query.
type SearchMonitor interface {
	Start(query string, strategy core.Strategy)
	AfterEmbedding(vector []float32)
	AfterRanking(matches []core.Match)
	FallbackUsed(reason error)
	AfterResolve(partners []*core.Partner)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.Strategy) {}
func (n *noopMonitor) AfterEmbedding(_ []float32)      {}
func (n *noopMonitor) AfterRanking(_ []core.Match)     {}
func (n *noopMonitor) FallbackUsed(_ error)            {}
func (n *noopMonitor) AfterResolve(_ []*core.Partner)  {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)   {}
