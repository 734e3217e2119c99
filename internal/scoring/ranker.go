package scoring

import (
	"sort"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Rank orders scores descending and assigns 1-based ranks. The order is a
// total order: ties break by net inflow descending, then symbol ascending,
// so two runs over the same inputs rank identically.
func Rank(scores []contracts.CompositeScore) []contracts.CompositeScore {
	ranked := make([]contracts.CompositeScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].NetInflow != ranked[j].NetInflow {
			return ranked[i].NetInflow > ranked[j].NetInflow
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
