package curator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/curator/internal/models"
)

// rankByScore returns a copy of items sorted by score descending. The sort is
// stable so equal scores keep their input order.
func rankByScore[T any](items []T, score func(*T) float64) []T {
	ranked := make([]T, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(&ranked[i]) > score(&ranked[j])
	})
	return ranked
}

// RankProtocols orders scored protocols by security score, highest first.
func RankProtocols(protocols []models.ScoredProtocol) []models.ScoredProtocol {
	return rankByScore(protocols, func(p *models.ScoredProtocol) float64 { return p.SecurityScore })
}

// RankPools orders scored pools by security score, highest first.
func RankPools(pools []models.ScoredPool) []models.ScoredPool {
	return rankByScore(pools, func(p *models.ScoredPool) float64 { return p.SecurityScore })
}

// Paginate truncates items to limit. A non-positive limit returns everything.
func Paginate[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}

// ParseLimit parses a limit query value. Empty, non-numeric and non-positive
// values mean "no limit" and yield 0.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Summarize describes a ranked pool listing. total is the count before
// truncation; protocols counts distinct protocols within the returned pools.
func Summarize(returned []models.ScoredPool, total, limit int, tokens []string) models.Summary {
	seen := make(map[string]struct{}, len(returned))
	for i := range returned {
		seen[returned[i].ProtocolKey()] = struct{}{}
	}

	summary := models.Summary{
		Total:     total,
		Returned:  len(returned),
		Protocols: len(seen),
		Tokens:    append([]string{}, tokens...),
	}
	if limit > 0 {
		l := limit
		summary.Limit = &l
	}
	return summary
}
