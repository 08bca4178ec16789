package curator

import (
	"strings"

	"github.com/rewired-gh/curator/internal/models"
)

func isSymbolSeparator(r rune) bool {
	return r == '-' || r == '_' || r == '/' || r == ' '
}

// PoolTokens returns the lower-cased token set of a pool: its symbol split on
// runs of '-', '_', '/' or ' ', plus its underlying tokens. A symbol that
// yields no parts is used whole.
func PoolTokens(pool models.Pool) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, part := range strings.FieldsFunc(pool.Symbol, isSymbolSeparator) {
		tokens[strings.ToLower(part)] = struct{}{}
	}
	for _, token := range pool.UnderlyingTokens {
		if token == "" {
			continue
		}
		tokens[strings.ToLower(token)] = struct{}{}
	}
	if len(tokens) == 0 && pool.Symbol != "" {
		tokens[strings.ToLower(pool.Symbol)] = struct{}{}
	}
	return tokens
}

// MatchesTokens reports whether every filter token is present in the pool's
// token set. Filters are expected lower-cased; no filters matches everything.
func MatchesTokens(pool models.Pool, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	tokens := PoolTokens(pool)
	for _, filter := range filters {
		if _, ok := tokens[filter]; !ok {
			return false
		}
	}
	return true
}

// FilterPools keeps the pools matching all filters, preserving order.
func FilterPools(pools []models.Pool, filters []string) []models.Pool {
	out := make([]models.Pool, 0, len(pools))
	for _, pool := range pools {
		if MatchesTokens(pool, filters) {
			out = append(out, pool)
		}
	}
	return out
}

// ParseTokenFilters splits a comma separated query value into lower-cased,
// trimmed, non-empty filter tokens. The result is never nil.
func ParseTokenFilters(raw string) []string {
	filters := []string{}
	for _, part := range strings.Split(raw, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token != "" {
			filters = append(filters, token)
		}
	}
	return filters
}

// normalizeFilters lower-cases caller-supplied filters and drops empties.
func normalizeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
