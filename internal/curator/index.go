package curator

import (
	"strings"

	"github.com/rewired-gh/curator/internal/models"
)

// ProtocolIndex looks protocols up by case-insensitive name.
// When two protocols share a name the later one wins.
type ProtocolIndex struct {
	byName map[string]models.Protocol
}

// NewProtocolIndex indexes protocols by lower-cased name.
func NewProtocolIndex(protocols []models.Protocol) *ProtocolIndex {
	idx := &ProtocolIndex{byName: make(map[string]models.Protocol, len(protocols))}
	for _, p := range protocols {
		idx.byName[strings.ToLower(p.Name)] = p
	}
	return idx
}

// Lookup returns the protocol whose name matches project, ignoring case.
func (idx *ProtocolIndex) Lookup(project string) (models.Protocol, bool) {
	p, ok := idx.byName[strings.ToLower(project)]
	return p, ok
}

// Len returns the number of distinct names indexed.
func (idx *ProtocolIndex) Len() int {
	return len(idx.byName)
}

// groupByProject buckets pools by lower-cased project, keeping input order
// within each bucket.
func groupByProject(pools []models.Pool) map[string][]models.Pool {
	groups := make(map[string][]models.Pool)
	for _, pool := range pools {
		key := strings.ToLower(pool.Project)
		groups[key] = append(groups[key], pool)
	}
	return groups
}
