// Package models defines the domain entities of the curator service.
// Protocols and pools are normalized once from upstream records and then
// treated as immutable values for the rest of a scoring pass.
//
// Terminology (matching DefiLlama's own naming):
//   - Protocol: a DeFi application aggregated across chains.
//   - Pool: a yield-bearing position belonging to one protocol (its "project").
package models

import (
	"errors"
	"fmt"
	"strings"
)

// BorrowedSuffix marks chain TVL entries that report borrowed liquidity.
const BorrowedSuffix = "-borrowed"

// Protocol is a normalized protocol record.
// Change1d and Change7d are nil when the upstream value is unknown, which is
// distinct from a reported change of zero.
type Protocol struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Symbol    string             `json:"symbol"`
	Category  string             `json:"category"`
	Chains    []string           `json:"chains"`
	TVL       float64            `json:"tvl"`
	ChainTVLs map[string]float64 `json:"chainTvls"`
	Change1d  *float64           `json:"change_1d"`
	Change7d  *float64           `json:"change_7d"`
}

// Validate checks the invariants normalization guarantees.
func (p *Protocol) Validate() error {
	if p.Symbol == "" {
		return errors.New("protocol symbol must not be empty")
	}
	for chain, tvl := range p.ChainTVLs {
		if strings.HasSuffix(chain, BorrowedSuffix) {
			return fmt.Errorf("chain tvl %q is borrowed liquidity", chain)
		}
		if tvl <= 0 {
			return fmt.Errorf("chain tvl %q must be positive", chain)
		}
	}
	return nil
}

// Meta returns the snapshot of protocol fields attached to scored pools.
func (p *Protocol) Meta() *ProtocolMeta {
	return &ProtocolMeta{
		ID:       p.ID,
		Name:     p.Name,
		Symbol:   p.Symbol,
		Category: p.Category,
		Chains:   append([]string{}, p.Chains...),
		TVL:      p.TVL,
		Change1d: copyFloat(p.Change1d),
		Change7d: copyFloat(p.Change7d),
	}
}

// ProtocolMeta is the subset of a Protocol exposed alongside a scored pool.
type ProtocolMeta struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Category string   `json:"category"`
	Chains   []string `json:"chains"`
	TVL      float64  `json:"tvl"`
	Change1d *float64 `json:"change_1d"`
	Change7d *float64 `json:"change_7d"`
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
