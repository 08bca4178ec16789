package models

// Safety levels derived from a security score.
const (
	SafetyHigh    = "High"
	SafetyMedium  = "Medium"
	SafetyLow     = "Low"
	SafetyVeryLow = "Very Low"
)

// ScoredProtocol is a protocol with its security score and sub-score breakdown.
type ScoredProtocol struct {
	Protocol
	SecurityScore float64            `json:"securityScore"`
	SafetyLevel   string             `json:"safetyLevel"`
	PoolCount     int                `json:"poolCount"`
	Breakdown     map[string]float64 `json:"breakdown"`
}

// ScoredPool is a pool with its security score. ProtocolMeta is nil when no
// protocol matched the pool's project.
type ScoredPool struct {
	Pool
	SecurityScore float64            `json:"securityScore"`
	SafetyLevel   string             `json:"safetyLevel"`
	ProtocolMeta  *ProtocolMeta      `json:"protocolMeta"`
	Breakdown     map[string]float64 `json:"breakdown"`
}

// ProtocolKey identifies the protocol a scored pool belongs to: the matched
// protocol id, or the raw project when unmatched or the id is empty.
func (p *ScoredPool) ProtocolKey() string {
	if p.ProtocolMeta != nil && p.ProtocolMeta.ID != "" {
		return p.ProtocolMeta.ID
	}
	return p.Project
}

// Summary describes a ranked pool listing.
// Limit is nil when no limit was applied.
type Summary struct {
	Total     int      `json:"total"`
	Returned  int      `json:"returned"`
	Protocols int      `json:"protocols"`
	Limit     *int     `json:"limit"`
	Tokens    []string `json:"tokens"`
}
