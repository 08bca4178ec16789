package models

import "errors"

// IL risk and exposure values accepted from upstream. Anything else is
// normalized to the empty string (unknown).
const (
	ILRiskYes = "yes"
	ILRiskNo  = "no"

	ExposureSingle = "single"
	ExposureMulti  = "multi"
)

// Prediction classes reported by the upstream yield model.
const (
	ClassStable   = "Stable"
	ClassStableUp = "Stable/Up"
	ClassDown     = "Down"
)

// Pool is a normalized yield pool record.
// APY and Predictions are nil when unknown; TVLUsd defaults to 0.
type Pool struct {
	Pool             string      `json:"pool"`
	PoolOld          string      `json:"pool_old,omitempty"`
	PoolAddress      string      `json:"poolAddress"`
	Project          string      `json:"project"`
	Chain            string      `json:"chain,omitempty"`
	Symbol           string      `json:"symbol,omitempty"`
	TVLUsd           float64     `json:"tvlUsd"`
	APY              *float64    `json:"apy"`
	ILRisk           string      `json:"ilRisk,omitempty"`
	Exposure         string      `json:"exposure,omitempty"`
	Stablecoin       bool        `json:"stablecoin"`
	UnderlyingTokens []string    `json:"underlyingTokens"`
	Predictions      *Prediction `json:"predictions"`
}

// Prediction is the upstream model's outlook for a pool's yield.
type Prediction struct {
	PredictedClass   string `json:"predictedClass"`
	BinnedConfidence int    `json:"binnedConfidence"`
}

// Validate checks the invariants normalization guarantees.
func (p *Pool) Validate() error {
	if p.ILRisk != "" && p.ILRisk != ILRiskYes && p.ILRisk != ILRiskNo {
		return errors.New("ilRisk must be yes, no or empty")
	}
	if p.Exposure != "" && p.Exposure != ExposureSingle && p.Exposure != ExposureMulti {
		return errors.New("exposure must be single, multi or empty")
	}
	if p.UnderlyingTokens == nil {
		return errors.New("underlying tokens must not be nil")
	}
	if p.PoolOld != "" && p.PoolAddress != p.PoolOld {
		return errors.New("pool address must prefer pool_old")
	}
	return nil
}
