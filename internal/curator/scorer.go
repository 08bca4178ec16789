package curator

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/curator/internal/models"
)

// Score bounds shared by both scorers.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Breakdown keys.
const (
	KeyTVL            = "tvl"
	KeyMomentum       = "momentum"
	KeyPoolCount      = "poolCount"
	KeyChainDiversity = "chainDiversity"
	KeyPoolQuality    = "poolQuality"
	KeyProtocol       = "protocol"
	KeyRiskFlags      = "riskFlags"
	KeyPrediction     = "prediction"
	KeyAPY            = "apy"
)

const (
	million = 1_000_000.0
	billion = 1_000_000_000.0
)

// predictionBonus maps binned confidence to the bonus for a stable outlook.
var predictionBonus = map[int]float64{3: 1.0, 2: 0.7, 1: 0.4}

const predictionPenalty = -0.7

// ScoreProtocol scores a protocol against the full pool collection; pools
// whose project matches the protocol name (ignoring case) count towards it.
func ScoreProtocol(p models.Protocol, pools []models.Pool) models.ScoredProtocol {
	var matched []models.Pool
	name := strings.ToLower(p.Name)
	for _, pool := range pools {
		if strings.ToLower(pool.Project) == name {
			matched = append(matched, pool)
		}
	}
	return scoreProtocol(p, matched)
}

func scoreProtocol(p models.Protocol, matched []models.Pool) models.ScoredProtocol {
	breakdown := make(map[string]float64, 5)
	total := 0.0

	tvl := 0.0
	if p.TVL > 0 {
		tvl = math.Min(3.0, 1.0+math.Log10(math.Max(1, p.TVL/million))/2)
	}
	total += tvl
	breakdown[KeyTVL] = round2(tvl)

	momentum := 0.0
	if p.Change1d != nil {
		switch {
		case *p.Change1d >= 0:
			momentum += 0.5
		case *p.Change1d < -10:
			momentum -= 0.5
		}
	}
	if p.Change7d != nil {
		switch {
		case *p.Change7d >= 0:
			momentum += 1.0
		case *p.Change7d < -20:
			momentum -= 1.0
		}
	}
	total = clip(total + momentum)
	breakdown[KeyMomentum] = round2(momentum)

	poolCount := 0.0
	if n := len(matched); n > 0 {
		poolCount = math.Min(2.0, 0.5+math.Log10(math.Max(1, float64(n)))*0.5)
	}
	total += poolCount
	breakdown[KeyPoolCount] = round2(poolCount)

	diversity := 0.0
	if n := len(p.Chains); n > 1 {
		diversity = math.Min(1.0, float64(n)*0.25)
	}
	total += diversity
	breakdown[KeyChainDiversity] = round2(diversity)

	quality := math.Min(2.5, weightedPoolQuality(matched))
	total += quality
	breakdown[KeyPoolQuality] = round2(quality)

	score := round2(clip(total))
	return models.ScoredProtocol{
		Protocol:      cloneProtocol(p),
		SecurityScore: score,
		SafetyLevel:   SafetyLevel(score),
		PoolCount:     len(matched),
		Breakdown:     breakdown,
	}
}

// weightedPoolQuality is the TVL-weighted mean of per-pool quality. Pools
// contribute nothing when the matched TVL sums to zero. Weights are taken
// relative to the largest TVL so the sum stays finite.
func weightedPoolQuality(pools []models.Pool) float64 {
	maxTVL := 0.0
	for _, pool := range pools {
		maxTVL = math.Max(maxTVL, pool.TVLUsd)
	}
	if maxTVL <= 0 {
		return 0
	}
	totalWeight := 0.0
	for _, pool := range pools {
		totalWeight += pool.TVLUsd / maxTVL
	}
	if totalWeight <= 0 {
		return 0
	}
	weighted := 0.0
	for _, pool := range pools {
		weighted += pool.TVLUsd / maxTVL / totalWeight * poolQuality(pool)
	}
	return weighted
}

// poolQuality combines the pool-level signals used by the protocol scorer.
// Multi-asset exposure carries no quality penalty here.
func poolQuality(pool models.Pool) float64 {
	q := predictionAdjustment(pool.Predictions)
	q += ilRiskAdjustment(pool.ILRisk)
	if pool.Exposure == models.ExposureSingle {
		q += 0.2
	}
	if pool.Stablecoin {
		q += 0.3
	}
	return q
}

// ScorePool scores a pool, using protocol-level signals when protocol is non-nil.
func ScorePool(pool models.Pool, protocol *models.Protocol) models.ScoredPool {
	breakdown := make(map[string]float64, 5)
	total := 0.0

	tvl := 0.0
	if pool.TVLUsd > 0 {
		tvl = math.Min(3.0, 0.5+math.Log10(math.Max(1, pool.TVLUsd/million)))
	}
	total += tvl
	breakdown[KeyTVL] = round2(tvl)

	var meta *models.ProtocolMeta
	strength := 0.0
	if protocol != nil {
		strength = protocolStrength(*protocol)
		meta = protocol.Meta()
	}
	total += strength
	breakdown[KeyProtocol] = round2(strength)

	flags := ilRiskAdjustment(pool.ILRisk)
	if pool.Stablecoin {
		flags += 0.3
	}
	switch pool.Exposure {
	case models.ExposureSingle:
		flags += 0.2
	case models.ExposureMulti:
		flags -= 0.1
	}
	total += flags
	breakdown[KeyRiskFlags] = round2(flags)

	prediction := predictionAdjustment(pool.Predictions)
	total += prediction
	breakdown[KeyPrediction] = round2(prediction)

	apy := 0.0
	if pool.APY != nil {
		switch a := *pool.APY; {
		case a >= 0 && a <= 20:
			apy = 0.3
		case a > 50:
			apy = -0.3
		}
	}
	total += apy
	breakdown[KeyAPY] = round2(apy)

	score := round2(clip(total))
	return models.ScoredPool{
		Pool:          clonePool(pool),
		SecurityScore: score,
		SafetyLevel:   SafetyLevel(score),
		ProtocolMeta:  meta,
		Breakdown:     breakdown,
	}
}

// protocolStrengthCap bounds the parent protocol's total contribution.
const protocolStrengthCap = 2.5

// protocolStrength is the parent protocol's contribution to a pool score,
// capped at protocolStrengthCap.
func protocolStrength(p models.Protocol) float64 {
	s := 0.0
	if p.TVL > 0 {
		s += math.Min(2.0, 1.0+math.Log10(math.Max(1, p.TVL/billion)))
	}
	if p.Change1d != nil {
		switch {
		case *p.Change1d >= 0:
			s += 0.4
		case *p.Change1d < -10:
			s -= 0.4
		}
	}
	if p.Change7d != nil {
		switch {
		case *p.Change7d >= 0:
			s += 0.6
		case *p.Change7d < -20:
			s -= 0.6
		}
	}
	if n := len(p.Chains); n > 1 {
		s += math.Min(0.5, float64(n)*0.1)
	}
	return math.Min(protocolStrengthCap, s)
}

func ilRiskAdjustment(risk string) float64 {
	switch risk {
	case models.ILRiskNo:
		return 0.5
	case models.ILRiskYes:
		return -0.5
	}
	return 0
}

func predictionAdjustment(pred *models.Prediction) float64 {
	if pred == nil {
		return 0
	}
	switch pred.PredictedClass {
	case models.ClassStable, models.ClassStableUp:
		return predictionBonus[pred.BinnedConfidence]
	case models.ClassDown:
		return predictionPenalty
	}
	return 0
}

// SafetyLevel buckets a 0–10 score on the 0–100 scale used for display.
func SafetyLevel(score float64) string {
	pct := score * 10
	switch {
	case pct >= 80:
		return models.SafetyHigh
	case pct >= 60:
		return models.SafetyMedium
	case pct >= 40:
		return models.SafetyLow
	}
	return models.SafetyVeryLow
}

func clip(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func cloneProtocol(p models.Protocol) models.Protocol {
	p.Chains = append([]string{}, p.Chains...)
	chainTVLs := make(map[string]float64, len(p.ChainTVLs))
	for k, v := range p.ChainTVLs {
		chainTVLs[k] = v
	}
	p.ChainTVLs = chainTVLs
	if p.Change1d != nil {
		v := *p.Change1d
		p.Change1d = &v
	}
	if p.Change7d != nil {
		v := *p.Change7d
		p.Change7d = &v
	}
	return p
}

func clonePool(p models.Pool) models.Pool {
	p.UnderlyingTokens = append([]string{}, p.UnderlyingTokens...)
	if p.APY != nil {
		v := *p.APY
		p.APY = &v
	}
	if p.Predictions != nil {
		pred := *p.Predictions
		p.Predictions = &pred
	}
	return p
}
