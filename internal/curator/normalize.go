package curator

import (
	"math"
	"strings"

	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
)

const defaultSymbol = "-"

// NormalizeProtocol converts an upstream protocol record into a Protocol.
// It reports false when the record has no TVL; a TVL of zero is kept and a
// negative TVL is clamped to zero.
func NormalizeProtocol(raw models.RawRecord) (models.Protocol, bool) {
	tvl, ok := raw.Float("tvl")
	if !ok {
		return models.Protocol{}, false
	}
	tvl = math.Max(0, tvl)

	p := models.Protocol{
		ID:        raw.StringOr("id", ""),
		Name:      raw.StringOr("name", ""),
		Symbol:    raw.StringOr("symbol", defaultSymbol),
		Category:  raw.StringOr("category", ""),
		Chains:    raw.Strings("chains"),
		TVL:       tvl,
		ChainTVLs: make(map[string]float64),
	}
	if p.Symbol == "" {
		p.Symbol = defaultSymbol
	}

	if chainTVLs, ok := raw.Record("chainTvls"); ok {
		for chain := range chainTVLs {
			if strings.HasSuffix(chain, models.BorrowedSuffix) {
				continue
			}
			v, ok := chainTVLs.Float(chain)
			if !ok || v <= 0 {
				continue
			}
			p.ChainTVLs[chain] = v
		}
	}

	if v, ok := raw.Float("change_1d"); ok {
		p.Change1d = &v
	}
	if v, ok := raw.Float("change_7d"); ok {
		p.Change7d = &v
	}
	return p, true
}

// NormalizeProtocols normalizes a collection in order, dropping records
// without TVL.
func NormalizeProtocols(raws []models.RawRecord) []models.Protocol {
	out := make([]models.Protocol, 0, len(raws))
	for _, raw := range raws {
		p, ok := NormalizeProtocol(raw)
		if !ok {
			continue
		}
		if err := p.Validate(); err != nil {
			logger.Warn("Protocol %q normalized with invalid fields: %v", p.Name, err)
		}
		out = append(out, p)
	}
	return out
}

// NormalizePool converts an upstream pool record into a Pool. Pools are never
// rejected; missing fields take their neutral defaults.
func NormalizePool(raw models.RawRecord) models.Pool {
	p := models.Pool{
		Pool:             raw.StringOr("pool", ""),
		PoolOld:          raw.StringOr("pool_old", ""),
		Project:          raw.StringOr("project", ""),
		Chain:            raw.StringOr("chain", ""),
		Symbol:           raw.StringOr("symbol", ""),
		Stablecoin:       raw.Bool("stablecoin"),
		UnderlyingTokens: raw.Strings("underlyingTokens"),
	}

	p.PoolAddress = p.Pool
	if p.PoolOld != "" {
		p.PoolAddress = p.PoolOld
	}

	if tvl, ok := raw.Float("tvlUsd"); ok {
		p.TVLUsd = math.Max(0, tvl)
	}
	if apy, ok := raw.Float("apy"); ok {
		p.APY = &apy
	}

	switch risk := strings.ToLower(raw.StringOr("ilRisk", "")); risk {
	case models.ILRiskYes, models.ILRiskNo:
		p.ILRisk = risk
	}
	switch exposure := strings.ToLower(raw.StringOr("exposure", "")); exposure {
	case models.ExposureSingle, models.ExposureMulti:
		p.Exposure = exposure
	}

	if pred, ok := raw.Record("predictions"); ok {
		prediction := &models.Prediction{
			PredictedClass: pred.StringOr("predictedClass", ""),
		}
		// Fractional confidences are not a known bin and earn no bonus.
		if conf, ok := pred.Float("binnedConfidence"); ok && conf == math.Trunc(conf) {
			prediction.BinnedConfidence = int(conf)
		}
		p.Predictions = prediction
	}
	return p
}

// NormalizePools normalizes a collection in order.
func NormalizePools(raws []models.RawRecord) []models.Pool {
	out := make([]models.Pool, 0, len(raws))
	for _, raw := range raws {
		p := NormalizePool(raw)
		if err := p.Validate(); err != nil {
			logger.Warn("Pool %q normalized with invalid fields: %v", p.Pool, err)
		}
		out = append(out, p)
	}
	return out
}
