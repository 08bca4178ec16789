package datasource

import "github.com/rewired-gh/curator/internal/models"

// StaticDefaults serves a small built-in market so the service can answer
// when upstream and the snapshot are both unavailable.
type StaticDefaults struct{}

// Defaults returns fresh copies of the built-in protocols and pools.
func (StaticDefaults) Defaults() (protocols, pools []models.RawRecord) {
	return DefaultProtocols(), DefaultPools()
}

// DefaultProtocols returns the built-in protocol records.
func DefaultProtocols() []models.RawRecord {
	return []models.RawRecord{
		{
			"id":       "2269",
			"name":     "Aave",
			"symbol":   "AAVE",
			"category": "Lending",
			"chains":   []any{"Ethereum", "Polygon"},
			"tvl":      5_200_000_000.0,
			"chainTvls": map[string]any{
				"Ethereum": 3_200_000_000.0,
				"Polygon":  2_000_000_000.0,
			},
			"change_1d": 2.1,
			"change_7d": -5.3,
		},
		{
			"id":       "3155",
			"name":     "Uniswap",
			"symbol":   "UNI",
			"category": "DEX",
			"chains":   []any{"Ethereum", "Arbitrum", "Base"},
			"tvl":      4_100_000_000.0,
			"chainTvls": map[string]any{
				"Ethereum": 3_000_000_000.0,
				"Arbitrum": 800_000_000.0,
				"Base":     300_000_000.0,
			},
			"change_1d": -0.8,
			"change_7d": 4.6,
		},
		{
			"id":       "1671",
			"name":     "MakerDAO",
			"symbol":   "MKR",
			"category": "CDP",
			"chains":   []any{"Ethereum"},
			"tvl":      7_400_000_000.0,
			"chainTvls": map[string]any{
				"Ethereum": 7_400_000_000.0,
			},
			"change_1d": 1.4,
			"change_7d": 3.2,
		},
	}
}

// DefaultPools returns a handful of pools attached to the built-in protocols.
func DefaultPools() []models.RawRecord {
	return []models.RawRecord{
		{
			"pool":       "default-aave-usdc",
			"project":    "Aave",
			"chain":      "Ethereum",
			"symbol":     "USDC",
			"tvlUsd":     1_200_000_000.0,
			"apy":        4.2,
			"ilRisk":     "no",
			"exposure":   "single",
			"stablecoin": true,
			"predictions": map[string]any{
				"predictedClass":   "Stable/Up",
				"binnedConfidence": 3.0,
			},
		},
		{
			"pool":       "default-aave-weth",
			"project":    "Aave",
			"chain":      "Polygon",
			"symbol":     "WETH",
			"tvlUsd":     350_000_000.0,
			"apy":        1.9,
			"ilRisk":     "no",
			"exposure":   "single",
			"stablecoin": false,
		},
		{
			"pool":       "default-uniswap-usdc-weth",
			"project":    "Uniswap",
			"chain":      "Ethereum",
			"symbol":     "USDC-WETH",
			"tvlUsd":     280_000_000.0,
			"apy":        12.5,
			"ilRisk":     "yes",
			"exposure":   "multi",
			"stablecoin": false,
			"predictions": map[string]any{
				"predictedClass":   "Down",
				"binnedConfidence": 2.0,
			},
		},
		{
			"pool":       "default-makerdao-dai",
			"project":    "MakerDAO",
			"chain":      "Ethereum",
			"symbol":     "DAI",
			"tvlUsd":     2_500_000_000.0,
			"apy":        5.0,
			"ilRisk":     "no",
			"exposure":   "single",
			"stablecoin": true,
		},
	}
}
