package curator

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/curator/internal/models"
)

func aaveRaw() models.RawRecord {
	return models.RawRecord{
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
	}
}

func poolRaw(project, symbol string, tvl float64) models.RawRecord {
	return models.RawRecord{
		"pool":    fmt.Sprintf("%s-%s", project, symbol),
		"project": project,
		"symbol":  symbol,
		"tvlUsd":  tvl,
	}
}

// ─── ScoreProtocols ──────────────────────────────────────────────────────────

func TestScoreProtocols_AaveWithoutPools(t *testing.T) {
	scored, err := ScoreProtocols([]models.RawRecord{aaveRaw()}, nil)
	require.NoError(t, err)
	require.Len(t, scored, 1)

	aave := scored[0]
	assert.Equal(t, 3.86, aave.SecurityScore)
	assert.Equal(t, 2.86, aave.Breakdown[KeyTVL])
	assert.Equal(t, 0.5, aave.Breakdown[KeyMomentum])
	assert.Equal(t, 0.0, aave.Breakdown[KeyPoolCount])
	assert.Equal(t, 0.5, aave.Breakdown[KeyChainDiversity])
	assert.Equal(t, 0.0, aave.Breakdown[KeyPoolQuality])
	assert.Equal(t, 0, aave.PoolCount)
	assert.Equal(t, models.SafetyVeryLow, aave.SafetyLevel)
}

func TestScoreProtocols_EmptyDataset(t *testing.T) {
	_, err := ScoreProtocols(nil, []models.RawRecord{poolRaw("aave", "USDC", 1)})
	assert.True(t, errors.Is(err, ErrNoProtocols))
}

func TestScoreProtocols_AllRejectedIsNotAnError(t *testing.T) {
	scored, err := ScoreProtocols([]models.RawRecord{{"name": "NoTVL", "tvl": nil}}, nil)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestScoreProtocols_RunningClipAfterMomentum(t *testing.T) {
	raw := models.RawRecord{
		"name":      "Falling",
		"tvl":       0.0,
		"chains":    []any{"A", "B", "C", "D"},
		"change_1d": -20.0,
		"change_7d": -30.0,
	}

	scored, err := ScoreProtocols([]models.RawRecord{raw}, nil)
	require.NoError(t, err)

	// -1.5 momentum is clipped to 0 before chain diversity adds 1.0.
	assert.Equal(t, 1.0, scored[0].SecurityScore)
	assert.Equal(t, -1.5, scored[0].Breakdown[KeyMomentum])
}

func TestScoreProtocols_PoolCountAndQuality(t *testing.T) {
	protocols := []models.RawRecord{{"name": "Curve", "tvl": 0.0}}

	good := poolRaw("curve", "3CRV", 300)
	good["ilRisk"] = "no"
	good["exposure"] = "single"
	good["stablecoin"] = true
	good["predictions"] = map[string]any{"predictedClass": "Stable", "binnedConfidence": 2.0}

	bad := poolRaw("CURVE", "ETH-CRV", 100)
	bad["ilRisk"] = "yes"
	bad["predictions"] = map[string]any{"predictedClass": "Down", "binnedConfidence": 3.0}

	other := poolRaw("uniswap", "USDC-ETH", 1_000_000)

	scored, err := ScoreProtocols(protocols, []models.RawRecord{good, bad, other})
	require.NoError(t, err)
	require.Len(t, scored, 1)

	curve := scored[0]
	assert.Equal(t, 2, curve.PoolCount)
	assert.Equal(t, 0.65, curve.Breakdown[KeyPoolCount])
	// 0.75 * 1.7 + 0.25 * -1.2
	assert.InDelta(t, 0.975, curve.Breakdown[KeyPoolQuality], 0.006)
	assert.Equal(t, 1.63, curve.SecurityScore)
}

func TestScoreProtocols_ZeroTVLPoolsContributeNoQuality(t *testing.T) {
	pool := poolRaw("Aave", "USDC", 0)
	pool["stablecoin"] = true

	scored, err := ScoreProtocols([]models.RawRecord{aaveRaw()}, []models.RawRecord{pool})
	require.NoError(t, err)

	assert.Equal(t, 0.0, scored[0].Breakdown[KeyPoolQuality])
	assert.Equal(t, 0.5, scored[0].Breakdown[KeyPoolCount])
	assert.Equal(t, 4.36, scored[0].SecurityScore)
}

func TestScoreProtocols_RankedDescendingAndStable(t *testing.T) {
	raws := []models.RawRecord{
		{"id": "a", "name": "Small", "tvl": 1.0},
		{"id": "b", "name": "Big", "tvl": 10_000_000_000.0},
		{"id": "c", "name": "Twin", "tvl": 1.0},
	}

	scored, err := ScoreProtocols(raws, nil)
	require.NoError(t, err)
	require.Len(t, scored, 3)

	assert.Equal(t, "b", scored[0].ID)
	assert.Equal(t, "a", scored[1].ID)
	assert.Equal(t, "c", scored[2].ID)
	assert.Equal(t, scored[1].SecurityScore, scored[2].SecurityScore)
}

func TestScoreProtocols_ScoresBoundedAndRounded(t *testing.T) {
	var raws []models.RawRecord
	for i, tvl := range []float64{0, 1, 999, 1e6, 3.3e7, 1e9, 1e15} {
		raws = append(raws, models.RawRecord{
			"name":      fmt.Sprintf("p%d", i),
			"tvl":       tvl,
			"chains":    []any{"A", "B", "C", "D", "E", "F"},
			"change_1d": float64(i*7 - 20),
			"change_7d": float64(i*11 - 30),
		})
	}

	scored, err := ScoreProtocols(raws, nil)
	require.NoError(t, err)
	for _, p := range scored {
		assert.GreaterOrEqual(t, p.SecurityScore, MinScore)
		assert.LessOrEqual(t, p.SecurityScore, MaxScore)
		assert.Equal(t, round2(p.SecurityScore), p.SecurityScore)
	}
}

// ─── ScorePools ──────────────────────────────────────────────────────────────

func TestScorePools_MatchedPool(t *testing.T) {
	pool := poolRaw("aave", "USDC-ETH", 10_000_000)
	pool["apy"] = 5.0
	pool["ilRisk"] = "no"
	pool["exposure"] = "multi"
	pool["predictions"] = map[string]any{"predictedClass": "Stable", "binnedConfidence": 3.0}

	pools, summary, err := ScorePools([]models.RawRecord{aaveRaw()}, []models.RawRecord{pool}, nil, 0)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	got := pools[0]
	require.NotNil(t, got.ProtocolMeta)
	assert.Equal(t, "2269", got.ProtocolMeta.ID)
	assert.Equal(t, 1.5, got.Breakdown[KeyTVL])
	assert.Equal(t, 2.32, got.Breakdown[KeyProtocol])
	assert.Equal(t, 0.4, got.Breakdown[KeyRiskFlags])
	assert.Equal(t, 1.0, got.Breakdown[KeyPrediction])
	assert.Equal(t, 0.3, got.Breakdown[KeyAPY])
	assert.Equal(t, 5.52, got.SecurityScore)
	assert.Equal(t, models.SafetyLow, got.SafetyLevel)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Returned)
	assert.Equal(t, 1, summary.Protocols)
	assert.Nil(t, summary.Limit)
	assert.Empty(t, summary.Tokens)
}

func TestScorePools_ProtocolStrengthIsCapped(t *testing.T) {
	protocol := models.RawRecord{
		"id":        "1",
		"name":      "Giant",
		"tvl":       1e12,
		"change_1d": 1.0,
		"change_7d": 1.0,
		"chains":    []any{"Ethereum", "Arbitrum", "Optimism", "Base", "Polygon", "Avalanche"},
	}
	pools, _, err := ScorePools([]models.RawRecord{protocol}, []models.RawRecord{poolRaw("giant", "USDC", 10_000_000)}, nil, 0)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	assert.Equal(t, 2.5, pools[0].Breakdown[KeyProtocol])
	// 1.5 tvl + 2.5 strength
	assert.Equal(t, 4.0, pools[0].SecurityScore)
}

func TestWeightedPoolQuality_HugeTVLStaysFinite(t *testing.T) {
	pools := []models.Pool{
		{Project: "whale", TVLUsd: 1.7e308, ILRisk: models.ILRiskNo},
		{Project: "whale", TVLUsd: 1.7e308, ILRisk: models.ILRiskNo},
	}
	assert.InDelta(t, 0.5, weightedPoolQuality(pools), 1e-9)
}

func TestScorePools_UnmatchedPoolHasNoMeta(t *testing.T) {
	pool := poolRaw("mystery-dex", "FOO-BAR", 2_000_000)
	pool["apy"] = 12.0
	pool["stablecoin"] = true

	pools, summary, err := ScorePools([]models.RawRecord{aaveRaw()}, []models.RawRecord{pool}, nil, 0)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	assert.Nil(t, pools[0].ProtocolMeta)
	assert.Equal(t, 0.0, pools[0].Breakdown[KeyProtocol])
	// 0.5 + log10(2) + 0.3 stablecoin + 0.3 apy
	assert.Equal(t, 1.4, pools[0].SecurityScore)
	assert.Equal(t, 1, summary.Protocols)
}

func TestScorePools_NegativeTotalClipsToZero(t *testing.T) {
	pool := poolRaw("nobody", "DEGEN-ETH", 0)
	pool["apy"] = 400.0
	pool["ilRisk"] = "yes"
	pool["exposure"] = "multi"
	pool["predictions"] = map[string]any{"predictedClass": "Down", "binnedConfidence": 1.0}

	pools, _, err := ScorePools(nil, []models.RawRecord{pool}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pools[0].SecurityScore)
}

func TestScorePools_EmptyDataset(t *testing.T) {
	_, _, err := ScorePools([]models.RawRecord{aaveRaw()}, nil, nil, 10)
	assert.True(t, errors.Is(err, ErrNoPools))
}

func TestScorePools_TokenFiltersAreConjunctive(t *testing.T) {
	raws := []models.RawRecord{
		poolRaw("aave", "USDC-ETH", 1),
		poolRaw("aave", "DAI-ETH", 1),
		poolRaw("aave", "USDC", 1),
	}

	pools, summary, err := ScorePools(nil, raws, []string{"USDC", " eth "}, 0)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "USDC-ETH", pools[0].Symbol)
	assert.Equal(t, []string{"usdc", "eth"}, summary.Tokens)
	assert.Equal(t, 1, summary.Total)
}

func TestScorePools_LimitAndSummary(t *testing.T) {
	protocols := []models.RawRecord{
		aaveRaw(),
		{"id": "3155", "name": "Uniswap", "tvl": 4_100_000_000.0},
	}
	raws := []models.RawRecord{
		poolRaw("aave", "USDC", 50_000_000),
		poolRaw("uniswap", "USDC-ETH", 40_000_000),
		poolRaw("aave", "DAI", 1_000_000),
		poolRaw("curve", "3CRV", 20_000_000),
	}

	pools, summary, err := ScorePools(protocols, raws, nil, 2)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Returned)
	require.NotNil(t, summary.Limit)
	assert.Equal(t, 2, *summary.Limit)
	assert.Equal(t, 2, summary.Protocols)
}

func TestScorePools_InvalidLimitsMeanNoLimit(t *testing.T) {
	raws := []models.RawRecord{
		poolRaw("a", "X", 1), poolRaw("b", "Y", 2), poolRaw("c", "Z", 3),
	}
	all, _, err := ScorePools(nil, raws, nil, 0)
	require.NoError(t, err)

	for _, raw := range []string{"0", "-5", "abc", "", "2.5"} {
		t.Run(raw, func(t *testing.T) {
			got, summary, err := ScorePools(nil, raws, nil, ParseLimit(raw))
			require.NoError(t, err)
			assert.Equal(t, all, got)
			assert.Nil(t, summary.Limit)
		})
	}

	got, _, err := ScorePools(nil, raws, nil, -5)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestScorePools_TiesKeepDatasetOrder(t *testing.T) {
	var raws []models.RawRecord
	for i := 0; i < 20; i++ {
		r := poolRaw("same", "USDC", 5_000_000)
		r["pool"] = fmt.Sprintf("pool-%02d", i)
		raws = append(raws, r)
	}

	pools, _, err := ScorePools(nil, raws, nil, 0)
	require.NoError(t, err)
	for i, p := range pools {
		assert.Equal(t, fmt.Sprintf("pool-%02d", i), p.Pool.Pool)
	}
}

func TestScorePools_DoesNotAliasInput(t *testing.T) {
	tokens := []any{"0xA", "0xB"}
	raw := poolRaw("aave", "USDC", 1)
	raw["underlyingTokens"] = tokens

	protocol := aaveRaw()
	pools, _, err := ScorePools([]models.RawRecord{protocol}, []models.RawRecord{raw}, nil, 0)
	require.NoError(t, err)

	pools[0].UnderlyingTokens[0] = "mutated"
	pools[0].ProtocolMeta.Chains[0] = "mutated"

	assert.Equal(t, "0xA", tokens[0])
	assert.Equal(t, "Ethereum", protocol["chains"].([]any)[0])

	again, _, err := ScorePools([]models.RawRecord{protocol}, []models.RawRecord{raw}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "0xA", again[0].UnderlyingTokens[0])
	assert.Equal(t, "Ethereum", again[0].ProtocolMeta.Chains[0])
}

func TestScorePools_ConcurrentCalls(t *testing.T) {
	protocols := []models.RawRecord{aaveRaw()}
	raws := []models.RawRecord{poolRaw("aave", "USDC-ETH", 10_000_000), poolRaw("x", "DAI", 1)}

	want, _, err := ScorePools(protocols, raws, nil, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]models.ScoredPool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = ScorePools(protocols, raws, []string{}, 0)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// ─── Observer ────────────────────────────────────────────────────────────────

func TestEngine_ObserverSeesEveryStage(t *testing.T) {
	type call struct {
		stage   string
		in, out int
	}
	var calls []call
	engine := New(WithObserver(ObserverFunc(func(stage string, in, out int) {
		calls = append(calls, call{stage, in, out})
	})))

	protocols := []models.RawRecord{aaveRaw(), {"name": "NoTVL"}}
	raws := []models.RawRecord{poolRaw("aave", "USDC", 1), poolRaw("aave", "DAI", 1), poolRaw("aave", "USDC-DAI", 1)}

	_, _, err := engine.ScorePools(protocols, raws, []string{"usdc"}, 1)
	require.NoError(t, err)

	assert.Equal(t, []call{
		{StageNormalizeProtocols, 2, 1},
		{StageIndexProtocols, 1, 1},
		{StageNormalizePools, 3, 3},
		{StageFilterTokens, 3, 2},
		{StageScore, 2, 2},
		{StagePaginate, 2, 1},
	}, calls)
}
