// Package curator joins protocol and pool datasets and ranks them by a
// bounded security score.
//
// Both scorers are weighted sums of independently bounded sub-scores, clipped
// to [0, 10] and rounded to two decimals:
//
//	protocol = tvl + momentum (clipped) + pool count + chain diversity + pool quality
//	pool     = pool tvl + protocol strength + risk flags + prediction + apy sanity
//
// Pools join to protocols by case-insensitive exact name match. Ranking is a
// stable descending sort, so records with equal scores keep dataset order.
//
// Everything here is pure and request scoped: callers hand in decoded upstream
// records and get back freshly allocated results. An Engine holds no mutable
// state and is safe for concurrent use.
package curator

import (
	"errors"
	"strings"

	"github.com/rewired-gh/curator/internal/models"
)

var (
	// ErrNoProtocols means the upstream protocol dataset was empty.
	ErrNoProtocols = errors.New("no protocols available")
	// ErrNoPools means the upstream pool dataset was empty.
	ErrNoPools = errors.New("no pools available")
)

// Pipeline stages reported to an Observer.
const (
	StageNormalizeProtocols = "normalize_protocols"
	StageIndexProtocols     = "index_protocols"
	StageNormalizePools     = "normalize_pools"
	StageFilterTokens       = "filter_tokens"
	StageScore              = "score"
	StagePaginate           = "paginate"
)

// Observer receives progress for each pipeline stage: how many records went
// in and how many came out.
type Observer interface {
	OnStage(stage string, in, out int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stage string, in, out int)

// OnStage calls f.
func (f ObserverFunc) OnStage(stage string, in, out int) { f(stage, in, out) }

// Engine runs the scoring pipeline.
type Engine struct {
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports stage progress to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) stage(name string, in, out int) {
	if e.observer != nil {
		e.observer.OnStage(name, in, out)
	}
}

// ScoreProtocols scores every protocol with a TVL and returns them ranked by
// security score. It fails with ErrNoProtocols when rawProtocols is empty.
func (e *Engine) ScoreProtocols(rawProtocols, rawPools []models.RawRecord) ([]models.ScoredProtocol, error) {
	if len(rawProtocols) == 0 {
		return nil, ErrNoProtocols
	}

	protocols := NormalizeProtocols(rawProtocols)
	e.stage(StageNormalizeProtocols, len(rawProtocols), len(protocols))

	pools := NormalizePools(rawPools)
	e.stage(StageNormalizePools, len(rawPools), len(pools))

	byProject := groupByProject(pools)
	scored := make([]models.ScoredProtocol, 0, len(protocols))
	for _, p := range protocols {
		scored = append(scored, scoreProtocol(p, byProject[strings.ToLower(p.Name)]))
	}
	e.stage(StageScore, len(protocols), len(scored))

	return RankProtocols(scored), nil
}

// ScorePools scores pools matching every token filter, ranks them and
// truncates to limit (non-positive means no limit). It fails with ErrNoPools
// when rawPools is empty; an empty protocol dataset leaves every pool
// unmatched.
func (e *Engine) ScorePools(rawProtocols, rawPools []models.RawRecord, tokens []string, limit int) ([]models.ScoredPool, models.Summary, error) {
	if len(rawPools) == 0 {
		return nil, models.Summary{}, ErrNoPools
	}
	if limit < 0 {
		limit = 0
	}
	filters := normalizeFilters(tokens)

	protocols := NormalizeProtocols(rawProtocols)
	e.stage(StageNormalizeProtocols, len(rawProtocols), len(protocols))
	index := NewProtocolIndex(protocols)
	e.stage(StageIndexProtocols, len(protocols), index.Len())

	pools := NormalizePools(rawPools)
	e.stage(StageNormalizePools, len(rawPools), len(pools))

	filtered := FilterPools(pools, filters)
	e.stage(StageFilterTokens, len(pools), len(filtered))

	scored := make([]models.ScoredPool, 0, len(filtered))
	for _, pool := range filtered {
		var protocol *models.Protocol
		if p, ok := index.Lookup(pool.Project); ok {
			protocol = &p
		}
		scored = append(scored, ScorePool(pool, protocol))
	}
	e.stage(StageScore, len(filtered), len(scored))

	ranked := RankPools(scored)
	page := Paginate(ranked, limit)
	e.stage(StagePaginate, len(ranked), len(page))

	return page, Summarize(page, len(ranked), limit, filters), nil
}

var defaultEngine = New()

// ScoreProtocols runs Engine.ScoreProtocols without an observer.
func ScoreProtocols(rawProtocols, rawPools []models.RawRecord) ([]models.ScoredProtocol, error) {
	return defaultEngine.ScoreProtocols(rawProtocols, rawPools)
}

// ScorePools runs Engine.ScorePools without an observer.
func ScorePools(rawProtocols, rawPools []models.RawRecord, tokens []string, limit int) ([]models.ScoredPool, models.Summary, error) {
	return defaultEngine.ScorePools(rawProtocols, rawPools, tokens, limit)
}
