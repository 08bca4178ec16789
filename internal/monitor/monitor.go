// Package monitor runs the periodic pool digest: resolve datasets, rank pools,
// suppress pools that were sent recently without a material change, and hand
// the rest to a notifier.
//
// It tracks consecutive cycle failures so that a failure is reported once and
// the following success is reported as a recovery.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/datasource"
	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
)

// scoreChangeThreshold is the score movement that makes a recently sent pool
// worth sending again.
const scoreChangeThreshold = 0.5

// DatasetSource resolves the raw datasets for one cycle. Refresh drops any
// cached copy.
type DatasetSource interface {
	Datasets(ctx context.Context) (datasource.Datasets, error)
	Refresh()
}

// Notifier delivers digests and cycle health messages.
type Notifier interface {
	Send(pools []models.ScoredPool, summary models.Summary) error
	SendError(err error) error
	SendRecovery(failures int) error
}

// Config controls what a digest contains.
type Config struct {
	Tokens   []string
	TopN     int
	Cooldown time.Duration
}

// notifiedRecord tracks what was last sent for a pool
type notifiedRecord struct {
	Score       float64
	SafetyLevel string
	SentAt      time.Time
}

// Monitor runs digest cycles. Safe for concurrent use.
type Monitor struct {
	source   DatasetSource
	engine   *curator.Engine
	notifier Notifier
	cfg      Config

	mu                  sync.Mutex
	notified            map[string]notifiedRecord
	consecutiveFailures int
	now                 func() time.Time
}

// New creates a new Monitor. notifier may be nil, in which case cycles rank
// pools and log the result only.
func New(source DatasetSource, engine *curator.Engine, notifier Notifier, cfg Config) *Monitor {
	if engine == nil {
		engine = curator.New()
	}
	return &Monitor{
		source:   source,
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		notified: make(map[string]notifiedRecord),
		now:      time.Now,
	}
}

// Digest ranks pools for the configured tokens and returns the top N.
func (m *Monitor) Digest(ctx context.Context) ([]models.ScoredPool, models.Summary, error) {
	ds, err := m.source.Datasets(ctx)
	if err != nil {
		return nil, models.Summary{}, fmt.Errorf("failed to resolve datasets: %w", err)
	}

	pools, summary, err := m.engine.ScorePools(ds.Protocols, ds.Pools, m.cfg.Tokens, m.cfg.TopN)
	if err != nil {
		return nil, models.Summary{}, fmt.Errorf("failed to score pools: %w", err)
	}
	logger.Debug("Digest ranked %d pools (origin: %s), keeping %d", summary.Total, ds.Origin, len(pools))
	return pools, summary, nil
}

// FreshDigest is Digest after dropping cached datasets, for on-demand requests.
func (m *Monitor) FreshDigest(ctx context.Context) ([]models.ScoredPool, models.Summary, error) {
	m.source.Refresh()
	return m.Digest(ctx)
}

// RunCycle performs one digest cycle and returns its error, if any.
func (m *Monitor) RunCycle(ctx context.Context) error {
	startTime := time.Now()
	logger.Info("Starting digest cycle")

	pools, summary, err := m.Digest(ctx)
	if err != nil {
		return err
	}

	fresh := m.FilterRecentlySent(pools)
	if len(fresh) == 0 {
		logger.Info("No pools changed materially since the last digest")
		return nil
	}

	if m.notifier == nil {
		logger.Debug("Digest ready with %d pools but no notifier configured", len(fresh))
		return nil
	}

	summary.Returned = len(fresh)
	if err := m.notifier.Send(fresh, summary); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	m.RecordNotified(fresh)
	logger.Info("Sent digest with %d pools in %v", len(fresh), time.Since(startTime))
	return nil
}

// HandleCycleResult reports the first failure of a streak and the recovery
// that ends it. It returns the failure count after this result.
func (m *Monitor) HandleCycleResult(err error) int {
	m.mu.Lock()
	if err != nil {
		m.consecutiveFailures++
	}
	failures := m.consecutiveFailures
	if err == nil {
		m.consecutiveFailures = 0
	}
	m.mu.Unlock()

	if err != nil {
		logger.Error("Digest cycle failed: %v", err)
		if failures == 1 && m.notifier != nil {
			if sendErr := m.notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return failures
	}

	if failures > 0 && m.notifier != nil {
		if sendErr := m.notifier.SendRecovery(failures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	return 0
}

// Run executes a cycle immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.HandleCycleResult(m.RunCycle(ctx))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Digest monitor stopped")
			return
		case <-ticker.C:
			m.HandleCycleResult(m.RunCycle(ctx))
		}
	}
}

// FilterRecentlySent removes pools that were sent within the cooldown unless
// their safety level changed or their score moved by at least 0.5.
// Returns a non-nil slice.
func (m *Monitor) FilterRecentlySent(pools []models.ScoredPool) []models.ScoredPool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	result := make([]models.ScoredPool, 0, len(pools))
	for _, pool := range pools {
		rec, exists := m.notified[poolKey(pool)]
		if exists && now.Sub(rec.SentAt) < m.cfg.Cooldown {
			sameLevel := rec.SafetyLevel == pool.SafetyLevel
			smallMove := math.Abs(rec.Score-pool.SecurityScore) < scoreChangeThreshold
			if sameLevel && smallMove {
				continue
			}
		}
		result = append(result, pool)
	}
	return result
}

// RecordNotified marks pools as sent now.
// Call this after a successful send to enable cooldown deduplication.
func (m *Monitor) RecordNotified(pools []models.ScoredPool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, pool := range pools {
		m.notified[poolKey(pool)] = notifiedRecord{
			Score:       pool.SecurityScore,
			SafetyLevel: pool.SafetyLevel,
			SentAt:      now,
		}
	}
}

// poolKey identifies a pool across cycles. Pools without an id fall back to
// project, chain and symbol.
func poolKey(pool models.ScoredPool) string {
	if pool.Pool.Pool != "" {
		return pool.Pool.Pool
	}
	return pool.Project + "/" + pool.Chain + "/" + pool.Symbol
}
