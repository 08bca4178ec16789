// Package datasource resolves the two raw datasets the scorers need.
//
// Resolution order is: in-memory cache, live upstream fetch, last-good
// snapshot on disk, then a static default provider. The first step that
// yields two non-empty datasets wins and is reported as the Origin.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
	"github.com/rewired-gh/curator/internal/storage"
)

// Origin names where a Datasets value came from.
type Origin string

const (
	OriginCache    Origin = "cache"
	OriginLive     Origin = "live"
	OriginSnapshot Origin = "snapshot"
	OriginDefaults Origin = "defaults"
)

const cacheKey = "datasets"

// ErrUnavailable is returned when no step produced usable datasets.
var ErrUnavailable = errors.New("datasets unavailable")

// Datasets is one resolved pair of raw upstream datasets.
type Datasets struct {
	Protocols []models.RawRecord
	Pools     []models.RawRecord
	Origin    Origin
	FetchedAt time.Time
}

// Fetcher loads the raw datasets from upstream.
type Fetcher interface {
	FetchProtocols(ctx context.Context) ([]models.RawRecord, error)
	FetchPools(ctx context.Context) ([]models.RawRecord, error)
}

// SnapshotStore persists the last-good datasets.
type SnapshotStore interface {
	SaveDatasets(protocols, pools []models.RawRecord) error
	LoadDatasets() (*storage.Snapshot, error)
}

// DefaultProvider supplies datasets when everything else failed.
type DefaultProvider interface {
	Defaults() (protocols, pools []models.RawRecord)
}

// Recorder receives fetch telemetry.
type Recorder interface {
	ObserveFetch(origin string, d time.Duration)
	UpstreamError(dataset string)
}

// Source resolves datasets with caching and fallbacks. Safe for concurrent use.
type Source struct {
	fetcher  Fetcher
	store    SnapshotStore
	defaults DefaultProvider
	recorder Recorder
	cache    *cache.Cache
	group    singleflight.Group
}

// Option configures a Source.
type Option func(*Source)

// WithCache keeps live results in memory for ttl. A non-positive ttl disables caching.
func WithCache(ttl, cleanupInterval time.Duration) Option {
	return func(s *Source) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, cleanupInterval)
	}
}

// WithSnapshotStore enables the on-disk last-good fallback.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Source) { s.store = store }
}

// WithDefaults sets the provider used as the final fallback.
func WithDefaults(p DefaultProvider) Option {
	return func(s *Source) { s.defaults = p }
}

// WithRecorder reports fetch outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Source) { s.recorder = r }
}

// New creates a Source over fetcher.
func New(fetcher Fetcher, opts ...Option) *Source {
	s := &Source{fetcher: fetcher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Datasets resolves both raw datasets. The returned records are copies and may
// be modified freely by the caller.
func (s *Source) Datasets(ctx context.Context) (Datasets, error) {
	start := time.Now()

	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			cached := v.(Datasets)
			cached.Origin = OriginCache
			s.observe(cached.Origin, start)
			return cached.clone(), nil
		}
	}

	// Concurrent misses share one upstream round trip.
	v, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		return s.resolve(ctx)
	})
	if err != nil {
		return Datasets{}, err
	}

	resolved := v.(Datasets)
	s.observe(resolved.Origin, start)
	return resolved.clone(), nil
}

// Refresh drops the cached datasets so the next call goes upstream.
func (s *Source) Refresh() {
	if s.cache != nil {
		s.cache.Delete(cacheKey)
	}
}

func (s *Source) resolve(ctx context.Context) (Datasets, error) {
	live, err := s.fetchLive(ctx)
	if err == nil {
		if s.cache != nil {
			s.cache.SetDefault(cacheKey, live)
		}
		if s.store != nil {
			if saveErr := s.store.SaveDatasets(live.Protocols, live.Pools); saveErr != nil {
				logger.Warn("Failed to save dataset snapshot: %v", saveErr)
			}
		}
		return live, nil
	}
	logger.Warn("Live fetch failed, trying fallbacks: %v", err)

	if s.store != nil {
		snap, snapErr := s.store.LoadDatasets()
		if snapErr == nil {
			logger.Info("Serving dataset snapshot saved at %s", snap.SavedAt.Format(time.RFC3339))
			return Datasets{
				Protocols: snap.Protocols,
				Pools:     snap.Pools,
				Origin:    OriginSnapshot,
				FetchedAt: snap.SavedAt,
			}, nil
		}
		if !errors.Is(snapErr, storage.ErrNoSnapshot) {
			logger.Warn("Failed to load dataset snapshot: %v", snapErr)
		}
	}

	if s.defaults != nil {
		protocols, pools := s.defaults.Defaults()
		if len(protocols) > 0 && len(pools) > 0 {
			logger.Warn("Serving static default datasets")
			return Datasets{
				Protocols: protocols,
				Pools:     pools,
				Origin:    OriginDefaults,
				FetchedAt: time.Now().UTC(),
			}, nil
		}
	}

	return Datasets{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// fetchLive loads both datasets concurrently. An empty dataset counts as a
// failure so that fallbacks get a chance.
func (s *Source) fetchLive(ctx context.Context) (Datasets, error) {
	if s.fetcher == nil {
		return Datasets{}, errors.New("no upstream fetcher configured")
	}

	var protocols, pools []models.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		protocols, err = s.fetcher.FetchProtocols(gctx)
		if err != nil {
			s.upstreamError("protocols")
			return err
		}
		if len(protocols) == 0 {
			s.upstreamError("protocols")
			return errors.New("upstream returned no protocols")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pools, err = s.fetcher.FetchPools(gctx)
		if err != nil {
			s.upstreamError("pools")
			return err
		}
		if len(pools) == 0 {
			s.upstreamError("pools")
			return errors.New("upstream returned no pools")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Datasets{}, err
	}

	return Datasets{
		Protocols: protocols,
		Pools:     pools,
		Origin:    OriginLive,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (s *Source) observe(origin Origin, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveFetch(string(origin), time.Since(start))
	}
}

func (s *Source) upstreamError(dataset string) {
	if s.recorder != nil {
		s.recorder.UpstreamError(dataset)
	}
}

func (d Datasets) clone() Datasets {
	d.Protocols = cloneRecords(d.Protocols)
	d.Pools = cloneRecords(d.Pools)
	return d
}

func cloneRecords(records []models.RawRecord) []models.RawRecord {
	out := make([]models.RawRecord, len(records))
	for i, r := range records {
		out[i] = models.RawRecord(cloneMap(r))
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case models.RawRecord:
		return models.RawRecord(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
