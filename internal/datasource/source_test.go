package datasource

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/models"
	"github.com/rewired-gh/curator/internal/storage"
)

type fakeFetcher struct {
	protocols []models.RawRecord
	pools     []models.RawRecord
	err       error
	calls     int32
	delay     time.Duration
}

func (f *fakeFetcher) FetchProtocols(ctx context.Context) ([]models.RawRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.protocols, nil
}

func (f *fakeFetcher) FetchPools(ctx context.Context) ([]models.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	origins  []string
	failures map[string]int
}

func (r *countingRecorder) ObserveFetch(origin string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins = append(r.origins, origin)
}

func (r *countingRecorder) UpstreamError(dataset string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[dataset]++
}

func liveFetcher() *fakeFetcher {
	return &fakeFetcher{
		protocols: []models.RawRecord{{"name": "Aave", "symbol": "AAVE", "tvl": 1e9}},
		pools:     []models.RawRecord{{"pool": "p1", "project": "Aave", "symbol": "USDC", "tvlUsd": 1e6}},
	}
}

func TestDatasets_LiveThenCache(t *testing.T) {
	fetcher := liveFetcher()
	rec := &countingRecorder{}
	src := New(fetcher, WithCache(time.Minute, time.Minute), WithRecorder(rec))

	first, err := src.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginLive, first.Origin)
	assert.Len(t, first.Protocols, 1)
	assert.False(t, first.FetchedAt.IsZero())

	second, err := src.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginCache, second.Origin)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
	assert.Equal(t, []string{"live", "cache"}, rec.origins)

	src.Refresh()
	third, err := src.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginLive, third.Origin)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestDatasets_ReturnsCopies(t *testing.T) {
	src := New(liveFetcher(), WithCache(time.Minute, time.Minute))

	first, err := src.Datasets(context.Background())
	require.NoError(t, err)
	first.Protocols[0]["name"] = "Mutated"

	second, err := src.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Aave", second.Protocols[0]["name"])
}

func TestDatasets_NoCacheAlwaysFetches(t *testing.T) {
	fetcher := liveFetcher()
	src := New(fetcher)

	for i := 0; i < 3; i++ {
		got, err := src.Datasets(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OriginLive, got.Origin)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetcher.calls))
}

func TestDatasets_FallsBackToSnapshot(t *testing.T) {
	store := storage.New(filepath.Join(t.TempDir(), "datasets.json"), 0, 0)

	// A successful live fetch writes the snapshot
	_, err := New(liveFetcher(), WithSnapshotStore(store)).Datasets(context.Background())
	require.NoError(t, err)

	rec := &countingRecorder{}
	broken := &fakeFetcher{err: errors.New("connection refused")}
	got, err := New(broken, WithSnapshotStore(store), WithDefaults(StaticDefaults{}), WithRecorder(rec)).
		Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginSnapshot, got.Origin)
	assert.Equal(t, "Aave", got.Protocols[0].StringOr("name", ""))
	assert.Equal(t, 1, rec.failures["protocols"])
}

func TestDatasets_EmptyLiveFallsBackToDefaults(t *testing.T) {
	fetcher := &fakeFetcher{
		protocols: []models.RawRecord{},
		pools:     []models.RawRecord{{"pool": "p1"}},
	}
	store := storage.New(filepath.Join(t.TempDir(), "datasets.json"), 0, 0)

	got, err := New(fetcher, WithSnapshotStore(store), WithDefaults(StaticDefaults{})).Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginDefaults, got.Origin)
	assert.Len(t, got.Protocols, 3)
	assert.Len(t, got.Pools, 4)
}

func TestDatasets_Unavailable(t *testing.T) {
	src := New(&fakeFetcher{err: errors.New("timeout")})

	_, err := src.Datasets(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDatasets_ConcurrentMissesShareFetch(t *testing.T) {
	fetcher := liveFetcher()
	fetcher.delay = 50 * time.Millisecond
	src := New(fetcher, WithCache(time.Minute, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.Datasets(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestStaticDefaults_ScoreEndToEnd(t *testing.T) {
	protocols, pools := StaticDefaults{}.Defaults()

	scored, err := curator.ScoreProtocols(protocols, pools)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	for _, p := range scored {
		assert.GreaterOrEqual(t, p.SecurityScore, 0.0)
		assert.LessOrEqual(t, p.SecurityScore, 10.0)
		assert.Greater(t, p.PoolCount, 0, p.Name)
	}

	ranked, summary, err := curator.ScorePools(protocols, pools, []string{"usdc"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	for _, p := range ranked {
		require.NotNil(t, p.ProtocolMeta, p.Pool.Pool)
	}
}
