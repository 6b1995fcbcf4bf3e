package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"examsearch/internal/cache"
	"examsearch/internal/models"
	"examsearch/internal/providers"
	"examsearch/internal/util"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type builderMock struct {
	mock.Mock
}

func (b *builderMock) FetchAll(ctx context.Context, collectionID string, creds providers.Credentials) ([]models.Exam, error) {
	args := b.Called(ctx, collectionID, creds)
	exams, _ := args.Get(0).([]models.Exam)
	return exams, args.Error(1)
}

// missCache never holds anything.
type missCache struct{ puts int }

func (c *missCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (c *missCache) Put(context.Context, string, []byte, time.Duration) error {
	c.puts++
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (brokenCache) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	scopeA = Scope{Key: "a@example.com", Credentials: providers.Credentials{AccessToken: "tok-a"}}
	scopeB = Scope{Key: "b@example.com", Credentials: providers.Credentials{AccessToken: "tok-b"}}
)

func sampleExams(ids ...string) []models.Exam {
	out := make([]models.Exam, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Exam{ID: id, Title: id, Year: 2024, Tags: []string{"t"}, Choices: []models.Choice{}})
	}
	return out
}

func newManager(b Builder, c cache.Cache, clk *clock, singleFlight bool) *Manager {
	return NewManager(b, c, Options{
		CollectionID: "folder",
		TTL:          30 * time.Minute,
		CacheTTL:     6 * time.Hour,
		SingleFlight: singleFlight,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          clk.Now,
	})
}

func TestCacheTTLOutlivesInProcessTTL(t *testing.T) {
	for _, tc := range []struct {
		ttl, cacheTTL, want time.Duration
	}{
		{ttl: 30 * time.Minute, cacheTTL: 0, want: DefaultCacheTTL},
		{ttl: 30 * time.Minute, cacheTTL: time.Hour, want: time.Hour},
		{ttl: 12 * time.Hour, cacheTTL: 6 * time.Hour, want: 24 * time.Hour},
		{ttl: 12 * time.Hour, cacheTTL: 12 * time.Hour, want: 24 * time.Hour},
	} {
		m := NewManager(&builderMock{}, cache.NewMemory(), Options{TTL: tc.ttl, CacheTTL: tc.cacheTTL})
		require.Equal(t, tc.want, m.cacheTTL, "ttl=%s cacheTTL=%s", tc.ttl, tc.cacheTTL)
		require.Greater(t, m.cacheTTL, m.ttl)
	}
}

func TestGetOrBuildBuildsOnceThenServesCache(t *testing.T) {
	clk := &clock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", scopeA.Credentials).Return(sampleExams("DR2401_001", "DR2401_002"), nil).Once()
	mem := cache.NewMemory().WithClock(clk.Now)
	m := newManager(b, mem, clk, false)
	ctx := context.Background()

	first, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	require.Len(t, first.Exams, 2)
	require.False(t, first.FromCache)
	require.NotEmpty(t, first.BuildID)

	_, ok, err := mem.Get(ctx, CacheKey(scopeA.Key))
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(45 * time.Minute)
	second, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	require.Equal(t, first.BuildID, second.BuildID)
	b.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestGetOrBuildUsesInProcessCopyUntilTTL(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("x"), nil)
	c := &missCache{}
	m := newManager(b, c, clk, false)
	ctx := context.Background()

	_, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	clk.Advance(29 * time.Minute)
	_, err = m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	b.AssertNumberOfCalls(t, "FetchAll", 1)

	clk.Advance(2 * time.Minute)
	_, err = m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	b.AssertNumberOfCalls(t, "FetchAll", 2)
	require.Equal(t, 2, c.puts)
}

func TestGetOrBuildAdoptsEntryFromAnotherProcess(t *testing.T) {
	clk := &clock{now: time.Now()}
	mem := cache.NewMemory().WithClock(clk.Now)
	builtAt := clk.Now().Add(-5 * time.Hour).Truncate(time.Millisecond)
	raw, err := Encode(&Snapshot{Scope: scopeA.Key, Exams: sampleExams("warm"), BuiltAt: builtAt, BuildID: "other"})
	require.NoError(t, err)
	require.NoError(t, mem.Put(context.Background(), CacheKey(scopeA.Key), raw, time.Hour))

	b := &builderMock{}
	m := newManager(b, mem, clk, false)
	snap, err := m.GetOrBuild(context.Background(), scopeA)
	require.NoError(t, err)
	require.True(t, snap.FromCache)
	require.Equal(t, "other", snap.BuildID)
	require.True(t, builtAt.Equal(snap.BuiltAt))
	require.Equal(t, "warm", snap.Exams[0].ID)
	b.AssertNotCalled(t, "FetchAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestForceRebuildBypassesCaches(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("v1"), nil).Once()
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("v2", "v2b"), nil).Once()
	mem := cache.NewMemory().WithClock(clk.Now)
	m := newManager(b, mem, clk, true)
	ctx := context.Background()

	first, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	rebuilt, err := m.ForceRebuild(ctx, scopeA)
	require.NoError(t, err)
	require.NotEqual(t, first.BuildID, rebuilt.BuildID)
	require.Len(t, rebuilt.Exams, 2)

	after, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	require.Equal(t, rebuilt.BuildID, after.BuildID)
	b.AssertNumberOfCalls(t, "FetchAll", 2)
}

func TestBuildFailurePublishesNothing(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(nil, util.ErrUnauthorized)
	mem := cache.NewMemory()
	m := newManager(b, mem, clk, false)

	_, err := m.GetOrBuild(context.Background(), scopeA)
	require.Error(t, err)
	require.True(t, errors.Is(err, util.ErrUnauthorized))
	require.Nil(t, m.Current(scopeA.Key))
	require.Equal(t, 0, mem.Len())
}

func TestCacheFailuresDoNotFailBuild(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("a", "b"), nil)
	m := newManager(b, brokenCache{}, clk, false)

	snap, err := m.GetOrBuild(context.Background(), scopeA)
	require.NoError(t, err)
	require.Len(t, snap.Exams, 2)
	require.Same(t, snap, m.Current(scopeA.Key))
}

func TestCorruptCacheEntryIsRebuilt(t *testing.T) {
	clk := &clock{now: time.Now()}
	mem := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, CacheKey(scopeA.Key), []byte(`{"createdAt": 1}`), time.Hour))
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("fresh"), nil)
	m := newManager(b, mem, clk, false)

	snap, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	require.Equal(t, "fresh", snap.Exams[0].ID)
	b.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestScopesAreIsolated(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", scopeA.Credentials).Return(sampleExams("a1"), nil)
	b.On("FetchAll", mock.Anything, "folder", scopeB.Credentials).Return(sampleExams("b1", "b2"), nil)
	m := newManager(b, cache.NewMemory(), clk, false)
	ctx := context.Background()

	a, err := m.GetOrBuild(ctx, scopeA)
	require.NoError(t, err)
	bb, err := m.GetOrBuild(ctx, scopeB)
	require.NoError(t, err)
	require.Len(t, a.Exams, 1)
	require.Len(t, bb.Exams, 2)
}

func TestSingleFlightCoalescesConcurrentBuilds(t *testing.T) {
	clk := &clock{now: time.Now()}
	release := make(chan struct{})
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(sampleExams("only"), nil)
	m := newManager(b, cache.NewMemory(), clk, true)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := m.GetOrBuild(context.Background(), scopeA)
			if err == nil {
				results[i] = snap
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	b.AssertNumberOfCalls(t, "FetchAll", 1)
	for _, snap := range results {
		require.NotNil(t, snap)
		require.Equal(t, "only", snap.Exams[0].ID)
	}
}

func TestGetByID(t *testing.T) {
	clk := &clock{now: time.Now()}
	b := &builderMock{}
	b.On("FetchAll", mock.Anything, "folder", mock.Anything).Return(sampleExams("DR2401_001", "DR2401_002"), nil)
	m := newManager(b, cache.NewMemory(), clk, false)
	ctx := context.Background()

	exam, ok, err := m.GetByID(ctx, scopeA, "DR2401_002")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "DR2401_002", exam.ID)

	_, ok, err = m.GetByID(ctx, scopeA, "DR9999_999")
	require.NoError(t, err)
	require.False(t, ok)
	b.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	built := time.Date(2024, 4, 1, 9, 30, 15, 123_000_000, time.UTC)
	exams := sampleExams("DR2401_001", "DR2302_004", "DR2404_010")
	exams[0].ChoiceExplanations = map[string]string{"a": "解説"}
	raw, err := Encode(&Snapshot{Scope: "s", Exams: exams, BuiltAt: built, BuildID: "b1"})
	require.NoError(t, err)

	snap, err := Decode("s", raw)
	require.NoError(t, err)
	require.Equal(t, exams, snap.Exams)
	require.True(t, built.Equal(snap.BuiltAt))
	require.Equal(t, "b1", snap.BuildID)

	empty, err := Encode(&Snapshot{Scope: "s", BuiltAt: built})
	require.NoError(t, err)
	snap, err = Decode("s", empty)
	require.NoError(t, err)
	require.Empty(t, snap.Exams)

	_, err = Decode("s", []byte("not json"))
	require.Error(t, err)
}
