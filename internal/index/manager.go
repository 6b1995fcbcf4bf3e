// Package index owns the per-scope exam index: building it from the document
// source, writing it through to the external cache and expiring it.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"examsearch/internal/cache"
	"examsearch/internal/models"
	"examsearch/internal/providers"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultCacheTTL = 6 * time.Hour
)

// Builder produces the full exam list of a collection.
type Builder interface {
	FetchAll(ctx context.Context, collectionID string, creds providers.Credentials) ([]models.Exam, error)
}

// Scope identifies whose index is requested and how to read their documents.
type Scope struct {
	Key         string
	Credentials providers.Credentials
}

// Snapshot is a built index. It is never mutated after publication.
type Snapshot struct {
	Scope     string
	Exams     []models.Exam
	BuiltAt   time.Time
	BuildID   string
	FromCache bool
}

type Options struct {
	CollectionID string
	TTL          time.Duration
	CacheTTL     time.Duration
	SingleFlight bool
	Logger       *slog.Logger
	Now          func() time.Time
}

type Manager struct {
	builder      Builder
	cache        cache.Cache
	collectionID string
	ttl          time.Duration
	cacheTTL     time.Duration
	singleFlight bool
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	flight    singleflight.Group
}

func NewManager(builder Builder, c cache.Cache, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CacheTTL <= opts.TTL {
		opts.CacheTTL = max(DefaultCacheTTL, 2*opts.TTL)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		builder:      builder,
		cache:        c,
		collectionID: opts.CollectionID,
		ttl:          opts.TTL,
		cacheTTL:     opts.CacheTTL,
		singleFlight: opts.SingleFlight,
		logger:       opts.Logger,
		now:          opts.Now,
		snapshots:    map[string]*Snapshot{},
	}
}

// GetOrBuild returns the scope's index. An external cache entry wins over the
// in-process copy; a fresh in-process copy avoids a rebuild; otherwise the
// index is built, written through and published.
func (m *Manager) GetOrBuild(ctx context.Context, scope Scope) (*Snapshot, error) {
	if snap, ok := m.adoptCached(ctx, scope.Key); ok {
		return snap, nil
	}
	if snap := m.Current(scope.Key); snap != nil && m.now().Sub(snap.BuiltAt) < m.ttl {
		return snap, nil
	}
	if !m.singleFlight {
		return m.build(ctx, scope)
	}
	v, err, _ := m.flight.Do(scope.Key, func() (any, error) {
		return m.build(context.WithoutCancel(ctx), scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// ForceRebuild builds the scope's index from the source, ignoring both caches.
func (m *Manager) ForceRebuild(ctx context.Context, scope Scope) (*Snapshot, error) {
	return m.build(ctx, scope)
}

// GetByID finds one exam in the scope's index.
func (m *Manager) GetByID(ctx context.Context, scope Scope, id string) (models.Exam, bool, error) {
	snap, err := m.GetOrBuild(ctx, scope)
	if err != nil {
		return models.Exam{}, false, err
	}
	for _, e := range snap.Exams {
		if e.ID == id {
			return e, true, nil
		}
	}
	return models.Exam{}, false, nil
}

// Current returns the published in-process snapshot, or nil.
func (m *Manager) Current(scope string) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[scope]
}

func (m *Manager) publish(snap *Snapshot) {
	m.mu.Lock()
	m.snapshots[snap.Scope] = snap
	m.mu.Unlock()
}

func (m *Manager) adoptCached(ctx context.Context, scope string) (*Snapshot, bool) {
	if m.cache == nil {
		return nil, false
	}
	raw, ok, err := m.cache.Get(ctx, CacheKey(scope))
	if err != nil {
		m.logger.Warn("index cache read failed", "scope", scope, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if cur := m.Current(scope); cur != nil {
		if h, err := decodeHeader(raw); err == nil && h.CreatedAt == cur.BuiltAt.UnixMilli() && h.BuildID == cur.BuildID {
			return cur, true
		}
	}
	snap, err := Decode(scope, raw)
	if err != nil {
		m.logger.Warn("discard index cache entry", "scope", scope, "error", err)
		return nil, false
	}
	m.publish(snap)
	m.logger.Debug("adopted cached index", "scope", scope, "exams", len(snap.Exams), "built_at", snap.BuiltAt)
	return snap, true
}

func (m *Manager) build(ctx context.Context, scope Scope) (*Snapshot, error) {
	start := m.now()
	exams, err := m.builder.FetchAll(ctx, m.collectionID, scope.Credentials)
	if err != nil {
		return nil, fmt.Errorf("build index for %s: %w", scope.Key, err)
	}
	snap := &Snapshot{
		Scope:   scope.Key,
		Exams:   exams,
		BuiltAt: m.now().Truncate(time.Millisecond),
		BuildID: uuid.NewString(),
	}
	m.writeThrough(ctx, snap)
	m.publish(snap)
	m.logger.Info("built index", "scope", scope.Key, "exams", len(exams), "build_id", snap.BuildID, "took", m.now().Sub(start))
	return snap, nil
}

func (m *Manager) writeThrough(ctx context.Context, snap *Snapshot) {
	if m.cache == nil {
		return
	}
	raw, err := Encode(snap)
	if err != nil {
		m.logger.Error("encode index", "scope", snap.Scope, "error", err)
		return
	}
	if err := m.cache.Put(context.WithoutCancel(ctx), CacheKey(snap.Scope), raw, m.cacheTTL); err != nil {
		m.logger.Warn("index cache write failed", "scope", snap.Scope, "error", err)
	}
}
