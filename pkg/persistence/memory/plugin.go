package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/osvaldoandrade/nftminter/pkg/domain"
	"github.com/osvaldoandrade/nftminter/pkg/persistence"
)

// Plugin keeps runs in process memory. Everything is lost on restart.
type Plugin struct {
	mu        sync.RWMutex
	runs      map[string]*domain.PipelineResult
	retention time.Duration
	now       func() time.Time
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Plugin{
		runs:      make(map[string]*domain.PipelineResult),
		retention: config.Retention,
		now:       now,
	}, nil
}

func (p *Plugin) RunStorage() persistence.RunStorage {
	return &runStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

type runStorage struct {
	plugin *Plugin
}

func (s *runStorage) Save(ctx context.Context, run domain.PipelineResult) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	s.plugin.evictLocked()
	c := clone(run)
	s.plugin.runs[run.RunID] = &c
	return nil
}

func (s *runStorage) Get(ctx context.Context, runID string) (*domain.PipelineResult, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	run, ok := s.plugin.runs[runID]
	if !ok || s.plugin.expired(run) {
		return nil, persistence.ErrNotFound
	}
	c := clone(*run)
	return &c, nil
}

func (s *runStorage) CountByState(ctx context.Context) (map[domain.PipelineState]int, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	out := map[domain.PipelineState]int{}
	for _, run := range s.plugin.runs {
		if s.plugin.expired(run) {
			continue
		}
		out[run.State]++
	}
	return out, nil
}

// expired reports finished runs older than the retention window. Runs still in progress never expire.
func (p *Plugin) expired(run *domain.PipelineResult) bool {
	if p.retention <= 0 || !run.State.Terminal() {
		return false
	}
	return p.now().Sub(run.UpdatedAt) > p.retention
}

func (p *Plugin) evictLocked() {
	for id, run := range p.runs {
		if p.expired(run) {
			delete(p.runs, id)
		}
	}
}

// clone copies everything reachable from run so callers cannot mutate stored snapshots. Raw image
// bytes are dropped; they are on disk already.
func clone(run domain.PipelineResult) domain.PipelineResult {
	c := run
	if run.Generation != nil {
		g := *run.Generation
		g.ImageBytes = nil
		if g.Metadata != nil {
			m := *g.Metadata
			m.Attributes = append([]domain.Attribute(nil), g.Metadata.Attributes...)
			g.Metadata = &m
		}
		c.Generation = &g
	}
	if run.Upload != nil {
		u := *run.Upload
		c.Upload = &u
	}
	if run.Mint != nil {
		m := *run.Mint
		if m.TokenID != nil {
			m.TokenID = new(big.Int).Set(m.TokenID)
		}
		c.Mint = &m
	}
	return c
}
