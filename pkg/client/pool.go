package client

import (
	"context"
	"sync"

	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/eapache/queue"
)

// PoolConfig bounds a Pool. MaxSessions <= 0 leaves the live count unbounded.
type PoolConfig struct {
	Session     Config
	MaxSessions int
	MaxIdle     int
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Session:     DefaultConfig(),
		MaxSessions: 16,
		MaxIdle:     4,
	}
}

// PoolStats is a point-in-time view of a Pool.
type PoolStats struct {
	Live int
	Idle int
}

// Pool hands out Sessions to concurrent callers, one caller per Session.
// Idle sessions are reused oldest first.
type Pool struct {
	cfg PoolConfig

	mu     sync.Mutex
	idle   *queue.Queue
	live   int
	closed bool
}

func NewPool(cfg PoolConfig) *Pool {
	cfg.Session = cfg.Session.WithDefaults()
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultPoolConfig().MaxIdle
	}
	return &Pool{cfg: cfg, idle: queue.New()}
}

// Acquire returns a connected session owned by the caller until Release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	for p.idle.Length() > 0 {
		s := p.idle.Remove().(*Session)
		if s.State() == StateConnected {
			p.mu.Unlock()
			return s, nil
		}
		p.live--
	}
	if p.cfg.MaxSessions > 0 && p.live >= p.cfg.MaxSessions {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.live++
	p.mu.Unlock()

	s, err := StartWithConfig(ctx, p.cfg.Session)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Release returns s to the pool. Closed sessions and overflow are stopped.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if p.closed || s.State() != StateConnected || p.idle.Length() >= p.cfg.MaxIdle {
		p.live--
		p.mu.Unlock()
		_ = s.Stop()
		return
	}
	p.idle.Add(s)
	p.mu.Unlock()
}

// Do runs fn with a pooled session.
func (p *Pool) Do(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Live: p.live, Idle: p.idle.Length()}
}

// Close stops idle sessions and rejects further Acquire calls. Sessions still
// checked out are stopped when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := make([]*Session, 0, p.idle.Length())
	for p.idle.Length() > 0 {
		idle = append(idle, p.idle.Remove().(*Session))
	}
	p.live -= len(idle)
	p.mu.Unlock()

	for _, s := range idle {
		_ = s.Stop()
	}
	logs.Debugf("client.Pool closed stopped_idle=%d", len(idle))
	return nil
}
