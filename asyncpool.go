package binmod

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AsyncModulePool is the AsyncModule counterpart to ModulePool. Leases must
// be released explicitly via AsyncModuleLease.Release(ctx); unlike
// ModuleLease there is no finalizer backstop, so a lease that is never
// released keeps its module out of the pool.
type AsyncModulePool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	deque  []*AsyncModule
	leased int
	total  int
	closed bool
}

func newAsyncModulePool(modules []*AsyncModule) *AsyncModulePool {
	p := &AsyncModulePool{deque: modules, total: len(modules)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Lease blocks until a module is available.
func (p *AsyncModulePool) Lease() *AsyncModuleLease {
	p.mu.Lock()
	for len(p.deque) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	m := p.deque[0]
	p.deque = p.deque[1:]
	p.leased++
	p.mu.Unlock()

	log.WithField("stats", p.Stats()).Debug("async module leased")
	return &AsyncModuleLease{pool: p, module: m}
}

// TryLease returns a module immediately if one is idle.
func (p *AsyncModulePool) TryLease() (*AsyncModuleLease, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.deque) == 0 || p.closed {
		return nil, false
	}
	m := p.deque[0]
	p.deque = p.deque[1:]
	p.leased++
	return &AsyncModuleLease{pool: p, module: m}, true
}

// ScopedAsync leases a module, runs f against it, and releases it before
// returning f's result.
func ScopedAsync[R any](ctx context.Context, p *AsyncModulePool, f func(*AsyncModule) R) R {
	lease := p.Lease()
	defer lease.Release(ctx)
	return f(lease.Module())
}

func (p *AsyncModulePool) release(m *AsyncModule) {
	p.mu.Lock()
	p.deque = append(p.deque, m)
	p.leased--
	stats := PoolStats{Capacity: p.total, Available: len(p.deque), Outstanding: p.leased}
	p.mu.Unlock()

	log.WithField("stats", stats).Debug("async module released")
	p.cond.Signal()
}

// Close wakes every blocked Lease call; they return nil.
func (p *AsyncModulePool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Len reports how many modules are currently idle.
func (p *AsyncModulePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deque)
}

// Size reports the pool's fixed module count.
func (p *AsyncModulePool) Size() int { return p.total }

// Stats returns a snapshot of the pool's current occupancy.
func (p *AsyncModulePool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Capacity: p.total, Available: len(p.deque), Outstanding: p.leased}
}

// AsyncModuleLease is a single checked-out AsyncModule. There is no
// automatic release: callers must call Release(ctx) exactly once, typically
// via defer or ScopedAsync.
type AsyncModuleLease struct {
	pool     *AsyncModulePool
	module   *AsyncModule
	released bool
	mu       sync.Mutex
}

// Module returns the leased AsyncModule.
func (l *AsyncModuleLease) Module() *AsyncModule { return l.module }

// Release returns the module to its pool. ctx is accepted for symmetry with
// the module's other cooperative entry points; returning to the pool itself
// never blocks. Safe to call more than once.
func (l *AsyncModuleLease) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.pool.release(l.module)
}

// AsyncModulePoolBuilder constructs an AsyncModulePool either by cloning a
// template AsyncModule or by building+instantiating `count` fresh modules
// from a ModuleBuilder concurrently.
type AsyncModulePoolBuilder struct {
	template *AsyncModule
	builder  *ModuleBuilder
	count    int
}

// NewAsyncModulePoolBuilder returns an empty pool builder.
func NewAsyncModulePoolBuilder() *AsyncModulePoolBuilder {
	return &AsyncModulePoolBuilder{}
}

func (b *AsyncModulePoolBuilder) WithModule(template *AsyncModule) *AsyncModulePoolBuilder {
	b.template = template
	return b
}

func (b *AsyncModulePoolBuilder) WithBuilder(builder *ModuleBuilder) *AsyncModulePoolBuilder {
	b.builder = builder
	return b
}

func (b *AsyncModulePoolBuilder) WithCount(count int) *AsyncModulePoolBuilder {
	b.count = count
	return b
}

// Build instantiates the pool's modules and returns the assembled
// AsyncModulePool. Template clones are instantiated one after another
// against ctx; builder-built modules are instantiated concurrently against
// an errgroup context derived from ctx, cancelled on the first failure.
func (b *AsyncModulePoolBuilder) Build(ctx context.Context) (*AsyncModulePool, error) {
	if b.count <= 0 {
		return nil, newErr(KindInvalidModuleConfig, "pool count must be positive")
	}

	var modules []*AsyncModule

	switch {
	case b.template != nil:
		modules = make([]*AsyncModule, b.count)
		modules[0] = b.template
		for i := 1; i < b.count; i++ {
			clone := b.template.Clone()
			if _, err := clone.Instantiate(ctx); err != nil {
				return nil, err
			}
			modules[i] = clone
		}

	case b.builder != nil:
		modules = make([]*AsyncModule, b.count)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < b.count; i++ {
			i := i
			g.Go(func() error {
				m, err := b.builder.BuildAsync()
				if err != nil {
					return err
				}
				if _, err := m.Instantiate(gctx); err != nil {
					return err
				}
				modules[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

	default:
		return nil, newErr(KindInvalidModuleConfig, "pool builder requires WithModule or WithBuilder")
	}

	return newAsyncModulePool(modules), nil
}
