package binmod

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ModulePool is a fixed-size set of instantiated Modules shared across
// concurrent callers. Unlike the upstream ring-buffer pool this replaces,
// lease/try-lease/FIFO-wake need a single condition variable rather than a
// fixed-capacity ring buffer with a timeout-based Poll: a RingBuffer can't
// express an indefinite block alongside a true non-blocking try without
// racing its own timeout clock, so this pool uses sync.Mutex + sync.Cond
// over a deque instead (see DESIGN.md).
type ModulePool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	deque   []*Module
	leased  int
	total   int
	closed  bool
}

func newModulePool(modules []*Module) *ModulePool {
	p := &ModulePool{deque: modules, total: len(modules)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Lease blocks until a module is available and returns it wrapped in a
// ModuleLease. Callers must call Release (directly, or via Scoped) to
// return the module to the pool.
func (p *ModulePool) Lease() *ModuleLease {
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

	log.WithField("stats", p.Stats()).Debug("module leased")
	lease := &ModuleLease{pool: p, module: m}
	runtime.SetFinalizer(lease, (*ModuleLease).Release)
	return lease
}

// TryLease returns a module immediately if one is idle, or (nil, false) if
// the pool is fully checked out.
func (p *ModulePool) TryLease() (*ModuleLease, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.deque) == 0 || p.closed {
		return nil, false
	}
	m := p.deque[0]
	p.deque = p.deque[1:]
	p.leased++
	lease := &ModuleLease{pool: p, module: m}
	runtime.SetFinalizer(lease, (*ModuleLease).Release)
	return lease, true
}

// Scoped leases a module, runs f against it, and releases it before
// returning f's result — the RAII-style usage the Rust original's Drop impl
// gives for free, expressed explicitly since Go has no destructors.
func Scoped[R any](p *ModulePool, f func(*Module) R) R {
	lease := p.Lease()
	defer lease.Release()
	return f(lease.Module())
}

func (p *ModulePool) release(m *Module) {
	p.mu.Lock()
	p.deque = append(p.deque, m)
	p.leased--
	stats := PoolStats{Capacity: p.total, Available: len(p.deque), Outstanding: p.leased}
	p.mu.Unlock()

	log.WithField("stats", stats).Debug("module released")
	p.cond.Signal()
}

// Close wakes every blocked Lease call; they return nil. It does not wait
// for outstanding leases to be released.
func (p *ModulePool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Len reports how many modules are currently idle in the pool.
func (p *ModulePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deque)
}

// Size reports the pool's fixed module count. Size == idle + leased always
// holds (the pool's conservation invariant).
func (p *ModulePool) Size() int {
	return p.total
}

// PoolStats is a snapshot of a pool's occupancy for host-side health
// checks.
type PoolStats struct {
	Capacity    int
	Available   int
	Outstanding int
}

// Stats returns a snapshot of the pool's current occupancy.
func (p *ModulePool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Capacity: p.total, Available: len(p.deque), Outstanding: p.leased}
}

// ModuleLease is a single checked-out Module. Release must be called
// exactly once; a finalizer is registered as a best-effort backstop against
// a forgotten Release leaking a permanent hole in the pool; it is not a
// substitute for calling Release explicitly, since finalizer timing is
// unspecified.
type ModuleLease struct {
	pool     *ModulePool
	module   *Module
	released bool
	mu       sync.Mutex
}

// Module returns the leased Module.
func (l *ModuleLease) Module() *Module { return l.module }

// Release returns the module to its pool. Safe to call more than once; only
// the first call has effect.
func (l *ModuleLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	runtime.SetFinalizer(l, nil)
	l.pool.release(l.module)
}

// ModulePoolBuilder constructs a ModulePool either by cloning a template
// Module instantiate-count times, or by building and instantiating `count`
// fresh Modules from a ModuleBuilder concurrently.
type ModulePoolBuilder struct {
	template *Module
	builder  *ModuleBuilder
	count    int
}

// NewModulePoolBuilder returns an empty pool builder.
func NewModulePoolBuilder() *ModulePoolBuilder {
	return &ModulePoolBuilder{}
}

// WithModule seeds the pool from an already-instantiated template Module;
// Build clones it count-1 more times and instantiates each clone.
func (b *ModulePoolBuilder) WithModule(template *Module) *ModulePoolBuilder {
	b.template = template
	return b
}

// WithBuilder seeds the pool from a ModuleBuilder; Build constructs and
// instantiates count independent Modules from it.
func (b *ModulePoolBuilder) WithBuilder(builder *ModuleBuilder) *ModulePoolBuilder {
	b.builder = builder
	return b
}

// WithCount sets how many modules the pool should contain.
func (b *ModulePoolBuilder) WithCount(count int) *ModulePoolBuilder {
	b.count = count
	return b
}

// Build instantiates the pool's modules and returns the assembled
// ModulePool. Modules built from a ModuleBuilder are instantiated
// concurrently via errgroup, since compilation/instantiation is the
// expensive part of standing up a pool.
func (b *ModulePoolBuilder) Build() (*ModulePool, error) {
	if b.count <= 0 {
		return nil, newErr(KindInvalidModuleConfig, "pool count must be positive")
	}

	var modules []*Module

	switch {
	case b.template != nil:
		modules = make([]*Module, b.count)
		modules[0] = b.template
		for i := 1; i < b.count; i++ {
			clone := b.template.Clone()
			if _, err := clone.Instantiate(); err != nil {
				return nil, err
			}
			modules[i] = clone
		}

	case b.builder != nil:
		modules = make([]*Module, b.count)
		var g errgroup.Group
		for i := 0; i < b.count; i++ {
			i := i
			g.Go(func() error {
				m, err := b.builder.Build()
				if err != nil {
					return err
				}
				if _, err := m.Instantiate(); err != nil {
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

	pool := newModulePool(modules)
	return pool, nil
}
