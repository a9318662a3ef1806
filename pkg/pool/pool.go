// Kunhua Huang 2026

package pool

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultCapacity matches FD_SETSIZE on most systems.
const DefaultCapacity = 1024

var (
	ErrPoolFull   = errors.New("pool: too many clients")
	ErrPoolClosed = errors.New("pool: closed")
	ErrEmptySlot  = errors.New("pool: slot is empty")
)

// ----------------- Pool Options -----------------

type PoolOptions struct {
	Capacity int
}

func DefaultPoolOptions() *PoolOptions {
	return &PoolOptions{
		Capacity: DefaultCapacity,
	}
}

type PoolOption func(*PoolOptions)

func WithCapacity(capacity int) PoolOption {
	return func(opts *PoolOptions) {
		opts.Capacity = capacity
	}
}

func (opts *PoolOptions) Validate() error {
	if opts.Capacity <= 0 {
		return fmt.Errorf("Capacity must be > 0, got %d", opts.Capacity)
	}
	return nil
}

// ----------------- Slot -----------------

// Slot is one occupied entry of the pool.
type Slot struct {
	Index int
	FD    int
	Conn  net.Conn
}

// ----------------- Pool -----------------

// Pool is a fixed-size table of accepted connections waiting to be served by
// a readiness loop. A free slot holds nil. Connections are indexed both by
// slot and by file descriptor so readiness reports can be mapped back.
type Pool struct {
	opts   *PoolOptions
	mu     sync.Mutex
	slots  []*Slot
	byFD   map[int]*Slot
	maxi   int // highest slot index ever used, -1 if none
	closed bool

	stats struct {
		acquireCount int64
		releaseCount int64
		rejectCount  int64
	}
}

func New(options ...PoolOption) (*Pool, error) {
	opts := DefaultPoolOptions()
	for _, o := range options {
		o(opts)
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool options: %w", err)
	}

	return &Pool{
		opts:  opts,
		slots: make([]*Slot, opts.Capacity),
		byFD:  make(map[int]*Slot, opts.Capacity),
		maxi:  -1,
	}, nil
}

// Acquire stores conn in the first free slot. When every slot is taken it
// returns ErrPoolFull and the caller still owns conn.
func (p *Pool) Acquire(conn net.Conn, fd int) (*Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	for i, s := range p.slots {
		if s != nil {
			continue
		}

		slot := &Slot{Index: i, FD: fd, Conn: conn}
		p.slots[i] = slot
		p.byFD[fd] = slot
		if i > p.maxi {
			p.maxi = i
		}

		atomic.AddInt64(&p.stats.acquireCount, 1)
		return slot, nil
	}

	atomic.AddInt64(&p.stats.rejectCount, 1)
	return nil, ErrPoolFull
}

// Release frees the slot at index and returns its entry. It does not close
// the connection.
func (p *Pool) Release(index int) (*Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.slots) {
		return nil, fmt.Errorf("slot index %d out of range [0, %d)", index, len(p.slots))
	}

	slot := p.slots[index]
	if slot == nil {
		return nil, ErrEmptySlot
	}

	p.slots[index] = nil
	delete(p.byFD, slot.FD)

	atomic.AddInt64(&p.stats.releaseCount, 1)
	return slot, nil
}

// Lookup maps a ready descriptor back to its slot.
func (p *Pool) Lookup(fd int) (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.byFD[fd]
	return slot, ok
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byFD)
}

func (p *Pool) Cap() int {
	return p.opts.Capacity
}

// Close releases every slot and closes the pooled connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for i, s := range p.slots {
		if s == nil {
			continue
		}
		if err := s.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close slot %d: %w", i, err))
		}
		p.slots[i] = nil
	}
	clear(p.byFD)

	return errors.Join(errs...)
}

type PoolStats struct {
	Capacity     int
	InUse        int
	MaxIndex     int
	AcquireCount int64
	ReleaseCount int64
	RejectCount  int64
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	inUse := len(p.byFD)
	maxi := p.maxi
	p.mu.Unlock()

	return PoolStats{
		Capacity:     p.opts.Capacity,
		InUse:        inUse,
		MaxIndex:     maxi,
		AcquireCount: atomic.LoadInt64(&p.stats.acquireCount),
		ReleaseCount: atomic.LoadInt64(&p.stats.releaseCount),
		RejectCount:  atomic.LoadInt64(&p.stats.rejectCount),
	}
}

func (s PoolStats) String() string {
	return fmt.Sprintf("Pool{InUse=%d/%d, MaxIndex=%d, Acquire=%d, Release=%d, Reject=%d}",
		s.InUse, s.Capacity, s.MaxIndex, s.AcquireCount, s.ReleaseCount, s.RejectCount)
}
