// Package runtime simulates the C-ABI surface spec.md §4.9 requires of the
// downstream runtime: panic/heap/fs/region/parallel/context operations
// exposed to both lowered code and the interpreter. It is grounded on the
// teacher's own sub-allocator, coordinator, and capability-record shapes
// (kernel/threads/arena, kernel/threads/supervisor, kernel/runtime),
// adapted from a byte-offset SharedArrayBuffer arena to the quota/rate/
// cancel-token concerns this spec actually names.
package runtime

import (
	"sync"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/paniccode"
)

var heapLogger = diag.DefaultLogger("runtime.heap")

// AllocError is the Go error wrapping a paniccode.AllocError discriminant
// (spec.md §6/§7 OutOfMemory/QuotaExceeded).
type AllocError struct {
	Kind paniccode.AllocError
}

func (e *AllocError) Error() string { return "runtime: " + e.Kind.String() }

// ManagedBlock is one live managed string/bytes allocation: header plus
// payload capacity tracking (spec.md §4.9 "allocate header + payload,
// track capacity, free on drop").
type ManagedBlock struct {
	Bytes []byte // len(Bytes) is the logical length; cap(Bytes) is the capacity
}

// HeapAllocator is a quota-bounded sub-allocator (spec.md §4.9
// heap.with_quota). It tracks live byte usage against QuotaBytes and
// throttles allocation *rate* via a token-bucket limiter, mirroring the
// teacher's HybridAllocator routing shape (kernel/threads/arena/
// allocator.go) adapted from byte-offset arena slots to quota accounting.
type HeapAllocator struct {
	mu sync.Mutex

	QuotaBytes uint64
	used       uint64

	rate    *limiter.TokenBucket
	rateKey string

	blocks map[*ManagedBlock]struct{}
}

// NewHeapAllocator creates a quota sub-allocator. ratePerSecond <= 0
// disables rate limiting (unlimited allocation requests per second).
func NewHeapAllocator(quotaBytes uint64, ratePerSecond int) *HeapAllocator {
	h := &HeapAllocator{QuotaBytes: quotaBytes, blocks: map[*ManagedBlock]struct{}{}, rateKey: "heap"}
	if ratePerSecond > 0 {
		st := store.NewMemoryStore(time.Minute)
		tb, err := limiter.NewTokenBucket(limiter.Config{
			Rate:     int64(ratePerSecond),
			Duration: time.Second,
			Burst:    int64(ratePerSecond),
		}, st)
		if err != nil {
			heapLogger.Warn("rate limiter init failed, allocation rate is unbounded", diag.Err(err))
		} else {
			h.rate = tb
		}
	}
	return h
}

// WithQuota returns a child allocator bounded to n additional bytes beyond
// the parent's already-used total (spec.md §4.9 heap.with_quota(n)).
func (h *HeapAllocator) WithQuota(n uint64) *HeapAllocator {
	child := NewHeapAllocator(n, 0)
	child.rate = h.rate
	return child
}

func (h *HeapAllocator) checkRate() error {
	if h.rate == nil {
		return nil
	}
	if !h.rate.Allow(h.rateKey) {
		return &AllocError{Kind: paniccode.QuotaExceeded}
	}
	return nil
}

// AllocRaw reserves n bytes against the quota (spec.md §4.9 alloc_raw).
func (h *HeapAllocator) AllocRaw(n uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkRate(); err != nil {
		return nil, err
	}
	if h.used+n > h.QuotaBytes {
		return nil, &AllocError{Kind: paniccode.QuotaExceeded}
	}
	h.used += n
	return make([]byte, n), nil
}

// DeallocRaw releases n bytes back to the quota (spec.md §4.9
// dealloc_raw).
func (h *HeapAllocator) DeallocRaw(n uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > h.used {
		h.used = 0
		return
	}
	h.used -= n
}

// Used reports bytes currently charged against the quota.
func (h *HeapAllocator) Used() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

// AllocManaged allocates a fresh managed string/bytes block with the given
// initial contents (spec.md §3 invariant 6, §4.9).
func (h *HeapAllocator) AllocManaged(initial []byte) (*ManagedBlock, error) {
	if _, err := h.AllocRaw(uint64(len(initial))); err != nil {
		return nil, err
	}
	buf := make([]byte, len(initial))
	copy(buf, initial)
	blk := &ManagedBlock{Bytes: buf}
	h.mu.Lock()
	h.blocks[blk] = struct{}{}
	h.mu.Unlock()
	return blk, nil
}

// Append grows blk by appending more, reallocating by doubling capacity
// (at least to the needed length) with a quota check on the delta (spec.md
// §4.9 "reallocation grows by doubling... with quota check on the delta").
func (h *HeapAllocator) Append(blk *ManagedBlock, more []byte) error {
	if len(more) == 0 {
		return nil // Bytes.append(b, []) is a no-op (spec.md §8 round-trip law)
	}
	needed := len(blk.Bytes) + len(more)
	oldCap := cap(blk.Bytes)
	if needed <= oldCap {
		blk.Bytes = append(blk.Bytes, more...)
		return nil
	}
	newCap := oldCap * 2
	if newCap < needed {
		newCap = needed
	}
	delta := uint64(newCap - oldCap)
	if _, err := h.AllocRaw(delta); err != nil {
		return err
	}
	grown := make([]byte, len(blk.Bytes), newCap)
	copy(grown, blk.Bytes)
	blk.Bytes = append(grown, more...)
	return nil
}

// FreeManaged releases blk's backing allocation (spec.md §3 invariant 6
// "dropping a managed value frees").
func (h *HeapAllocator) FreeManaged(blk *ManagedBlock) {
	h.mu.Lock()
	if _, ok := h.blocks[blk]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.blocks, blk)
	freed := uint64(cap(blk.Bytes))
	h.mu.Unlock()
	h.DeallocRaw(freed)
	blk.Bytes = nil
}

// LiveBlocks reports the number of managed allocations that have not been
// freed, for leak diagnostics in tests.
func (h *HeapAllocator) LiveBlocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}
