package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/paniccode"
)

var parallelLogger = diag.DefaultLogger("runtime.parallel")

// CancelToken is one node of a cancellation tree (spec.md §5): any
// ancestor's cancellation is observed by every descendant.
type CancelToken struct {
	ID     string
	mu     sync.Mutex
	done   bool
	parent *CancelToken
}

// NewCancelToken creates a token, optionally chained under parent.
func NewCancelToken(parent *CancelToken) *CancelToken {
	return &CancelToken{ID: uuid.NewString(), parent: parent}
}

// Cancel marks t (and therefore every descendant) cancelled.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

// Cancelled reports whether t or any ancestor has been cancelled (spec.md
// §5 "any ancestor cancellation is observed by descendants").
func (t *CancelToken) Cancelled() bool {
	for cur := t; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		done := cur.done
		cur.mu.Unlock()
		if done {
			return true
		}
	}
	return false
}

// Domain is one execution domain's worker pool: a bounded concurrency
// semaphore plus a circuit breaker that trips after repeated task panics,
// mirroring the teacher's per-domain coordinator shape (kernel/threads/
// supervisor/coordinator.go) adapted from job scheduling to the fork/join
// contract spec.md §4.6/§5 describe.
type Domain struct {
	Name           string
	MaxConcurrency int
	sem            *semaphore.Weighted
	breaker        *gobreaker.CircuitBreaker
}

func newDomain(name string, maxConcurrency int) *Domain {
	d := &Domain{Name: name, MaxConcurrency: maxConcurrency, sem: semaphore.NewWeighted(int64(maxConcurrency))}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "domain." + name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return d
}

// BreakerOpen reports whether this domain's breaker has tripped (after
// three consecutive task panics). CancelToken.Cancelled does not consult
// it, so a tripped breaker cancels no token.
func (d *Domain) BreakerOpen() bool { return d.breaker.State() == gobreaker.StateOpen }

// Parallel owns one Domain per execution domain name ("cpu", "gpu",
// "inline").
type Parallel struct {
	mu      sync.Mutex
	domains map[string]*Domain
}

// NewParallel creates the domain set with the given per-domain
// concurrency. gpu and inline always get a single worker, since this
// simulation has no real accelerator or truly-synchronous
// executor distinction beyond scheduling order.
func NewParallel(cpuConcurrency int) *Parallel {
	if cpuConcurrency < 1 {
		cpuConcurrency = 1
	}
	return &Parallel{domains: map[string]*Domain{
		"cpu":    newDomain("cpu", cpuConcurrency),
		"gpu":    newDomain("gpu", 1),
		"inline": newDomain("inline", 1),
	}}
}

func (p *Parallel) domain(name string) (*Domain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.domains[name]
	if !ok {
		return nil, &paniccode.Panic{Code: paniccode.Other, Message: "unknown execution domain " + name}
	}
	return d, nil
}

// ParallelContext is the fork/join context produced by
// runtime_parallel_begin and consumed by runtime_parallel_join (spec.md
// §4.6). At most one panic propagates; additional panics are swallowed but
// still cancel the context's token (spec.md §5 "first panic wins").
type ParallelContext struct {
	ID     string
	Name   string
	Domain *Domain
	Token  *CancelToken

	wg         sync.WaitGroup
	mu         sync.Mutex
	firstPanic *paniccode.Panic
	panicCount int
}

// Begin opens a parallel context against domainName (spec.md §4.6
// runtime_parallel_begin).
func (p *Parallel) Begin(domainName string, parent *CancelToken, name string) (*ParallelContext, error) {
	d, err := p.domain(domainName)
	if err != nil {
		return nil, err
	}
	return &ParallelContext{
		ID:     uuid.NewString(),
		Name:   name,
		Domain: d,
		Token:  NewCancelToken(parent),
	}, nil
}

// runBody executes fn under the domain's circuit breaker, capturing at
// most the first panic and cancelling the context's token on any panic
// (spec.md §5 "first panic wins").
func (pc *ParallelContext) runBody(fn func() *paniccode.Panic) {
	defer pc.Domain.sem.Release(1)
	defer pc.wg.Done()
	if pc.Token.Cancelled() {
		return
	}
	var captured *paniccode.Panic
	_, _ = pc.Domain.breaker.Execute(func() (any, error) {
		captured = fn()
		if captured != nil {
			return nil, captured
		}
		return nil, nil
	})
	if captured == nil {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.panicCount++
	if pc.firstPanic == nil {
		pc.firstPanic = captured
	}
	pc.Token.Cancel()
}

// Submit runs fn on the domain's worker pool unless the context's token is
// already cancelled; a panic fn returns is recorded for Join.
func (pc *ParallelContext) Submit(fn func() *paniccode.Panic) {
	if pc.Token.Cancelled() {
		return
	}
	if err := pc.Domain.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	pc.wg.Add(1)
	go pc.runBody(fn)
}

// Join awaits completion and re-raises the first panic, if any (spec.md
// §4.6 runtime_parallel_join).
func (pc *ParallelContext) Join() *paniccode.Panic {
	pc.wg.Wait()
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.panicCount > 1 {
		parallelLogger.Warn("parallel context swallowed additional panics",
			diag.String("name", pc.Name), diag.Int("count", pc.panicCount-1))
	}
	return pc.firstPanic
}

// ChunkResult is one chunk's outcome from RunChunks.
type ChunkResult struct {
	Start, End int
	Value      any
	Panic      *paniccode.Panic
}

// RunChunks partitions [0,total) into chunkSize-wide chunks and runs fn
// over each concurrently within domainName's pool, returning results
// ordered by chunk start regardless of completion order (spec.md §4.6
// dispatch, §5 "enqueue order into the work queue equals the source order
// of spawn/dispatch subtasks"). The caller reduces ChunkResult.Value in
// start order when Ordered is required.
func (p *Parallel) RunChunks(domainName string, total, chunkSize int, fn func(start, end int) (any, *paniccode.Panic)) ([]ChunkResult, *paniccode.Panic) {
	if chunkSize <= 0 {
		chunkSize = total
		if chunkSize == 0 {
			chunkSize = 1
		}
	}
	d, err := p.domain(domainName)
	if err != nil {
		return nil, err.(*paniccode.Panic)
	}
	var starts []int
	for s := 0; s < total; s += chunkSize {
		starts = append(starts, s)
	}
	results := make([]ChunkResult, len(starts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstPanic *paniccode.Panic
	for i, s := range starts {
		e := s + chunkSize
		if e > total {
			e = total
		}
		wg.Add(1)
		if acqErr := d.sem.Acquire(context.Background(), 1); acqErr != nil {
			wg.Done()
			continue
		}
		go func(i, s, e int) {
			defer d.sem.Release(1)
			defer wg.Done()
			v, p := fn(s, e)
			results[i] = ChunkResult{Start: s, End: e, Value: v, Panic: p}
			if p != nil {
				mu.Lock()
				if firstPanic == nil {
					firstPanic = p
				}
				mu.Unlock()
			}
		}(i, s, e)
	}
	wg.Wait()
	return results, firstPanic
}
