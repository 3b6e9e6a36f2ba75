package runtime

import (
	"github.com/cursivelang/corec/internal/config"
)

// Reactor is the stubbed async I/O capability referenced by Context but
// not otherwise exercised by the interpreter's synchronous evaluation
// model (spec.md §4.9 "the reactor capability is present in Context for
// ABI completeness; this simulation never schedules work on it").
type Reactor struct{}

// Context is the capability record threaded through a program's
// execution: the three DynObject-shaped capability fields (fs, heap,
// reactor) plus the execution-domain pool and trace sink spec.md §4.9
// groups under "Context" and "Domain'.
type Context struct {
	FS       *FileSystem
	Heap     *HeapAllocator
	Reactor  *Reactor
	Parallel *Parallel
	Trace    *Tracer
	Token    *CancelToken
}

// NewContext builds the root Context from a CompilerConfig (spec.md §4.9:
// "one Context is constructed at program start from the ambient
// configuration and threaded to main").
func NewContext(cfg config.CompilerConfig) *Context {
	return &Context{
		FS:       NewFileSystem(),
		Heap:     NewHeapAllocator(cfg.HeapQuotaBytes, cfg.HeapQuotaRate),
		Reactor:  &Reactor{},
		Parallel: NewParallel(cfg.MaxConcurrency),
		Trace:    NewTracer(cfg),
		Token:    NewCancelToken(nil),
	}
}

// WithQuota narrows ctx's heap capability to an additional n-byte quota,
// leaving fs/reactor/parallel/trace shared with the parent (spec.md §4.9
// heap.with_quota threading through Context.child()).
func (c *Context) WithQuota(n uint64) *Context {
	child := *c
	child.Heap = c.Heap.WithQuota(n)
	return &child
}

// Restricted narrows ctx's filesystem capability to base, leaving every
// other capability shared with the parent.
func (c *Context) Restricted(base string) *Context {
	child := *c
	child.FS = c.FS.Restricted(base)
	return &child
}

// Child derives a context scoped to a new cancel token chained under
// ctx's, for a nested parallel/spawn region (spec.md §5 cancel-token
// tree).
func (c *Context) Child() *Context {
	child := *c
	child.Token = NewCancelToken(c.Token)
	return &child
}
