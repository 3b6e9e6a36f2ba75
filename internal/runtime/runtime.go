// Package runtime simulates the C-ABI surface spec.md §4.9 and §6 require
// of the downstream runtime: heap/fs/parallel/trace/context capabilities
// exposed to both lowered code and the interpreter. It is grounded on the
// teacher's arena allocator, coordinator, and capability-record shapes
// (kernel/threads/arena, kernel/threads/supervisor, kernel/runtime),
// adapted from a byte-offset SharedArrayBuffer arena to the quota/rate/
// cancel-token/trace concerns this spec actually names.
package runtime

import "github.com/cursivelang/corec/internal/config"

// Runtime bundles the capability set a program execution needs, built
// once at program start (spec.md §4.9 "one Context is constructed at
// program start").
type Runtime struct {
	Root *Context
	cfg  config.CompilerConfig
}

// New builds a Runtime from cfg.
func New(cfg config.CompilerConfig) *Runtime {
	return &Runtime{Root: NewContext(cfg), cfg: cfg}
}

// Config returns the configuration the Runtime was built from.
func (r *Runtime) Config() config.CompilerConfig { return r.cfg }

// Close releases any open resources (the trace file, principally).
func (r *Runtime) Close() error {
	if r.Root == nil || r.Root.Trace == nil {
		return nil
	}
	return r.Root.Trace.Close()
}
