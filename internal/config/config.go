// Package config holds the small set of knobs the middle-end reads at
// startup, mirroring the teacher's RoleConfig/LoggerConfig constant-driven
// configuration shape (kernel/runtime/role.go, kernel/utils/logger.go)
// rather than a generic config-file framework the teacher never uses.
package config

import (
	"os"
	"time"
)

// TraceEnvVar is the single environment variable the runtime contract
// honors (spec.md §6 Environment).
const TraceEnvVar = "CURSIVE_SPEC_TRACE_RUNTIME"

// CompilerConfig holds the knobs needed by the analyzer, lowering, and
// the simulated runtime contract.
type CompilerConfig struct {
	// TracePath is the file spec-tagged runtime operations append TSV
	// lines to. Empty disables tracing.
	TracePath string

	// TraceRotateBytes rotates and brotli-compresses the trace file once
	// its live segment crosses this size. Zero disables rotation.
	TraceRotateBytes int64

	// HeapQuotaBytes is the default quota handed to heap.with_quota when
	// the caller does not request a specific quota.
	HeapQuotaBytes uint64

	// HeapQuotaRate bounds the number of allocation requests per second a
	// quota sub-allocator accepts (internal/runtime rate limiter).
	HeapQuotaRate int

	// DispatchChunkSize is the default chunk size for `dispatch` when the
	// source does not specify one.
	DispatchChunkSize int

	// MaxConcurrency bounds the cpu execution domain's worker pool size.
	MaxConcurrency int

	// NicheOptimization records whether the two-state niche layout
	// optimization of spec.md §4.7/§9 is enabled; it defaults to true.
	// internal/layout does not read this field: it applies the niche
	// layout to every qualifying two-state modal whatever its value.
	NicheOptimization bool

	// FSRoot is the base directory a `restricted(base)` filesystem handle
	// canonicalizes paths against.
	FSRoot string
}

// Default returns the configuration used when the environment specifies
// nothing else.
func Default() CompilerConfig {
	return CompilerConfig{
		TracePath:         os.Getenv(TraceEnvVar),
		TraceRotateBytes:  8 << 20,
		HeapQuotaBytes:    64 << 20,
		HeapQuotaRate:     10000,
		DispatchChunkSize: 1024,
		MaxConcurrency:    8,
		NicheOptimization: true,
		FSRoot:            "",
	}
}

// TraceEnabled reports whether a trace path is configured.
func (c CompilerConfig) TraceEnabled() bool { return c.TracePath != "" }

// DefaultTimeout is a 30-second duration constant. No code in this module
// reads it: ParallelContext.Join and the other fan-in waits in
// internal/runtime block until their tasks finish, with no deadline.
const DefaultTimeout = 30 * time.Second
