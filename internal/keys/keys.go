// Package keys implements the Key & Capability Analyzer (spec.md §4.5):
// path-based key acquisition with prefix-overlap conflict detection,
// branch-join intersection merge, and the ambient Context capability
// record threaded through fs/heap/reactor/cpu/gpu/inline operations.
package keys

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/value"
)

var logger = diag.DefaultLogger("keys")

// Context is the capability record threaded through every procedure that
// needs it (spec.md §3 Context): which execution domains and ambient
// services are reachable from the current call.
type Context struct {
	FS      bool
	Heap    bool
	Reactor bool
	CPU     bool
	GPU     bool
	Inline  bool
}

// Require reports an error if any requested capability is absent from c.
func (c Context) Require(fs, heap, reactor bool) error {
	if fs && !c.FS {
		return fmt.Errorf("keys: operation requires fs capability, which this Context does not carry")
	}
	if heap && !c.Heap {
		return fmt.Errorf("keys: operation requires heap capability, which this Context does not carry")
	}
	if reactor && !c.Reactor {
		return fmt.Errorf("keys: operation requires reactor capability, which this Context does not carry")
	}
	return nil
}

// RequireDomain checks that exactly one of cpu()/gpu()/inline() is both
// requested and available.
func (c Context) RequireDomain(domain string) error {
	switch domain {
	case "cpu":
		if !c.CPU {
			return fmt.Errorf("keys: cpu execution domain not available in this Context")
		}
	case "gpu":
		if !c.GPU {
			return fmt.Errorf("keys: gpu execution domain not available in this Context")
		}
	case "inline":
		if !c.Inline {
			return fmt.Errorf("keys: inline execution domain not available in this Context")
		}
	default:
		return fmt.Errorf("keys: unknown execution domain %q", domain)
	}
	return nil
}

// Handle is the acquired capability returned by Acquire; Release gives it
// back.
type Handle struct {
	Path      value.TypePath
	Mode      ast.KeyMode
	Modifiers ast.KeyModifier
}

type heldKey struct {
	Path    value.TypePath
	Mode    ast.KeyMode
	Dynamic bool
}

// KeyContext tracks the set of key paths currently held within a lexical
// key block, with prefix-overlap conflict detection and a Bloom-filter
// fast path that skips the exact walk when no held prefix could possibly
// overlap the requested path (spec.md §4.5; fast/slow-path structure
// modeled on kernel/threads/supervisor/region_guard.go's writer-mask
// check before a CAS attempt).
type KeyContext struct {
	held       []heldKey
	filter     *bloom.BloomFilter
	violations int
}

func New() *KeyContext {
	return &KeyContext{filter: bloom.NewWithEstimates(1024, 0.01)}
}

// pathPrefixes returns every non-empty dotted prefix of p, including p
// itself: for a.b.c that is ["a", "a.b", "a.b.c"].
func pathPrefixes(p value.TypePath) []string {
	out := make([]string, 0, len(p.Segments))
	for i := range p.Segments {
		out = append(out, strings.Join(p.Segments[:i+1], "."))
	}
	return out
}

// Covers reports whether a and b overlap by prefix: one path is a prefix
// of the other (spec.md §4.5 "prefix overlap").
func Covers(a, b value.TypePath) bool {
	n := len(a.Segments)
	if len(b.Segments) < n {
		n = len(b.Segments)
	}
	for i := 0; i < n; i++ {
		if a.Segments[i] != b.Segments[i] {
			return false
		}
	}
	return true
}

// mayConflict is the Bloom-filter provisional screen: if none of the
// requested path's prefixes were ever inserted, no held key can possibly
// overlap it and the exact walk can be skipped.
func (kc *KeyContext) mayConflict(path value.TypePath) bool {
	for _, prefix := range pathPrefixes(path) {
		if kc.filter.TestString(prefix) {
			return true
		}
	}
	return false
}

func conflictingModes(existingMode, mode ast.KeyMode, existingDynamic, dynamic bool) bool {
	if existingDynamic || dynamic {
		// A dynamic key's exact path is not known until runtime; treat it
		// conservatively as overlapping everything it could possibly reach.
		return true
	}
	if existingMode == ast.KeyRead && mode == ast.KeyRead {
		return false
	}
	return true
}

// Acquire takes a key at path with the given mode, reporting a conflict
// error if an already-held key overlaps it incompatibly (spec.md §4.5).
func (kc *KeyContext) Acquire(path value.TypePath, mode ast.KeyMode, mods ast.KeyModifier) (*Handle, error) {
	dynamic := mods&ast.KeyModDynamic != 0
	if dynamic || kc.mayConflict(path) {
		for _, h := range kc.held {
			if !dynamic && !h.Dynamic && !Covers(h.Path, path) {
				continue
			}
			if conflictingModes(h.Mode, mode, h.Dynamic, dynamic) {
				kc.violations++
				logger.Warn("key conflict", diag.String("path", path.String()), diag.Int("violations", kc.violations))
				return nil, fmt.Errorf("keys: acquiring %q %v conflicts with already-held %q %v", path.String(), mode, h.Path.String(), h.Mode)
			}
		}
	}
	kc.held = append(kc.held, heldKey{Path: path, Mode: mode, Dynamic: dynamic})
	for _, prefix := range pathPrefixes(path) {
		kc.filter.AddString(prefix)
	}
	return &Handle{Path: path, Mode: mode, Modifiers: mods}, nil
}

// Release gives back a previously acquired key. The Bloom filter is
// append-only (bloom filters do not support deletion); releasing only
// shrinks kc.held, so a later Acquire may walk one extra, harmless
// filter hit.
func (kc *KeyContext) Release(h *Handle) {
	for i, held := range kc.held {
		if held.Path.String() == h.Path.String() && held.Mode == h.Mode {
			kc.held = append(kc.held[:i], kc.held[i+1:]...)
			return
		}
	}
}

// Clone makes an independent copy of kc for a branch arm (spec.md §4.5
// Clone).
func (kc *KeyContext) Clone() *KeyContext {
	out := New()
	out.held = append([]heldKey(nil), kc.held...)
	for _, h := range out.held {
		for _, prefix := range pathPrefixes(h.Path) {
			out.filter.AddString(prefix)
		}
	}
	return out
}

// Merge combines two branch KeyContexts by intersection: a key survives
// the join only if both branches still held it (spec.md §4.5 Merge,
// grounded on the documented Clone/Merge discipline of
// key_context.cpp). Held keys with incompatible modes for the same path
// across branches are dropped rather than guessed at.
func Merge(a, b *KeyContext) *KeyContext {
	out := New()
	for _, ha := range a.held {
		for _, hb := range b.held {
			if ha.Path.String() == hb.Path.String() && ha.Mode == hb.Mode && ha.Dynamic == hb.Dynamic {
				out.held = append(out.held, ha)
				break
			}
		}
	}
	for _, h := range out.held {
		for _, prefix := range pathPrefixes(h.Path) {
			out.filter.AddString(prefix)
		}
	}
	return out
}

// Held reports the key paths currently held, for diagnostics/tests.
func (kc *KeyContext) Held() []value.TypePath {
	out := make([]value.TypePath, len(kc.held))
	for i, h := range kc.held {
		out[i] = h.Path
	}
	return out
}

// Violations returns the number of conflicts Acquire has rejected.
func (kc *KeyContext) Violations() int { return kc.violations }
