package layout

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/cursivelang/corec/internal/abi"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
	"lukechampine.com/blake3"
)

// VTableEntry is one resolved method slot: the class's declared name and
// the mangled symbol that backs it (either the impl's own override or the
// class's default body, spec.md §4.7 "default-method resolution").
type VTableEntry struct {
	Name   string
	Symbol string
}

// VTable is the emitted dispatch table: {size, align, drop_sym,
// methods...} (spec.md §4.7 verbatim layout). Slot i in Methods is read
// at vtable index i+3 by ir.CallVTable, the first three slots being
// size/align/drop_sym.
type VTable struct {
	Size    uint64
	Align   uint64
	DropSym string
	Methods []VTableEntry
}

// BuildVTable resolves every method the class declares against impl's
// overrides, falling back to the class's default-body symbol, and errors
// if a method has neither (spec.md §4.7).
func BuildVTable(cls sigma.ClassDecl, impl sigma.Impl, dropSym string, defaultSym func(classPath value.TypePath, method string) string) (VTable, error) {
	methods := make([]VTableEntry, len(cls.Methods))
	for i, m := range cls.Methods {
		if sym, ok := impl.Overrides[m.Name]; ok {
			methods[i] = VTableEntry{Name: m.Name, Symbol: sym.String()}
			continue
		}
		if !m.HasDefault {
			return VTable{}, fmt.Errorf("impl of %s for %s does not override %q and the class has no default body", cls.Path.String(), impl.TargetType.String(), m.Name)
		}
		methods[i] = VTableEntry{Name: m.Name, Symbol: defaultSym(cls.Path, m.Name)}
	}
	return VTable{
		Size:    abi.PointerSize * uint64(3+len(methods)),
		Align:   abi.PointerSize,
		DropSym: dropSym,
		Methods: methods,
	}, nil
}

// Slot returns the vtable index of method within cls's method list (the
// declaration order, spec.md §4.7 "index is the vtable slot"), or -1.
func Slot(cls sigma.ClassDecl, method string) int {
	for i, m := range cls.Methods {
		if m.Name == method {
			return i
		}
	}
	return -1
}

// Mangle produces a stable dispatch symbol for path, grounded on
// ir_lowering.cpp's deterministic-symbol convention but hashed with
// blake3 instead of a string-concatenation scheme, so that arbitrarily
// long generic/module paths still yield a fixed-width symbol (SPEC_FULL §2
// domain-stack note).
func Mangle(path value.TypePath) string {
	sum := blake3.Sum256([]byte(path.String()))
	return "_C" + hex.EncodeToString(sum[:16])
}

// MangleMethod produces the mangled symbol for a class method or impl
// override, keyed by class path, target type, and method name.
func MangleMethod(classPath value.TypePath, targetType value.TypeRef, method string) string {
	sum := blake3.Sum256([]byte(classPath.String() + "::" + targetType.String() + "::" + method))
	return "_CM" + hex.EncodeToString(sum[:16])
}

// MangleDefault produces the mangled symbol for a class's own default
// method body (used when an impl does not override it).
func MangleDefault(classPath value.TypePath, method string) string {
	sum := blake3.Sum256([]byte(classPath.String() + "::default::" + method))
	return "_CD" + hex.EncodeToString(sum[:16])
}

// Cache memoizes arbitrary layout-keyed values (records, enums, vtables)
// under a blake3 digest of their cache key, so repeated lowering of the
// same generic instantiation or dynamic dispatch site does not recompute
// layout (spec.md §4.7 "layout results are memoized").
type Cache struct {
	mu      sync.Mutex
	entries map[string]any
}

func NewCache() *Cache { return &Cache{entries: map[string]any{}} }

func cacheKey(parts ...string) string {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
		buf = append(buf, 0)
	}
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached value for the key formed from parts, or
// computes it with fn, stores it, and returns it.
func (c *Cache) GetOrCompute(fn func() any, parts ...string) any {
	key := cacheKey(parts...)
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	v := fn()

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v
}
