// Package abi defines the runtime ABI layout constants both the backend
// (via internal/layout and internal/lower) and the simulated runtime
// contract (internal/runtime) must agree on (spec.md §6).
package abi

// PointerSize is the size in bytes of a pointer on the target ABI.
const PointerSize = 8

// DynObject is the fat-pointer layout for dynamic dispatch objects and for
// Context's capability fields: {data: ptr, vtable: ptr}.
type DynObject struct {
	Size  uint64
	Align uint64
}

// DynObjectLayout is the fixed two-pointer layout shared by every dyn
// object and capability field.
var DynObjectLayout = DynObject{Size: 2 * PointerSize, Align: PointerSize}

// ErrorUnionDisc is the discriminant convention for T|E error unions:
// disc=0 means "error", disc=1 means "ok" (spec.md §6).
type ErrorUnionDisc uint8

const (
	ErrorUnionErr ErrorUnionDisc = 0
	ErrorUnionOk  ErrorUnionDisc = 1
)

// NarrowErrorUnion is true for the two error-union shapes the ABI special
// cases into a single-byte payload: Unit|IoError and FileKind|IoError,
// represented as {u8 disc, u8 payload} instead of {u8 disc, padding,
// payload}.
func NarrowErrorUnion(okType, errType string) bool {
	if errType != "IoError" {
		return false
	}
	return okType == "Unit" || okType == "FileKind"
}

// AllocErrorDisc mirrors paniccode.AllocError's wire discriminant:
// OutOfMemory=0, QuotaExceeded=1.
type AllocErrorDisc uint8

const (
	AllocErrorOutOfMemory    AllocErrorDisc = 0
	AllocErrorQuotaExceeded  AllocErrorDisc = 1
)

// FileHandle and DirIterHandle are opaque 64-bit handles (spec.md §6).
type FileHandle uint64
type DirIterHandle uint64
