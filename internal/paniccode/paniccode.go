// Package paniccode defines the stable panic-code and runtime-error
// taxonomy shared by the analyzer, the lowering pass, the interpreter, and
// the runtime contract.
package paniccode

// Code is a two-byte panic code, stable across lowering, the interpreter,
// and the runtime (spec.md §7).
type Code uint16

const (
	ErrorExpr    Code = 0x0001
	ErrorStmt    Code = 0x0002
	DivZero      Code = 0x0003
	Overflow     Code = 0x0004
	Shift        Code = 0x0005
	Bounds       Code = 0x0006
	Cast         Code = 0x0007
	NullDeref    Code = 0x0008
	ExpiredDeref Code = 0x0009
	InitPanic    Code = 0x000A
	Other        Code = 0x00FF
)

var names = map[Code]string{
	ErrorExpr:    "ErrorExpr",
	ErrorStmt:    "ErrorStmt",
	DivZero:      "DivZero",
	Overflow:     "Overflow",
	Shift:        "Shift",
	Bounds:       "Bounds",
	Cast:         "Cast",
	NullDeref:    "NullDeref",
	ExpiredDeref: "ExpiredDeref",
	InitPanic:    "InitPanic",
	Other:        "Other",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "Unknown"
}

// Panic is the value carried across the Σ/interpreter boundary and the
// lowered-IR/runtime-ABI boundary when a panic is raised. It is always a
// value, never a Go error, so it can be stored in the out-parameter panic
// record described in spec.md §7.
type Panic struct {
	Code    Code
	Message string
}

func (p *Panic) Error() string {
	if p.Message == "" {
		return p.Code.String()
	}
	return p.Code.String() + ": " + p.Message
}

// New constructs a Panic for the given code with an optional diagnostic
// message (never part of the stable contract, for humans only).
func New(code Code, message string) *Panic {
	return &Panic{Code: code, Message: message}
}

// IOError is a runtime-originated IO failure (spec.md §7).
type IOError int

const (
	NotFound IOError = iota
	PermissionDenied
	AlreadyExists
	InvalidPath
	Busy
	IoFailure
)

func (e IOError) String() string {
	switch e {
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case AlreadyExists:
		return "AlreadyExists"
	case InvalidPath:
		return "InvalidPath"
	case Busy:
		return "Busy"
	case IoFailure:
		return "IoFailure"
	default:
		return "IoFailure"
	}
}

// AllocError distinguishes the two allocation-failure discriminants of
// spec.md §6/§7.
type AllocError int

const (
	OutOfMemory AllocError = iota
	QuotaExceeded
)

func (e AllocError) String() string {
	if e == QuotaExceeded {
		return "QuotaExceeded"
	}
	return "OutOfMemory"
}

// PanicRecord is the out-parameter panic record a caller observes after a
// user procedure call (spec.md §7): {panicked, code}.
type PanicRecord struct {
	Panicked bool
	Code     Code
}

func (r *PanicRecord) Set(code Code) {
	r.Panicked = true
	r.Code = code
}

func (r *PanicRecord) Clear() {
	r.Panicked = false
	r.Code = 0
}
