package lower

import (
	"github.com/cursivelang/corec/internal/layout"
	"github.com/cursivelang/corec/internal/sigma"
)

// dispatchSlot resolves a method name to its vtable slot for a class
// declaration (spec.md §4.7 "index is the vtable slot"). cls arrives as
// `any` from expr.go's lowerMethodCall to keep that file's import list free
// of internal/layout for the common (non-dynamic) call path; this is the
// one place the two meet.
func dispatchSlot(cls any, method string) int {
	decl, ok := cls.(sigma.ClassDecl)
	if !ok {
		return -1
	}
	return layout.Slot(decl, method)
}
