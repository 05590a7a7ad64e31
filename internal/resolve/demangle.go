package resolve

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangle returns the Itanium C++ demangled form of name, or name itself
// when it is not a valid mangled symbol. Mach-O symbols carry an extra
// leading underscore ("__Z...") which is removed before demangling.
func Demangle(name string) string {
	mangled := name
	if strings.HasPrefix(mangled, "__Z") {
		mangled = mangled[1:]
	}
	if !strings.HasPrefix(mangled, "_Z") {
		return name
	}
	out, err := demangle.ToString(mangled, demangle.NoRust)
	if err != nil {
		return name
	}
	return out
}

// NamesMatch reports whether two symbol names are equal once both are
// demangled.
func NamesMatch(a, b string) bool {
	return Demangle(a) == Demangle(b)
}
