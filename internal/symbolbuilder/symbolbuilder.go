// Package symbolbuilder derives SCIP symbol-ID strings from the opaque
// Unified Symbol Resolution (USR) strings and kind/module metadata the
// compiler's index store exposes. Build is a pure function: the same inputs
// always produce the same symbol-ID, which is what lets an unchanged source
// file reindex to bit-identical symbol records.
package symbolbuilder

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

const swiftUSRPrefix = "s:"

// typeLikeKinds get the "#" suffix; everything else is resolved below.
var typeLikeKinds = map[scipmodel.Kind]bool{
	scipmodel.KindClass:     true,
	scipmodel.KindStruct:    true,
	scipmodel.KindProtocol:  true,
	scipmodel.KindEnum:      true,
	scipmodel.KindTypeAlias: true,
}

// suffix returns the descriptor suffix token for a kind.
func suffix(kind scipmodel.Kind) string {
	switch {
	case typeLikeKinds[kind]:
		return "#"
	case kind == scipmodel.KindFunction:
		return "()."
	case kind == scipmodel.KindProperty, kind == scipmodel.KindEnumCase:
		return "."
	default:
		return ""
	}
}

// Build maps (usr, name, kind, module, container) to a SCIP symbol-ID string.
// container may be empty. Build never returns an error: a malformed or
// non-Swift USR simply falls into the local-ID branch.
func Build(usr, name string, kind scipmodel.Kind, module, container string) string {
	if !strings.HasPrefix(usr, swiftUSRPrefix) || module == "" {
		return localID(usr)
	}

	descriptor := name + suffix(kind)
	if container != "" {
		descriptor = container + "#" + descriptor
	}

	return fmt.Sprintf("swift %s %s", module, descriptor)
}

// localID synthesizes a local, non-exported symbol-ID: the literal token
// "local" followed by a stable non-negative decimal fingerprint of usr.
// FNV-1a is used instead of a runtime string hash because its output must be
// reproducible across separate indexing processes.
func localID(usr string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(usr))
	return fmt.Sprintf("local %d", h.Sum64())
}

// IsLocal reports whether a symbol-ID produced by Build names a local,
// never-exported symbol.
func IsLocal(symbolID string) bool {
	return strings.HasPrefix(symbolID, "local ")
}
