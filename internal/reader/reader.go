// Package reader implements the Index-Store Reader: it drives an
// indexstore.Store, maps compiler records through the Symbol Builder, and
// produces normalized scipmodel records.
package reader

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Fostonger/swiftscip/internal/indexstore"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
	"github.com/Fostonger/swiftscip/internal/snippet"
	"github.com/Fostonger/swiftscip/internal/symbolbuilder"
)

const sourceExtension = ".swift"

// kindMapping maps the compiler's kind strings to the internal kind
// enumeration (Glossary: Kind mapping).
var kindMapping = map[string]scipmodel.Kind{
	"class":            scipmodel.KindClass,
	"struct":           scipmodel.KindStruct,
	"protocol":         scipmodel.KindProtocol,
	"enum":             scipmodel.KindEnum,
	"typealias":        scipmodel.KindTypeAlias,
	"instance-method":  scipmodel.KindFunction,
	"class-method":     scipmodel.KindFunction,
	"static-method":    scipmodel.KindFunction,
	"function":         scipmodel.KindFunction,
	"instance-property": scipmodel.KindProperty,
	"class-property":   scipmodel.KindProperty,
	"static-property":  scipmodel.KindProperty,
	"variable":         scipmodel.KindProperty,
	"enum-constant":    scipmodel.KindEnumCase,
	"parameter":        scipmodel.KindLocal,
}

func mapKind(compilerKind string) scipmodel.Kind {
	if k, ok := kindMapping[compilerKind]; ok {
		return k
	}
	return scipmodel.KindUnknown
}

// extractModule parses the module name out of a mangled Swift USR by
// reading the length-prefixed name following "s:". This heuristic is
// fragile for nested contexts.
func extractModule(usr string) string {
	const prefix = "s:"
	if !strings.HasPrefix(usr, prefix) {
		return ""
	}
	rest := usr[len(prefix):]

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return ""
	}

	n, err := strconv.Atoi(rest[:i])
	if err != nil || n <= 0 || n > len(rest)-i {
		return ""
	}
	return rest[i : i+n]
}

type usrInfo struct {
	name   string
	kind   scipmodel.Kind
	module string
	id     string
}

// Reader harvests symbols, occurrences, and relationships from a Store.
type Reader struct {
	store           indexstore.Store
	projectRoot     string
	includeSnippets bool
	snippets        *snippet.Extractor

	usrs          map[string]usrInfo
	relationships []scipmodel.Relationship
}

// New constructs a Reader over an already-opened Store.
func New(store indexstore.Store, projectRoot string, includeSnippets bool) *Reader {
	return &Reader{
		store:           store,
		projectRoot:     projectRoot,
		includeSnippets: includeSnippets,
		snippets:        snippet.New(),
	}
}

// CollectSymbols walks every canonical occurrence, deduplicates by USR, and
// builds a symbol-ID for each via the Symbol Builder.
// It also collects inherits/overrides relationships from each occurrence's
// relation list. Errors from the underlying store are fatal.
func (r *Reader) CollectSymbols() ([]scipmodel.Symbol, []scipmodel.Relationship, error) {
	var ordered []indexstore.CanonicalOccurrence
	seen := make(map[string]bool)

	err := r.store.CanonicalOccurrences(func(co indexstore.CanonicalOccurrence) bool {
		if seen[co.USR] {
			return true
		}
		seen[co.USR] = true
		ordered = append(ordered, co)
		return true
	})
	if err != nil {
		return nil, nil, err
	}

	r.usrs = make(map[string]usrInfo, len(ordered))
	for _, co := range ordered {
		kind := mapKind(co.Kind)
		module := extractModule(co.USR)
		id := symbolbuilder.Build(co.USR, co.Name, kind, module, "")
		r.usrs[co.USR] = usrInfo{name: co.Name, kind: kind, module: module, id: id}
	}

	symbols := make([]scipmodel.Symbol, 0, len(ordered))
	r.relationships = nil
	for _, co := range ordered {
		info := r.usrs[co.USR]
		symbols = append(symbols, scipmodel.Symbol{
			SymbolID: info.id,
			Kind:     info.kind,
			Module:   info.module,
		})

		for _, rel := range co.Relations {
			var kind scipmodel.RelationshipKind
			switch {
			case rel.IsBaseOf:
				kind = scipmodel.RelInherits
			case rel.IsOverrideOf:
				kind = scipmodel.RelOverrides
			default:
				continue
			}
			r.relationships = append(r.relationships, scipmodel.Relationship{
				SymbolID:       info.id,
				TargetSymbolID: r.symbolIDFor(rel.USR, rel.Name),
				Kind:           kind,
			})
		}
	}

	return symbols, r.relationships, nil
}

// CollectRelationships returns the relationships gathered by the most
// recent CollectSymbols call.
func (r *Reader) CollectRelationships() []scipmodel.Relationship {
	return r.relationships
}

// symbolIDFor resolves a related USR to a symbol-ID, preferring the exact
// kind/module recorded for it as a canonical occurrence and falling back to
// an unknown-kind build otherwise.
func (r *Reader) symbolIDFor(usr, name string) string {
	if info, ok := r.usrs[usr]; ok {
		return info.id
	}
	return symbolbuilder.Build(usr, name, scipmodel.KindUnknown, extractModule(usr), "")
}

// CollectOccurrences enumerates every occurrence of every USR seen by
// CollectSymbols, filtered by an optional whitelist of project-relative
// paths (nil means "all files"). CollectSymbols must be called first.
func (r *Reader) CollectOccurrences(whitelist map[string]bool) ([]scipmodel.Occurrence, error) {
	usrs := make([]string, 0, len(r.usrs))
	for usr := range r.usrs {
		usrs = append(usrs, usr)
	}
	sort.Strings(usrs) // deterministic enumeration order

	var result []scipmodel.Occurrence
	for _, usr := range usrs {
		info := r.usrs[usr]
		// Per-USR enumeration failures are skipped, never fatal.
		_ = r.store.OccurrencesForUSR(usr, func(raw indexstore.RawOccurrence) bool {
			relPath := r.relativePath(raw.AbsolutePath)
			if whitelist != nil && !whitelist[relPath] {
				return true
			}
			if !strings.HasSuffix(relPath, sourceExtension) {
				return true
			}

			startLine := raw.Line - 1
			endCol := raw.UTF8Column + len([]byte(info.name))
			rng := scipmodel.SourceRange{
				StartLine: startLine,
				StartCol:  raw.UTF8Column,
				EndLine:   startLine,
				EndCol:    endCol,
			}

			occ := scipmodel.Occurrence{
				SymbolID: info.id,
				DocPath:  relPath,
				Range:    rng,
				Roles:    scipmodel.Role(raw.Roles),
			}

			for _, rel := range raw.Relations {
				if rel.IsChildOf {
					occ.EnclosingSymbol = r.symbolIDFor(rel.USR, rel.Name)
					break
				}
			}

			if r.includeSnippets {
				if line, ok := r.snippets.Get(raw.AbsolutePath, raw.Line); ok {
					occ.Snippet = line
				}
			}

			result = append(result, occ)
			return true
		})
	}

	return result, nil
}

// relativePath strips the project root from an absolute path. Paths outside
// the project root are returned unchanged — callers decide policy.
func (r *Reader) relativePath(absPath string) string {
	rel, ok := strings.CutPrefix(absPath, r.projectRoot)
	if !ok {
		return absPath
	}
	return strings.TrimPrefix(rel, "/")
}
