// Package scipmodel holds the in-memory SCIP data model shared by the
// Index-Store Reader, Storage Engine, legacy JSON emitter, and SCIP
// protobuf emitter.
package scipmodel

// Role is the 32-bit occurrence role bitmask.
type Role uint32

const (
	RoleDefinition Role = 1 << iota
	RoleImport
	RoleWriteAccess
	RoleReadAccess
	RoleGenerated
	RoleTest
)

// Has reports whether every bit in want is set in r.
func (r Role) Has(want Role) bool {
	return r&want == want
}

// SourceRange is a 0-indexed, half-open source range.
type SourceRange struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SCIP compacts a SourceRange to wire form: three integers when the range
// stays on one line, four otherwise.
func (r SourceRange) SCIP() []int32 {
	if r.StartLine == r.EndLine {
		return []int32{int32(r.StartLine), int32(r.StartCol), int32(r.EndCol)}
	}
	return []int32{int32(r.StartLine), int32(r.StartCol), int32(r.EndLine), int32(r.EndCol)}
}

// Kind enumerates the internal symbol kind enumeration (see Glossary: Kind mapping).
type Kind string

const (
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindProtocol  Kind = "protocol"
	KindEnum      Kind = "enum"
	KindFunction  Kind = "function"
	KindProperty  Kind = "property"
	KindEnumCase  Kind = "enum-case"
	KindTypeAlias Kind = "type-alias"
	KindLocal     Kind = "local"
	KindUnknown   Kind = "unknown"
)

// RelationshipKind is the label on a directed symbol-to-symbol edge.
type RelationshipKind string

const (
	RelConforms  RelationshipKind = "conforms"
	RelInherits  RelationshipKind = "inherits"
	RelOverrides RelationshipKind = "overrides"
)

// Symbol is a definable named entity.
type Symbol struct {
	SymbolID        string
	Kind            Kind
	Module          string // optional; empty when unknown
	Documentation   []string
	DefiningDocPath string // project-relative path of the defining document
}

// Occurrence is one textual appearance of a symbol in a document.
type Occurrence struct {
	SymbolID        string
	DocPath         string
	Range           SourceRange
	Roles           Role
	Snippet         string // optional, empty when unavailable
	EnclosingSymbol string // optional, empty when none
}

// Relationship is a directed edge from one symbol to another.
type Relationship struct {
	SymbolID       string
	TargetSymbolID string
	Kind           RelationshipKind
}

// Document is one source file. The Storage Engine derives a document's
// Symbols/Occurrences membership from the flat lists an Index carries — a
// Document here is only the file-level identity and metadata.
type Document struct {
	RelPath   string
	Language  string
	IndexedAt int64 // unix seconds
}

// Metadata is the key–value block recorded once per full rebuild.
type Metadata struct {
	Version              int
	ToolName             string
	ToolVersion           string
	ToolArguments        []string
	ProjectRoot          string
	TextDocumentEncoding string
}

// IndexState is the singleton record used for change detection.
type IndexState struct {
	Commit       string
	IndexedAt    int64
	IndexedPaths []string
}

// Index is the full set of flat records produced by one Reader pass. The
// Storage Engine groups Symbols and Occurrences by their DocPath/
// DefiningDocPath when writing documents.
type Index struct {
	Metadata      Metadata
	Symbols       []Symbol
	Occurrences   []Occurrence
	Relationships []Relationship
}

