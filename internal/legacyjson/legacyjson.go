// Package legacyjson implements the legacy JSON emitter: a single JSON
// document grouping symbols, occurrences, and relationships by document,
// produced instead of the relational back-end when the orchestrator falls
// into legacy mode (no VCS, or --json requested).
package legacyjson

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

// Document is one entry in the top-level documents array.
type Document struct {
	RelativePath string         `json:"relativePath"`
	Language     string         `json:"language"`
	Symbols      []Symbol       `json:"symbols"`
	Occurrences  []Occurrence   `json:"occurrences"`
}

// Symbol mirrors a scipmodel.Symbol for wire output.
type Symbol struct {
	Symbol        string          `json:"symbol"`
	Kind          string          `json:"kind"`
	Documentation []string        `json:"documentation,omitempty"`
	Relationships []Relationship  `json:"relationships,omitempty"`
}

// Relationship mirrors a scipmodel.Relationship, recoded into the legacy
// isImplementation/isTypeDefinition boolean pair: conforms/overrides map to
// isImplementation, inherits maps to isTypeDefinition.
type Relationship struct {
	Symbol            string `json:"symbol"`
	IsImplementation  bool   `json:"isImplementation,omitempty"`
	IsTypeDefinition  bool   `json:"isTypeDefinition,omitempty"`
}

// Occurrence mirrors a scipmodel.Occurrence for wire output.
type Occurrence struct {
	Symbol          string `json:"symbol"`
	Range           []int  `json:"range"`
	SymbolRoles     uint32 `json:"symbolRoles"`
	EnclosingSymbol string `json:"enclosingSymbol,omitempty"`
	Snippet         string `json:"snippet,omitempty"`
}

// ToolInfo describes the program that produced the index.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Metadata is the top-level metadata block.
type Metadata struct {
	Version              int      `json:"version"`
	ToolInfo             ToolInfo `json:"toolInfo"`
	ProjectRoot          string   `json:"projectRoot"`
	TextDocumentEncoding string   `json:"textDocumentEncoding"`
}

// Index is the single top-level JSON object written to disk.
type Index struct {
	Metadata  Metadata   `json:"metadata"`
	Documents []Document `json:"documents"`
}

const language = "swift"

// Build groups symbols, occurrences, and relationships into the legacy
// per-document shape and sorts documents by relative path for reproducible
// output.
func Build(meta scipmodel.Metadata, symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence, relationships []scipmodel.Relationship) Index {
	definingDoc := make(map[string]string, len(symbols))
	for _, occ := range occurrences {
		if occ.Roles.Has(scipmodel.RoleDefinition) {
			definingDoc[occ.SymbolID] = occ.DocPath
		}
	}

	relsBySymbol := make(map[string][]Relationship)
	for _, rel := range relationships {
		relsBySymbol[rel.SymbolID] = append(relsBySymbol[rel.SymbolID], toLegacyRelationship(rel))
	}

	docs := make(map[string]*Document)
	docOf := func(path string) *Document {
		d, ok := docs[path]
		if !ok {
			d = &Document{RelativePath: path, Language: language}
			docs[path] = d
		}
		return d
	}

	for _, occ := range occurrences {
		d := docOf(occ.DocPath)
		d.Occurrences = append(d.Occurrences, toLegacyOccurrence(occ))
	}

	for _, sym := range symbols {
		path, ok := definingDoc[sym.SymbolID]
		if !ok {
			continue
		}
		d := docOf(path)
		d.Symbols = append(d.Symbols, Symbol{
			Symbol:        sym.SymbolID,
			Kind:          string(sym.Kind),
			Documentation: sym.Documentation,
			Relationships: relsBySymbol[sym.SymbolID],
		})
	}

	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ordered := make([]Document, 0, len(paths))
	for _, p := range paths {
		ordered = append(ordered, *docs[p])
	}

	return Index{
		Metadata: Metadata{
			Version:              meta.Version,
			ToolInfo:             ToolInfo{Name: meta.ToolName, Version: meta.ToolVersion},
			ProjectRoot:          "file://" + meta.ProjectRoot,
			TextDocumentEncoding: "UTF-8",
		},
		Documents: ordered,
	}
}

func toLegacyRelationship(rel scipmodel.Relationship) Relationship {
	out := Relationship{Symbol: rel.TargetSymbolID}
	switch rel.Kind {
	case scipmodel.RelConforms, scipmodel.RelOverrides:
		out.IsImplementation = true
	case scipmodel.RelInherits:
		out.IsTypeDefinition = true
	}
	return out
}

func toLegacyOccurrence(occ scipmodel.Occurrence) Occurrence {
	rng := make([]int, 0, 4)
	for _, v := range occ.Range.SCIP() {
		rng = append(rng, int(v))
	}
	return Occurrence{
		Symbol:          occ.SymbolID,
		Range:           rng,
		SymbolRoles:     uint32(occ.Roles),
		EnclosingSymbol: occ.EnclosingSymbol,
		Snippet:         occ.Snippet,
	}
}

// Write marshals idx as indented JSON to w.
func Write(w io.Writer, idx Index) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(idx)
}
