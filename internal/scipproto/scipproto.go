// Package scipproto implements the optional real-SCIP-protobuf output mode:
// converting this system's internal records into the wire-format SCIP
// index defined by github.com/sourcegraph/scip, for consumers that expect
// the standard protobuf encoding rather than the relational back-end or the
// legacy JSON emitter.
package scipproto

import (
	"os"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

const language = "swift"

// Build converts a scipmodel.Index into a wire-format *scip.Index.
func Build(idx scipmodel.Index) *scippb.Index {
	documents := groupByDocument(idx.Symbols, idx.Occurrences, idx.Relationships)

	out := &scippb.Index{
		Metadata: &scippb.Metadata{
			Version: int32(idx.Metadata.Version),
			ToolInfo: &scippb.ToolInfo{
				Name:    idx.Metadata.ToolName,
				Version: idx.Metadata.ToolVersion,
			},
			ProjectRoot:          idx.Metadata.ProjectRoot,
			TextDocumentEncoding: scippb.TextEncoding_UTF8,
		},
		Documents: documents,
	}
	return out
}

// Write marshals idx as a single serialized protobuf message (no length
// prefix) and writes it to path.
func Write(path string, idx scipmodel.Index) error {
	pb := Build(idx)
	data, err := proto.Marshal(pb)
	if err != nil {
		return errors.New(errors.StatementExecution, "failed to marshal SCIP protobuf index", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.OpenFailed, "failed to write SCIP protobuf index to "+path, err)
	}
	return nil
}

func groupByDocument(symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence, relationships []scipmodel.Relationship) []*scippb.Document {
	definingDoc := make(map[string]string, len(symbols))
	for _, occ := range occurrences {
		if occ.Roles.Has(scipmodel.RoleDefinition) {
			definingDoc[occ.SymbolID] = occ.DocPath
		}
	}

	relsBySymbol := make(map[string][]*scippb.Relationship)
	for _, rel := range relationships {
		relsBySymbol[rel.SymbolID] = append(relsBySymbol[rel.SymbolID], toRelationship(rel))
	}

	docs := make(map[string]*scippb.Document)
	order := make([]string, 0)
	docFor := func(path string) *scippb.Document {
		d, ok := docs[path]
		if !ok {
			d = &scippb.Document{RelativePath: path, Language: language}
			docs[path] = d
			order = append(order, path)
		}
		return d
	}

	for _, occ := range occurrences {
		d := docFor(occ.DocPath)
		d.Occurrences = append(d.Occurrences, toOccurrence(occ))
	}

	for _, sym := range symbols {
		path, ok := definingDoc[sym.SymbolID]
		if !ok {
			continue
		}
		d := docFor(path)
		d.Symbols = append(d.Symbols, &scippb.SymbolInformation{
			Symbol:        sym.SymbolID,
			Documentation: sym.Documentation,
			Relationships: relsBySymbol[sym.SymbolID],
		})
	}

	result := make([]*scippb.Document, 0, len(order))
	for _, path := range order {
		result = append(result, docs[path])
	}
	return result
}

func toOccurrence(occ scipmodel.Occurrence) *scippb.Occurrence {
	return &scippb.Occurrence{
		Range:       occ.Range.SCIP(),
		Symbol:      occ.SymbolID,
		SymbolRoles: int32(occ.Roles),
	}
}

func toRelationship(rel scipmodel.Relationship) *scippb.Relationship {
	out := &scippb.Relationship{Symbol: rel.TargetSymbolID}
	switch rel.Kind {
	case scipmodel.RelConforms, scipmodel.RelOverrides:
		out.IsImplementation = true
	case scipmodel.RelInherits:
		out.IsTypeDefinition = true
	}
	return out
}
