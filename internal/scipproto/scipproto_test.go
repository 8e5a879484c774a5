package scipproto

import (
	"testing"

	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

func TestBuild_GroupsOccurrencesAndSymbolsByDocument(t *testing.T) {
	idx := scipmodel.Index{
		Metadata: scipmodel.Metadata{Version: 1, ToolName: "swiftscip", ToolVersion: "0.1.0", ProjectRoot: "/proj"},
		Symbols: []scipmodel.Symbol{
			{SymbolID: "swift M A#", Kind: scipmodel.KindClass, Module: "M"},
		},
		Occurrences: []scipmodel.Occurrence{
			{SymbolID: "swift M A#", DocPath: "A.swift", Range: scipmodel.SourceRange{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 1}, Roles: scipmodel.RoleDefinition},
		},
	}

	pb := Build(idx)
	if len(pb.Documents) != 1 {
		t.Fatalf("len(Documents) = %d, want 1", len(pb.Documents))
	}
	doc := pb.Documents[0]
	if doc.RelativePath != "A.swift" {
		t.Errorf("RelativePath = %q, want A.swift", doc.RelativePath)
	}
	if len(doc.Symbols) != 1 || doc.Symbols[0].Symbol != "swift M A#" {
		t.Errorf("Symbols = %+v, want one entry for swift M A#", doc.Symbols)
	}
	if len(doc.Occurrences) != 1 {
		t.Errorf("len(Occurrences) = %d, want 1", len(doc.Occurrences))
	}
}

func TestToRelationship_KindMapping(t *testing.T) {
	conforms := toRelationship(scipmodel.Relationship{Kind: scipmodel.RelConforms, TargetSymbolID: "x"})
	if !conforms.IsImplementation {
		t.Error("conforms relationship should set IsImplementation")
	}
	inherits := toRelationship(scipmodel.Relationship{Kind: scipmodel.RelInherits, TargetSymbolID: "x"})
	if !inherits.IsTypeDefinition {
		t.Error("inherits relationship should set IsTypeDefinition")
	}
}
