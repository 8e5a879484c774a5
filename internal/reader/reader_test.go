package reader

import (
	"testing"

	"github.com/Fostonger/swiftscip/internal/indexstore"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

func fixtureWithClassAndMethod() *indexstore.FixtureStore {
	fs := indexstore.NewFixtureStore()
	fs.Canonical = []indexstore.CanonicalOccurrence{
		{USR: "s:8MyModule7MyClassC", Name: "MyClass", Kind: "class"},
		{
			USR:  "s:8MyModule7MyClassC11doSomethingyyF",
			Name: "doSomething",
			Kind: "instance-method",
			Relations: []indexstore.Relation{
				{USR: "s:8MyModule7MyClassC", Name: "MyClass", IsChildOf: true},
			},
		},
	}
	fs.Occurrences["s:8MyModule7MyClassC"] = []indexstore.RawOccurrence{
		{USR: "s:8MyModule7MyClassC", AbsolutePath: "/proj/Sources/File.swift", Line: 1, UTF8Column: 6, Roles: uint32(scipmodel.RoleDefinition)},
	}
	fs.Occurrences["s:8MyModule7MyClassC11doSomethingyyF"] = []indexstore.RawOccurrence{
		{
			USR: "s:8MyModule7MyClassC11doSomethingyyF", AbsolutePath: "/proj/Sources/File.swift",
			Line: 2, UTF8Column: 8, Roles: uint32(scipmodel.RoleDefinition),
			Relations: []indexstore.Relation{{USR: "s:8MyModule7MyClassC", Name: "MyClass", IsChildOf: true}},
		},
	}
	return fs
}

func TestReader_CollectSymbols(t *testing.T) {
	r := New(fixtureWithClassAndMethod(), "/proj", false)

	symbols, _, err := r.CollectSymbols()
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 {
		t.Fatalf("len(symbols) = %d, want 2", len(symbols))
	}
	if symbols[0].SymbolID != "swift MyModule MyClass#" {
		t.Errorf("symbols[0].SymbolID = %q, want %q", symbols[0].SymbolID, "swift MyModule MyClass#")
	}
}

func TestReader_CollectOccurrences_EnclosingSymbol(t *testing.T) {
	r := New(fixtureWithClassAndMethod(), "/proj", false)
	if _, _, err := r.CollectSymbols(); err != nil {
		t.Fatal(err)
	}

	occs, err := r.CollectOccurrences(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 2 {
		t.Fatalf("len(occurrences) = %d, want 2", len(occs))
	}

	var method *scipmodel.Occurrence
	for i := range occs {
		if occs[i].SymbolID != "swift MyModule MyClass#" {
			method = &occs[i]
		}
	}
	if method == nil {
		t.Fatal("method occurrence not found")
	}
	if method.EnclosingSymbol != "swift MyModule MyClass#" {
		t.Errorf("EnclosingSymbol = %q, want %q", method.EnclosingSymbol, "swift MyModule MyClass#")
	}
	if method.DocPath != "Sources/File.swift" {
		t.Errorf("DocPath = %q, want %q", method.DocPath, "Sources/File.swift")
	}
}

func TestReader_CollectOccurrences_Whitelist(t *testing.T) {
	r := New(fixtureWithClassAndMethod(), "/proj", false)
	if _, _, err := r.CollectSymbols(); err != nil {
		t.Fatal(err)
	}

	occs, err := r.CollectOccurrences(map[string]bool{"Sources/Other.swift": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 0 {
		t.Errorf("len(occurrences) = %d, want 0 when whitelist excludes the only file", len(occs))
	}
}

func TestReader_CollectOccurrences_SkipsFailingUSR(t *testing.T) {
	fs := fixtureWithClassAndMethod()
	fs.FailFor = map[string]bool{"s:8MyModule7MyClassC": true}
	r := New(fs, "/proj", false)
	if _, _, err := r.CollectSymbols(); err != nil {
		t.Fatal(err)
	}

	occs, err := r.CollectOccurrences(nil)
	if err != nil {
		t.Fatalf("CollectOccurrences should not fail on a per-USR error: %v", err)
	}
	if len(occs) != 1 {
		t.Errorf("len(occurrences) = %d, want 1 (one USR's enumeration failed)", len(occs))
	}
}

func TestMapKind(t *testing.T) {
	if got := mapKind("class"); got != scipmodel.KindClass {
		t.Errorf("mapKind(class) = %v, want %v", got, scipmodel.KindClass)
	}
	if got := mapKind("parameter"); got != scipmodel.KindLocal {
		t.Errorf("mapKind(parameter) = %v, want %v", got, scipmodel.KindLocal)
	}
	if got := mapKind("something-unrecognized"); got != scipmodel.KindUnknown {
		t.Errorf("mapKind(unrecognized) = %v, want %v", got, scipmodel.KindUnknown)
	}
}

func TestExtractModule(t *testing.T) {
	if got := extractModule("s:8MyModule7MyClassC"); got != "MyModule" {
		t.Errorf("extractModule() = %q, want %q", got, "MyModule")
	}
	if got := extractModule("c:objc(cs)NSObject"); got != "" {
		t.Errorf("extractModule(non-swift usr) = %q, want empty", got)
	}
}
