package symbolbuilder

import (
	"strconv"
	"strings"
	"testing"

	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

func TestBuild_ClassDefinition(t *testing.T) {
	got := Build("s:8MyModule7MyClassC", "MyClass", scipmodel.KindClass, "MyModule", "")
	want := "swift MyModule MyClass#"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuild_ContainedMethod(t *testing.T) {
	got := Build("s:8MyModule7MyClassC11doSomethingyyF", "doSomething", scipmodel.KindFunction, "MyModule", "MyClass")
	want := "swift MyModule MyClass#doSomething()."
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuild_NonSwiftUSRIsLocal(t *testing.T) {
	got := Build("c:objc(cs)NSObject", "NSObject", scipmodel.KindClass, "Foundation", "")
	if !strings.HasPrefix(got, "local ") {
		t.Errorf("Build() = %q, want prefix %q", got, "local ")
	}
}

func TestBuild_MissingModuleIsLocal(t *testing.T) {
	got := Build("s:8MyModule7MyClassC", "MyClass", scipmodel.KindClass, "", "")
	if !strings.HasPrefix(got, "local ") {
		t.Errorf("Build() = %q, want prefix %q", got, "local ")
	}
}

func TestBuild_LocalIDWellFormed(t *testing.T) {
	got := Build("notaswiftusr", "x", scipmodel.KindLocal, "", "")
	rest, ok := strings.CutPrefix(got, "local ")
	if !ok {
		t.Fatalf("Build() = %q, want prefix %q", got, "local ")
	}
	if _, err := strconv.ParseUint(rest, 10, 64); err != nil {
		t.Errorf("local ID suffix %q is not all digits: %v", rest, err)
	}
}

func TestBuild_Purity(t *testing.T) {
	a := Build("s:8MyModule7MyClassC", "MyClass", scipmodel.KindClass, "MyModule", "Outer")
	b := Build("s:8MyModule7MyClassC", "MyClass", scipmodel.KindClass, "MyModule", "Outer")
	if a != b {
		t.Errorf("Build() not pure: %q != %q", a, b)
	}
}

func TestBuild_PropertyAndEnumCaseSuffix(t *testing.T) {
	if got := Build("s:m7Name", "name", scipmodel.KindProperty, "M", ""); got != "swift M name." {
		t.Errorf("property: Build() = %q, want %q", got, "swift M name.")
	}
	if got := Build("s:m7Case", "caseA", scipmodel.KindEnumCase, "M", "Color"); got != "swift M Color#caseA." {
		t.Errorf("enum-case: Build() = %q, want %q", got, "swift M Color#caseA.")
	}
}

func TestIsLocal(t *testing.T) {
	if !IsLocal("local 1234") {
		t.Error("IsLocal(\"local 1234\") = false, want true")
	}
	if IsLocal("swift M Foo#") {
		t.Error("IsLocal(\"swift M Foo#\") = true, want false")
	}
}
