package scipmodel

import "testing"

func TestSourceRange_SCIP_SingleLine(t *testing.T) {
	r := SourceRange{StartLine: 10, StartCol: 5, EndLine: 10, EndCol: 15}
	got := r.SCIP()
	want := []int32{10, 5, 15}
	if !equal(got, want) {
		t.Errorf("SCIP() = %v, want %v", got, want)
	}
}

func TestSourceRange_SCIP_MultiLine(t *testing.T) {
	r := SourceRange{StartLine: 10, StartCol: 5, EndLine: 15, EndCol: 20}
	got := r.SCIP()
	want := []int32{10, 5, 15, 20}
	if !equal(got, want) {
		t.Errorf("SCIP() = %v, want %v", got, want)
	}
}

func TestRole_Has(t *testing.T) {
	r := RoleDefinition | RoleTest
	if !r.Has(RoleDefinition) {
		t.Error("expected RoleDefinition to be set")
	}
	if r.Has(RoleImport) {
		t.Error("did not expect RoleImport to be set")
	}
	if !r.Has(RoleDefinition | RoleTest) {
		t.Error("expected combined mask to be set")
	}
}

func equal(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
