package matching

import "testing"

func TestSortModules(t *testing.T) {
	in := []DeviceCameraModule{
		{Role: "periscope"},
		{Role: RoleTele},
		{Role: "macro"},
		{Role: RoleMain},
		{Role: RoleUltra},
	}

	got := SortModules(in)

	want := []string{RoleUltra, RoleMain, RoleTele, "macro", "periscope"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, role := range want {
		if got[i].Role != role {
			t.Errorf("position %d = %q, want %q", i, got[i].Role, role)
		}
	}
	if in[0].Role != "periscope" {
		t.Error("SortModules must not reorder its input")
	}
}

func TestSortModules_Empty(t *testing.T) {
	if got := SortModules(nil); len(got) != 0 {
		t.Errorf("SortModules(nil) = %v, want empty", got)
	}
}
