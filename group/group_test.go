package group

import "testing"

func TestNewStaticSortsMembers(t *testing.T) {
	g := NewStatic("g1", []Rank{3, 1, 4, 1, 5})
	members := g.Members()
	for i := 1; i < len(members); i++ {
		if members[i-1] > members[i] {
			t.Fatalf("members not sorted: %v", members)
		}
	}
	if g.Size() != len(members) {
		t.Fatalf("Size() = %d, want %d", g.Size(), len(members))
	}
	if g.ID() != "g1" {
		t.Fatalf("ID() = %q, want g1", g.ID())
	}
}

func TestDupIsIndependentCopy(t *testing.T) {
	g := NewStatic("g1", []Rank{1, 2, 3})
	dup := Dup(g)
	dup[0] = 99
	if g.Members()[0] == 99 {
		t.Fatal("Dup shared backing array with the group's own members")
	}
}

func TestSort(t *testing.T) {
	ranks := []Rank{5, 3, 1, 4, 2}
	Sort(ranks)
	want := []Rank{1, 2, 3, 4, 5}
	for i := range want {
		if ranks[i] != want[i] {
			t.Fatalf("Sort() = %v, want %v", ranks, want)
		}
	}
}

func TestInList(t *testing.T) {
	sorted := []Rank{1, 3, 5, 7}
	cases := []struct {
		r    Rank
		want bool
	}{
		{1, true}, {7, true}, {4, false}, {0, false}, {8, false},
	}
	for _, tc := range cases {
		if got := InList(sorted, tc.r); got != tc.want {
			t.Errorf("InList(%v, %d) = %v, want %v", sorted, tc.r, got, tc.want)
		}
	}
}
