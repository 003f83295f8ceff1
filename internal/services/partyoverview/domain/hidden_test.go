package domain

import (
	"reflect"
	"testing"
)

func TestHiddenSetIdempotentMutations(t *testing.T) {
	t.Parallel()

	var set HiddenSet
	set.Add("a1")
	set.Add("a1")
	if set.Len() != 1 {
		t.Fatalf("Len = %d, want 1", set.Len())
	}
	set.Remove("a2")
	set.Remove("a1")
	set.Remove("a1")
	if set.Len() != 0 || set.Has("a1") {
		t.Fatalf("set = %v, want empty", set.IDs())
	}
	set.Add("")
	if set.Len() != 0 {
		t.Fatal("empty id should be ignored")
	}
}

func TestHiddenSetToggle(t *testing.T) {
	t.Parallel()

	set := NewHiddenSet()
	if !set.Toggle("a1") {
		t.Fatal("first toggle should hide")
	}
	if set.Toggle("a1") {
		t.Fatal("second toggle should unhide")
	}
	if set.Has("a1") {
		t.Fatal("a1 still hidden")
	}
}

func TestHiddenSetCloneIsIndependent(t *testing.T) {
	t.Parallel()

	set := NewHiddenSet("b", "a")
	clone := set.Clone()
	clone.Add("c")
	if got, want := set.IDs(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs = %v, want %v", got, want)
	}
	if !clone.Has("c") {
		t.Fatal("clone missing c")
	}
}
