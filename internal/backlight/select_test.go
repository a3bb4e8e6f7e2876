package backlight

import (
	"path/filepath"
	"slices"
	"sort"
	"testing"
)

func TestSelect_ExplicitNames(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Select([]string{"foo/bar/baz", "intel_backlight"}, false)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	want := []string{"baz", "intel_backlight"}
	if !slices.Equal(got, want) {
		t.Fatalf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_Enumerates(t *testing.T) {
	s, root := newTestStore(t)
	for _, name := range []string{"a", "b", "c"} {
		writeTestDevice(t, root, name, "1\n", "2\n")
	}

	first, err := s.Select(nil, false)
	if err != nil {
		t.Fatalf("Select(all=false) error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Select(all=false) = %v, want one device", first)
	}

	every, err := s.Select(nil, true)
	if err != nil {
		t.Fatalf("Select(all=true) error = %v", err)
	}
	sort.Strings(every)
	if want := []string{"a", "b", "c"}; !slices.Equal(every, want) {
		t.Fatalf("Select(all=true) = %v, want %v", every, want)
	}
}

func TestSelect_EmptyRoot(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Select(nil, true)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Select() = %v, want none", got)
	}
}

func TestSelect_MissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	if _, err := s.Select(nil, true); err == nil {
		t.Fatal("Select() error = nil, want open error")
	}
}
