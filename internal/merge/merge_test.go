package merge

import (
	"reflect"
	"testing"
)

func TestMaps_DeepMerge(t *testing.T) {
	dst := map[string]any{
		"timeout": "2s",
		"headers": map[string]any{
			"Accept":     "application/json",
			"User-Agent": "ready",
		},
	}
	src := map[string]any{
		"timeout": "5s",
		"headers": map[string]any{
			"Accept": "text/html",
		},
		"method": "HEAD",
	}

	got := Maps(dst, src)
	want := map[string]any{
		"timeout": "5s",
		"headers": map[string]any{
			"Accept":     "text/html",
			"User-Agent": "ready",
		},
		"method": "HEAD",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Maps() = %v, want %v", got, want)
	}
}

func TestMaps_InputsUnmodified(t *testing.T) {
	dst := map[string]any{
		"nested": map[string]any{"a": 1},
	}
	src := map[string]any{
		"nested": map[string]any{"b": 2},
	}

	out := Maps(dst, src)
	out["nested"].(map[string]any)["a"] = 99

	if dst["nested"].(map[string]any)["a"] != 1 {
		t.Error("Maps() aliased dst's nested map")
	}
	if src["nested"].(map[string]any)["b"] != 2 {
		t.Error("Maps() aliased src's nested map")
	}
}

func TestMaps_MapReplacesScalar(t *testing.T) {
	dst := map[string]any{"headers": "none"}
	src := map[string]any{"headers": map[string]any{"Accept": "text/html"}}

	got := Maps(dst, src)
	want := map[string]any{"headers": map[string]any{"Accept": "text/html"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Maps() = %v, want %v", got, want)
	}
}

func TestMaps_NilSrc(t *testing.T) {
	dst := map[string]any{"a": 1}
	got := Maps(dst, nil)
	if !reflect.DeepEqual(got, dst) {
		t.Errorf("Maps(dst, nil) = %v, want %v", got, dst)
	}
}

func TestFlat_ReplacesMaps(t *testing.T) {
	dst := map[string]any{
		"headers": map[string]any{"Accept": "application/json", "X": "y"},
		"keep":    true,
	}
	src := map[string]any{
		"headers": map[string]any{"Accept": "text/html"},
	}

	got := Flat(dst, src)
	want := map[string]any{
		"headers": map[string]any{"Accept": "text/html"},
		"keep":    true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flat() = %v, want %v", got, want)
	}
}

func TestClone_Independence(t *testing.T) {
	m := map[string]any{
		"a":      1,
		"nested": map[string]any{"b": 2},
	}

	c := Clone(m)
	c["a"] = 99
	c["nested"].(map[string]any)["b"] = 99

	if m["a"] != 1 {
		t.Error("Clone() aliased a top-level value")
	}
	if m["nested"].(map[string]any)["b"] != 2 {
		t.Error("Clone() aliased a nested map")
	}
}
