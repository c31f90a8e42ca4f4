package types

import (
	"reflect"
	"testing"
)

func TestKeywordMapOrderAndMerge(t *testing.T) {
	t.Parallel()
	m := NewKeywordMap()
	m.Add("Coverage", "frag a", "frag b")
	m.Add("policy", "frag a")
	m.Add("coverage", "frag b", "frag c") // merges into first key, dedupes

	wantKeys := []string{"coverage", "policy"}
	if got := m.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Fatalf("Keys() = %v, want %v", got, wantKeys)
	}

	frags, ok := m.Fragments("COVERAGE")
	if !ok {
		t.Fatal("expected coverage key to exist")
	}
	want := []string{"frag a", "frag b", "frag c"}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("Fragments(coverage) = %v, want %v", frags, want)
	}
}

func TestKeywordMapIgnoresEmpty(t *testing.T) {
	t.Parallel()
	m := NewKeywordMap()
	m.Add("...", "frag")
	m.Add("policy", "", "frag")
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	frags, _ := m.Fragments("policy")
	if len(frags) != 1 || frags[0] != "frag" {
		t.Errorf("Fragments(policy) = %v, want [frag]", frags)
	}
}

func TestKeywordMapRange(t *testing.T) {
	t.Parallel()
	m := NewKeywordMap()
	m.Add("a", "x")
	m.Add("b", "y")
	m.Add("c", "z")

	var visited []string
	m.Range(func(key string, fragments []string) bool {
		visited = append(visited, key)
		return key != "b"
	})
	if !reflect.DeepEqual(visited, []string{"a", "b"}) {
		t.Errorf("Range visited %v, want early stop after b", visited)
	}
}
