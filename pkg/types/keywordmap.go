package types

// KeywordMap is an ordered mapping from canonical keyword strings to the
// fragment texts they occur in. Keys are unique and iterate in first-seen
// order, which is the contract the index builder relies on for deterministic
// fragment id assignment within a build.
type KeywordMap struct {
	keys      []string
	fragments map[string][]string
	seen      map[string]map[string]struct{}
}

// NewKeywordMap creates an empty KeywordMap.
func NewKeywordMap() *KeywordMap {
	return &KeywordMap{
		fragments: make(map[string][]string),
		seen:      make(map[string]map[string]struct{}),
	}
}

// Add associates fragment texts with a keyword. The keyword is canonicalized
// first; an existing key keeps its original position and the fragment lists
// merge, preserving first-seen fragment order and dropping duplicates.
// Empty canonical keywords are ignored.
func (m *KeywordMap) Add(keyword string, fragments ...string) {
	key := CanonicalKeyword(keyword)
	if key == "" {
		return
	}
	if _, ok := m.fragments[key]; !ok {
		m.keys = append(m.keys, key)
		m.fragments[key] = nil
		m.seen[key] = make(map[string]struct{})
	}
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		if _, dup := m.seen[key][frag]; dup {
			continue
		}
		m.seen[key][frag] = struct{}{}
		m.fragments[key] = append(m.fragments[key], frag)
	}
}

// Keys returns the keyword strings in first-seen order.
func (m *KeywordMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Fragments returns the fragment texts associated with a keyword, in
// first-seen order. The second return reports whether the key exists.
func (m *KeywordMap) Fragments(keyword string) ([]string, bool) {
	frags, ok := m.fragments[CanonicalKeyword(keyword)]
	return frags, ok
}

// Len returns the number of distinct keywords.
func (m *KeywordMap) Len() int {
	return len(m.keys)
}

// Range calls fn for each (keyword, fragments) pair in first-seen order.
// Iteration stops if fn returns false.
func (m *KeywordMap) Range(fn func(keyword string, fragments []string) bool) {
	for _, key := range m.keys {
		if !fn(key, m.fragments[key]) {
			return
		}
	}
}
