package types

import "testing"

func TestCanonicalKeyword(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Policy", "policy"},
		{"phrase", "Civil Union Partner", "civil union partner"},
		{"punctuation", "co-insurance!", "co insurance"},
		{"collapse whitespace", "  annual \t limit  ", "annual limit"},
		{"only punctuation", "***", ""},
		{"digits kept", "section 4.2", "section 4 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalKeyword(tc.in); got != tc.want {
				t.Errorf("CanonicalKeyword(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestKeywordValidate(t *testing.T) {
	t.Parallel()
	k := &Keyword{Name: "policy", Scope: "thread-1"}
	if err := k.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&Keyword{Scope: "thread-1"}).Validate(); err != ErrEmptyKeyword {
		t.Errorf("expected ErrEmptyKeyword, got %v", err)
	}
	if err := (&Keyword{Name: "policy"}).Validate(); err != ErrEmptyScope {
		t.Errorf("expected ErrEmptyScope, got %v", err)
	}
}
