package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/veridoc/keygraph/pkg/types"
)

type mockClient struct {
	chatFunc func(ctx context.Context, messages []types.Message) (*types.Response, error)
	calls    int
}

func (m *mockClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	m.calls++
	return m.chatFunc(ctx, messages)
}

func (m *mockClient) Close() error { return nil }

func respondWith(content string) func(context.Context, []types.Message) (*types.Response, error) {
	return func(context.Context, []types.Message) (*types.Response, error) {
		return &types.Response{Content: content}, nil
	}
}

func TestMatchFiltersToVocabulary(t *testing.T) {
	client := &mockClient{chatFunc: respondWith(`["policy", "hallucinated keyword", "coverage"]`)}
	matcher := NewVocabularyMatcher(client)

	got, err := matcher.Match(context.Background(), "what does the policy cover?", []string{"policy", "coverage", "claims"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"policy", "coverage"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMatchCanonicalizesAndDedupes(t *testing.T) {
	client := &mockClient{chatFunc: respondWith(`["Policy", "policy", "POLICY!"]`)}
	matcher := NewVocabularyMatcher(client)

	got, err := matcher.Match(context.Background(), "policy details", []string{"policy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "policy" {
		t.Fatalf("expected [policy], got %v", got)
	}
}

func TestMatchEmptyArrayMeansNoEvidence(t *testing.T) {
	client := &mockClient{chatFunc: respondWith(`[]`)}
	matcher := NewVocabularyMatcher(client)

	got, err := matcher.Match(context.Background(), "quantum entanglement", []string{"policy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty match, got %v", got)
	}
}

func TestMatchToleratesMarkdownFences(t *testing.T) {
	client := &mockClient{chatFunc: respondWith("```json\n[\"claims\"]\n```")}
	matcher := NewVocabularyMatcher(client)

	got, err := matcher.Match(context.Background(), "how do claims work", []string{"claims"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "claims" {
		t.Fatalf("expected [claims], got %v", got)
	}
}

func TestMatchPropagatesClientError(t *testing.T) {
	boom := errors.New("boom")
	client := &mockClient{chatFunc: func(context.Context, []types.Message) (*types.Response, error) {
		return nil, boom
	}}
	matcher := NewVocabularyMatcher(client)

	_, err := matcher.Match(context.Background(), "anything", []string{"policy"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	client := &mockClient{chatFunc: respondWith(`["policy"]`)}
	matcher := NewVocabularyMatcher(client)

	if got, err := matcher.Match(context.Background(), "  ", []string{"policy"}); err != nil || got != nil {
		t.Fatalf("blank query: expected nil, nil; got %v, %v", got, err)
	}
	if got, err := matcher.Match(context.Background(), "query", nil); err != nil || got != nil {
		t.Fatalf("empty vocabulary: expected nil, nil; got %v, %v", got, err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no chat calls for empty inputs, got %d", client.calls)
	}
}
