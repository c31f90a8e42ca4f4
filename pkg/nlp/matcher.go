package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veridoc/keygraph/pkg/types"
)

const matcherSystemPrompt = `You select search keywords for a query.
You are given a fixed vocabulary of keywords. Pick the vocabulary entries
most relevant to the user's query. Respond with a JSON array of strings
containing only entries copied verbatim from the vocabulary. If nothing in
the vocabulary is relevant, respond with an empty JSON array []. Do not
invent keywords and do not add any text outside the JSON array.`

// VocabularyMatcher maps a free-text query onto keywords drawn strictly from
// a scope's indexed vocabulary. The model is prompted with the full
// vocabulary; anything it returns that is not in the vocabulary is dropped.
type VocabularyMatcher struct {
	client Client
}

// NewVocabularyMatcher creates a matcher backed by the given client.
func NewVocabularyMatcher(client Client) *VocabularyMatcher {
	return &VocabularyMatcher{client: client}
}

// Match returns the subset of vocabulary relevant to the query, in canonical
// form, deduplicated, preserving the model's ranking order. An empty result
// with a nil error means the model found nothing relevant.
func (m *VocabularyMatcher) Match(ctx context.Context, query string, vocabulary []string) ([]string, error) {
	if strings.TrimSpace(query) == "" || len(vocabulary) == 0 {
		return nil, nil
	}

	allowed := make(map[string]struct{}, len(vocabulary))
	for _, kw := range vocabulary {
		canonical := types.CanonicalKeyword(kw)
		if canonical != "" {
			allowed[canonical] = struct{}{}
		}
	}

	messages := []types.Message{
		NewSystemMessage(matcherSystemPrompt),
		NewUserMessage(buildMatcherPrompt(query, vocabulary)),
	}

	resp, err := m.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("keyword match failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, NewEmptyResponseError("matcher returned an empty response")
	}

	candidates, err := parseKeywordArray(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse matcher response: %w", err)
	}

	// Drop anything the model made up outside the vocabulary.
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, kw := range candidates {
		canonical := types.CanonicalKeyword(kw)
		if canonical == "" {
			continue
		}
		if _, ok := allowed[canonical]; !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, nil
}

func buildMatcherPrompt(query string, vocabulary []string) string {
	var sb strings.Builder
	sb.WriteString("Vocabulary:\n")
	for _, kw := range vocabulary {
		sb.WriteString("- ")
		sb.WriteString(kw)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuery: ")
	sb.WriteString(query)
	return sb.String()
}

// parseKeywordArray extracts a JSON string array from model output, tolerating
// surrounding prose and markdown fences.
func parseKeywordArray(content string) ([]string, error) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in %q", content)
	}

	var keywords []string
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &keywords); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return keywords, nil
}
