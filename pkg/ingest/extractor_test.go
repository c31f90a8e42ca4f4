package ingest

import (
	"strings"
	"testing"
)

func TestExtractFindsDomainTerms(t *testing.T) {
	e := NewExtractor()
	text := "The insurance policy covers dental care. The insurance policy excludes cosmetic surgery."

	keywords := e.Extract(text)
	if len(keywords) == 0 {
		t.Fatal("expected keywords, got none")
	}

	found := false
	for _, kw := range keywords {
		if strings.Contains(kw, "insurance policy") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the repeated bigram 'insurance policy' among %v", keywords)
	}
}

func TestExtractProperNamesScoreHigh(t *testing.T) {
	e := NewExtractor()
	text := "Contact Maria Santos for claims. She handles every appeal personally and reviews each case."

	keywords := e.Extract(text)
	found := false
	for _, kw := range keywords {
		if kw == "maria santos" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected proper name 'maria santos' among %v", keywords)
	}
}

func TestExtractDropsStopwordsAndShortTokens(t *testing.T) {
	e := NewExtractor()
	keywords := e.Extract("the of and to it is a an")
	if len(keywords) != 0 {
		t.Errorf("expected no keywords from pure stopwords, got %v", keywords)
	}
}

func TestExtractSubsetPhrasesRemoved(t *testing.T) {
	e := NewExtractor()
	text := "Dental care coverage applies. Dental care coverage applies. Dental care coverage applies."

	keywords := e.Extract(text)
	for i, ki := range keywords {
		for j, kj := range keywords {
			if i != j && len(ki) < len(kj) && strings.Contains(kj, ki) {
				t.Errorf("keyword %q is a substring of kept keyword %q", ki, kj)
			}
		}
	}
}

func TestExtractEmpty(t *testing.T) {
	e := NewExtractor()
	if got := e.Extract(""); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
}

func TestMapChunksOrderAndLabels(t *testing.T) {
	e := NewExtractor()
	chunks := []Chunk{
		{Content: "Premium payments are due monthly.", Page: 1},
		{Content: "Premium payments fund the claims reserve.", Page: 2},
	}

	km := e.MapChunks(chunks)
	if km.Len() == 0 {
		t.Fatal("expected a non-empty keyword map")
	}

	// Every fragment text carries its page label.
	km.Range(func(kw string, fragments []string) bool {
		for _, f := range fragments {
			if !strings.HasPrefix(f, "Pg_no ") {
				t.Errorf("fragment for %q missing page label: %q", kw, f)
			}
		}
		return true
	})

	// A keyword occurring in both chunks maps to both labeled fragments.
	if frags, ok := km.Fragments("premium payments"); ok && len(frags) < 2 {
		t.Errorf("expected shared keyword to map to both fragments, got %v", frags)
	}
}
