package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the target fragment length in characters.
	DefaultChunkSize = 600
	// DefaultChunkOverlap is the number of trailing characters carried into
	// the next fragment.
	DefaultChunkOverlap = 150
)

// Chunk is one fragment of a source document with its page of origin.
type Chunk struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
}

// Labeled returns the chunk content prefixed with its page label, the form
// stored as fragment text so retrieval results carry provenance.
func (c Chunk) Labeled() string {
	return fmt.Sprintf("Pg_no %d: %s", c.Page, c.Content)
}

// Chunker splits page text into sentence-aligned overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive arguments fall back to defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// SplitPage splits a single page's text into overlapping chunks. Sentences
// are never broken; when a sentence would push a chunk past the size limit
// the chunk is flushed and the tail sentences whose combined length reaches
// the overlap are carried forward.
func (c *Chunker) SplitPage(text string, page int) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []string
	totalLen := 0

	for _, sentence := range sentences {
		sentenceLen := len(sentence)

		if totalLen+sentenceLen <= c.size {
			current = append(current, sentence)
			totalLen += sentenceLen
			continue
		}

		if joined := strings.TrimSpace(strings.Join(current, " ")); joined != "" {
			chunks = append(chunks, Chunk{Content: joined, Page: page})
		}

		// Carry the tail of the flushed chunk into the next one.
		var carried []string
		carriedLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			carriedLen += len(current[i])
			carried = append([]string{current[i]}, carried...)
			if carriedLen >= c.overlap {
				break
			}
		}

		current = append(carried, sentence)
		totalLen = 0
		for _, s := range current {
			totalLen += len(s)
		}
	}

	if joined := strings.TrimSpace(strings.Join(current, " ")); joined != "" {
		chunks = append(chunks, Chunk{Content: joined, Page: page})
	}

	return chunks
}

// SplitPages chunks an ordered list of page texts (index 0 is page 1) and
// removes chunks whose content is contained in a longer chunk from the same
// page, which overlap carry-over otherwise produces at page tails.
func (c *Chunker) SplitPages(pages []string) []Chunk {
	var all []Chunk
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		all = append(all, c.SplitPage(text, i+1)...)
	}
	return dedupeSubsets(all)
}

func dedupeSubsets(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for i, ci := range chunks {
		subset := false
		for j, cj := range chunks {
			if i == j || ci.Page != cj.Page {
				continue
			}
			if len(ci.Content) < len(cj.Content) && strings.Contains(cj.Content, ci.Content) {
				subset = true
				break
			}
			// Equal duplicates keep only the first occurrence.
			if ci.Content == cj.Content && j < i {
				subset = true
				break
			}
		}
		if !subset {
			out = append(out, ci)
		}
	}
	return out
}

// splitSentences breaks text on sentence-final punctuation followed by
// whitespace. Abbreviation handling is intentionally minimal; a mid-sentence
// split only shortens a chunk, it never loses text.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var sentences []string
	var sb strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		sb.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Sentence ends at punctuation followed by space and an upper-case
		// or digit start, or at end of text.
		if i == len(runes)-1 {
			break
		}
		if runes[i+1] != ' ' {
			continue
		}
		if i+2 < len(runes) && !unicode.IsUpper(runes[i+2]) && !unicode.IsDigit(runes[i+2]) {
			continue
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			sentences = append(sentences, s)
		}
		sb.Reset()
		i++ // skip the separating space
	}

	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
