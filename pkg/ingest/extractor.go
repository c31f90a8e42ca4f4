package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/veridoc/keygraph/pkg/types"
)

const (
	maxNgramSize   = 3
	maxKeywords    = 40
	minKeywordRune = 3
)

var properNameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)+\b`)

// Extractor pulls candidate keywords from fragment text using stopword
// filtering, n-gram frequency scoring and proper-name detection.
type Extractor struct {
	stopwords map[string]struct{}
}

// NewExtractor creates an extractor with the built-in English stopword list.
func NewExtractor() *Extractor {
	return &Extractor{stopwords: defaultStopwords()}
}

// Extract returns the keywords of a text, canonicalized and with phrases
// subsumed by longer phrases removed. The result is capped and ordered by
// descending score, ties broken alphabetically.
func (e *Extractor) Extract(text string) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	scores := make(map[string]int)

	// Frequency-scored n-grams. Longer grams get a length bonus so that
	// multi-word terms survive next to their constituent words.
	for n := 1; n <= maxNgramSize; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := tokens[i : i+n]
			if !e.validGram(gram) {
				continue
			}
			phrase := types.CanonicalKeyword(strings.Join(gram, " "))
			if !e.validKeyword(phrase) {
				continue
			}
			scores[phrase] += n
		}
	}

	// Proper names score highest; they are the entities queries ask about.
	for _, name := range properNameRe.FindAllString(text, -1) {
		phrase := types.CanonicalKeyword(name)
		if e.validKeyword(phrase) {
			scores[phrase] += maxNgramSize + 1
		}
	}

	ranked := make([]string, 0, len(scores))
	for phrase := range scores {
		ranked = append(ranked, phrase)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	ranked = dedupePhrases(ranked)
	if len(ranked) > maxKeywords {
		ranked = ranked[:maxKeywords]
	}
	return ranked
}

// MapChunks extracts keywords from every chunk and assembles the ordered
// keyword-to-fragment mapping consumed by the index builder. Fragment texts
// carry their page labels.
func (e *Extractor) MapChunks(chunks []Chunk) *types.KeywordMap {
	km := types.NewKeywordMap()
	for _, chunk := range chunks {
		labeled := chunk.Labeled()
		for _, kw := range e.Extract(chunk.Content) {
			km.Add(kw, labeled)
		}
	}
	return km
}

// validGram rejects grams whose boundary tokens are stopwords; interior
// stopwords are fine ("terms of service").
func (e *Extractor) validGram(gram []string) bool {
	if e.isStopword(gram[0]) || e.isStopword(gram[len(gram)-1]) {
		return false
	}
	return true
}

func (e *Extractor) validKeyword(phrase string) bool {
	if phrase == "" {
		return false
	}
	parts := strings.Fields(phrase)
	allStop := true
	for _, p := range parts {
		if !e.isStopword(p) {
			allStop = false
			break
		}
	}
	if allStop {
		return false
	}
	if len(strings.Join(parts, "")) < minKeywordRune {
		return false
	}
	return true
}

func (e *Extractor) isStopword(token string) bool {
	_, ok := e.stopwords[strings.ToLower(token)]
	return ok
}

func tokenize(text string) []string {
	cleaned := make([]rune, 0, len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cleaned = append(cleaned, r)
		case r >= 'A' && r <= 'Z':
			cleaned = append(cleaned, r+('a'-'A'))
		default:
			cleaned = append(cleaned, ' ')
		}
	}
	return strings.Fields(string(cleaned))
}

// dedupePhrases keeps phrases that are not substrings of an already kept,
// longer phrase. Input must be ordered by rank; output preserves that order.
func dedupePhrases(phrases []string) []string {
	bySize := make([]string, len(phrases))
	copy(bySize, phrases)
	sort.Slice(bySize, func(i, j int) bool { return len(bySize[i]) > len(bySize[j]) })

	dropped := make(map[string]struct{})
	kept := make([]string, 0, len(bySize))
	for _, kw := range bySize {
		subset := false
		for _, longer := range kept {
			if strings.Contains(longer, kw) {
				subset = true
				break
			}
		}
		if subset {
			dropped[kw] = struct{}{}
		} else {
			kept = append(kept, kw)
		}
	}

	out := make([]string, 0, len(phrases))
	for _, kw := range phrases {
		if _, gone := dropped[kw]; !gone {
			out = append(out, kw)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an",
		"and", "any", "are", "aren", "as", "at", "be", "because", "been",
		"before", "being", "below", "between", "both", "but", "by", "can",
		"cannot", "could", "couldn", "did", "didn", "do", "does", "doesn",
		"doing", "don", "down", "during", "each", "few", "for", "from",
		"further", "had", "hadn", "has", "hasn", "have", "haven", "having",
		"he", "her", "here", "hers", "herself", "him", "himself", "his",
		"how", "i", "if", "in", "into", "is", "isn", "it", "its", "itself",
		"just", "me", "more", "most", "my", "myself", "no", "nor", "not",
		"now", "of", "off", "on", "once", "only", "or", "other", "our",
		"ours", "ourselves", "out", "over", "own", "s", "same", "she",
		"should", "shouldn", "so", "some", "such", "t", "than", "that",
		"the", "their", "theirs", "them", "themselves", "then", "there",
		"these", "they", "this", "those", "through", "to", "too", "under",
		"until", "up", "very", "was", "wasn", "we", "were", "weren", "what",
		"when", "where", "which", "while", "who", "whom", "why", "will",
		"with", "won", "would", "wouldn", "you", "your", "yours",
		"yourself", "yourselves",
		// labels injected by the chunker, never useful as keywords
		"pg_no", "cnk",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
