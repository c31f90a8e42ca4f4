// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"errors"
	"strings"
)

// KeywordEntry is one keyword with the fragment texts it occurs in. Build
// requests carry an array instead of a JSON object because entry order drives
// fragment id assignment and JSON objects do not preserve key order.
type KeywordEntry struct {
	Keyword   string   `json:"keyword" binding:"required"`
	Fragments []string `json:"fragments" binding:"required"`
}

// BuildRequest asks for a scope build from an explicit keyword mapping.
type BuildRequest struct {
	Entries []KeywordEntry `json:"entries" binding:"required"`
}

// Validate performs validation on BuildRequest.
func (r *BuildRequest) Validate() error {
	if len(r.Entries) == 0 {
		return errors.New("entries cannot be empty")
	}
	for _, e := range r.Entries {
		if strings.TrimSpace(e.Keyword) == "" {
			return errors.New("keyword cannot be empty")
		}
	}
	return nil
}

// DocumentRequest asks for a scope build from raw page texts.
type DocumentRequest struct {
	Pages []string `json:"pages" binding:"required"`
}

// Validate performs validation on DocumentRequest.
func (r *DocumentRequest) Validate() error {
	for _, p := range r.Pages {
		if strings.TrimSpace(p) != "" {
			return nil
		}
	}
	return errors.New("pages cannot all be blank")
}

// RetrieveRequest asks for fragments relevant to a query. Either Query or
// Keywords must be set; Keywords skips the matching step.
type RetrieveRequest struct {
	Query    string   `json:"query,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Validate performs validation on RetrieveRequest.
func (r *RetrieveRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" && len(r.Keywords) == 0 {
		return errors.New("either query or keywords is required")
	}
	return nil
}

// Fragment is one retrieved fragment.
type Fragment struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// RetrieveResponse carries retrieval results. An empty Fragments list with
// Found=false is the no-evidence outcome.
type RetrieveResponse struct {
	Scope     string     `json:"scope"`
	Fragments []Fragment `json:"fragments"`
	Found     bool       `json:"found"`
}

// BuildResponse reports a completed build.
type BuildResponse struct {
	Scope        string `json:"scope"`
	Fragments    int    `json:"fragments"`
	Keywords     int    `json:"keywords"`
	AppearsIn    int    `json:"appears_in"`
	SimilarPairs int    `json:"similar_pairs"`
	DurationMS   int64  `json:"duration_ms"`
	ProcessID    string `json:"process_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
