package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridoc/keygraph"
	"github.com/veridoc/keygraph/pkg/server/dto"
	"github.com/veridoc/keygraph/pkg/types"
)

// GraphHandler handles index build and retrieval requests
type GraphHandler struct {
	engine keygraph.KeyGraph
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(engine keygraph.KeyGraph) *GraphHandler {
	return &GraphHandler{engine: engine}
}

// Build handles POST /scopes/:scope/build
func (h *GraphHandler) Build(c *gin.Context) {
	scope := c.Param("scope")

	var req dto.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	mapping := types.NewKeywordMap()
	for _, entry := range req.Entries {
		mapping.Add(entry.Keyword, entry.Fragments...)
	}

	result, err := h.engine.Build(c.Request.Context(), scope, mapping)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BuildResponse{
		Scope:        result.Scope,
		Fragments:    result.Fragments,
		Keywords:     result.Keywords,
		AppearsIn:    result.AppearsIn,
		SimilarPairs: result.SimilarPairs,
		DurationMS:   result.Duration.Milliseconds(),
		ProcessID:    uuid.NewString(),
	})
}

// BuildDocument handles POST /scopes/:scope/document
func (h *GraphHandler) BuildDocument(c *gin.Context) {
	scope := c.Param("scope")

	var req dto.DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.engine.BuildDocument(c.Request.Context(), scope, req.Pages)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BuildResponse{
		Scope:        result.Scope,
		Fragments:    result.Fragments,
		Keywords:     result.Keywords,
		AppearsIn:    result.AppearsIn,
		SimilarPairs: result.SimilarPairs,
		DurationMS:   result.Duration.Milliseconds(),
		ProcessID:    uuid.NewString(),
	})
}

// Retrieve handles POST /scopes/:scope/retrieve
func (h *GraphHandler) Retrieve(c *gin.Context) {
	scope := c.Param("scope")

	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	var fragments []*types.Fragment
	var err error
	if len(req.Keywords) > 0 {
		fragments, err = h.engine.RetrieveWithKeywords(c.Request.Context(), scope, req.Keywords)
	} else {
		fragments, err = h.engine.Retrieve(c.Request.Context(), scope, req.Query)
	}
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	out := make([]dto.Fragment, len(fragments))
	for i, f := range fragments {
		out[i] = dto.Fragment{ID: f.ID, Content: f.Content}
	}

	c.JSON(http.StatusOK, dto.RetrieveResponse{
		Scope:     scope,
		Fragments: out,
		Found:     len(out) > 0,
	})
}

// ClearScope handles DELETE /scopes/:scope
func (h *GraphHandler) ClearScope(c *gin.Context) {
	scope := c.Param("scope")

	if err := h.engine.Clear(c.Request.Context(), scope); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope, "cleared": true})
}

// ListScopes handles GET /scopes
func (h *GraphHandler) ListScopes(c *gin.Context) {
	scopes, err := h.engine.ListScopes(c.Request.Context())
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"scopes": scopes})
}

// ScopeStats handles GET /scopes/:scope/stats
func (h *GraphHandler) ScopeStats(c *gin.Context) {
	scope := c.Param("scope")

	stats, err := h.engine.ScopeStats(c.Request.Context(), scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeEngineError maps engine error taxonomy onto HTTP statuses.
func (h *GraphHandler) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, keygraph.ErrScopeRebuilding):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "scope_rebuilding", Message: err.Error()})
	case errors.Is(err, types.ErrEmptyScope), errors.Is(err, keygraph.ErrNilMapping):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, &keygraph.CollaboratorError{}):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "collaborator_failure", Message: err.Error()})
	case errors.Is(err, &keygraph.StoreError{}):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "store_failure", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}
