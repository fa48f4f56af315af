package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
	"github.com/bparpette/MistralHackathon/internal/logging"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/search"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
	"github.com/bparpette/MistralHackathon/pkg/auth"
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, v1.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, v1.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, v1.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, v1.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, v1.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, v1.ErrEmbeddingUnavailable), errors.Is(err, v1.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", zap.Error(err))
	} else {
		s.logger.Debug(ctx, "request rejected", zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: ErrorBody{Code: v1.Code(err), Message: v1.Message(err)}})
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", v1.ErrValidation, fmt.Sprintf(format, args...))
}

func withWorkspace(c echo.Context, workspaceID string) {
	req := c.Request()
	c.SetRequest(req.WithContext(logging.WithWorkspace(req.Context(), workspaceID)))
}

func (s *Server) handleAddMemory(c echo.Context) error {
	var req AddMemoryRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	withWorkspace(c, req.WorkspaceID)

	res, err := s.svc.AddMemory(c.Request().Context(), brain.AddMemoryRequest{
		RequesterID:    auth.RequesterID(c),
		WorkspaceID:    req.WorkspaceID,
		Content:        req.Content,
		Category:       req.Category,
		Tags:           req.Tags,
		Visibility:     req.Visibility,
		ConfidenceHint: req.ConfidenceHint,
	})
	if err != nil {
		return s.fail(c, err)
	}
	linked := res.Link.LinkedIDs
	if linked == nil {
		linked = []string{}
	}
	return c.JSON(http.StatusCreated, AddMemoryResponse{
		Memory:     res.Memory,
		LinkedIDs:  linked,
		LinkStatus: res.Link.String(),
	})
}

func (s *Server) handleListMemories(c echo.Context) error {
	var workspaceID string
	var page memory.Page
	err := echo.QueryParamsBinder(c).
		String("workspace_id", &workspaceID).
		Int("offset", &page.Offset).
		Int("limit", &page.Limit).
		BindError()
	if err != nil {
		return s.fail(c, badRequest("offset and limit must be integers"))
	}
	withWorkspace(c, workspaceID)

	res, err := s.svc.ListMemories(c.Request().Context(), workspaceID, auth.RequesterID(c), page)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetMemory(c echo.Context) error {
	m, err := s.svc.GetMemory(c.Request().Context(), c.Param("id"), auth.RequesterID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(c echo.Context) error {
	id := c.Param("id")
	if err := s.svc.DeleteMemory(c.Request().Context(), id, auth.RequesterID(c)); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{MemoryID: id, Deleted: true})
}

func (s *Server) handleVerifyMemory(c echo.Context) error {
	m, err := s.svc.VerifyMemory(c.Request().Context(), c.Param("id"), auth.RequesterID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	withWorkspace(c, req.WorkspaceID)
	limit := DefaultSearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	results, err := s.svc.SearchMemories(c.Request().Context(), search.Query{
		Text:        req.Query,
		RequesterID: auth.RequesterID(c),
		WorkspaceID: req.WorkspaceID,
		Limit:       limit,
		Category:    req.Category,
		Visibility:  req.Visibility,
	})
	if err != nil {
		return s.fail(c, err)
	}
	if results == nil {
		results = []search.ScoredMemory{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleInsights(c echo.Context) error {
	workspaceID := c.Param("id")
	withWorkspace(c, workspaceID)

	report, err := s.svc.TeamInsights(c.Request().Context(), workspaceID, auth.RequesterID(c), c.QueryParam("timeframe"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
