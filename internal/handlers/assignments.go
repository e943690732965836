package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/format"
	"social-rideshare/internal/matcher"
	"social-rideshare/internal/models"
)

func (h *Handler) bindRequest(c *gin.Context) (*matcher.Request, bool) {
	var req matcher.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.writeSolveError(c, err)
			return nil, false
		}
		verr := &models.ValidationError{}
		if errors.Is(err, io.EOF) {
			verr.Add("body", "request body is empty")
		} else {
			verr.Add("body", "malformed JSON: %v", err)
		}
		h.writeSolveError(c, verr)
		return nil, false
	}
	return &req, true
}

// HandleMatchAndMerge handles POST /match_and_merge. It answers with the
// bare nested partition and runs Match-and-Merge unless the request names
// another algorithm.
func (h *Handler) HandleMatchAndMerge(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = string(assignment.AlgorithmMatchAndMerge)
	}

	resp, err := h.Solver.Solve(c.Request.Context(), req)
	if err != nil {
		h.writeSolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, format.Partition(resp))
}

// HandleCreateAssignment handles POST /api/v1/assignments
func (h *Handler) HandleCreateAssignment(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	resp, err := h.Solver.Solve(c.Request.Context(), req)
	if err != nil {
		h.writeSolveError(c, err)
		return
	}

	h.logger().Debug("assignment created",
		zap.String("request_id", c.GetString(RequestIDKey)),
		zap.Int("groups", len(resp.Groups)))
	c.JSON(http.StatusOK, resp)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(c *gin.Context) {
	status := "ok"
	cacheStatus := "disabled"

	if h.Cache != nil {
		cacheStatus = "connected"
		if err := h.Cache.HealthCheck(c.Request.Context()); err != nil {
			status = "degraded"
			cacheStatus = "error"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"version": Version,
		"cache":   cacheStatus,
	})
}

// RegisterRoutes mounts every endpoint on r
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/match_and_merge", h.HandleMatchAndMerge)

	api := r.Group("/api/v1")
	api.GET("/health", h.HandleHealthCheck)
	api.POST("/assignments", h.HandleCreateAssignment)
}
