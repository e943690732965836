// Package handlers serves the assignment pipeline over HTTP
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-rideshare/internal/format"
	"social-rideshare/internal/matcher"
	"social-rideshare/internal/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Solver runs one assignment request
type Solver interface {
	Solve(ctx context.Context, req *matcher.Request) (*format.Response, error)
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	Solver Solver
	// Cache is optional
	Cache  HealthChecker
	Logger *zap.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeError(c *gin.Context, status int, detail ErrorDetail) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
}

// writeSolveError maps pipeline errors onto status codes. Input problems
// are the caller's to fix (400), a valid request without a feasible
// partition is 422.
func (h *Handler) writeSolveError(c *gin.Context, err error) {
	var (
		verr       *models.ValidationError
		capErr     *models.CapacityError
		infeasible *models.InfeasibleError
		maxBytes   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: verr.Error(),
			Field:   verr.Field(),
			Details: verr.Problems,
		})
	case errors.As(err, &capErr):
		writeError(c, http.StatusBadRequest, ErrorDetail{
			Code:    "CAPACITY_ERROR",
			Message: capErr.Reason,
			Field:   capErr.Field,
			Details: gin.H{"capacity": capErr.Capacity},
		})
	case errors.As(err, &infeasible):
		writeError(c, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    "INFEASIBLE",
			Message: infeasible.Reason,
			Field:   infeasible.Field,
			Details: gin.H{"capacity": infeasible.Capacity, "unassigned": infeasible.Unassigned},
		})
	case errors.As(err, &maxBytes):
		writeError(c, http.StatusRequestEntityTooLarge, ErrorDetail{
			Code:    "BODY_TOO_LARGE",
			Message: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, ErrorDetail{
			Code:    "TIMEOUT",
			Message: "request took too long",
		})
	case errors.Is(err, context.Canceled):
		// the client is gone, nobody reads the body
		c.AbortWithStatus(499)
	default:
		h.logger().Error("request failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		})
	}
}

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"
