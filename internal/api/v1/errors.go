package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/session"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Phase string `json:"phase,omitempty"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.IsCategory(err, errors.CategoryState):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err as an ErrorResponse with the mapped status.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if status == http.StatusConflict {
		resp.Phase = c.Session.State().Phase.String()
	}
	return ctx.JSON(status, resp)
}
