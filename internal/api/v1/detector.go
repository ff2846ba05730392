package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/errors"
)

// IngestResponse acknowledges a detector frame.
type IngestResponse struct {
	Accepted bool   `json:"accepted"`
	Kind     string `json:"kind"`
}

// PostDetection accepts one detector frame. A frame dropped because the
// session inbox is full is still a 202, with accepted=false.
func (c *Controller) PostDetection(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}

	d, err := detector.DecodeFrame(body)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	accepted := c.Session.Submit(d)
	return ctx.JSON(http.StatusAccepted, IngestResponse{Accepted: accepted, Kind: d.Kind()})
}
