package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/stimulus"
)

// GetState returns the current session snapshot.
func (c *Controller) GetState(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Session.State())
}

// StartTest requests Idle → Positioning.
func (c *Controller) StartTest(ctx echo.Context) error {
	return c.command(ctx, "start", c.Session.Start)
}

// ContinueTest requests Positioning → Stimulus.
func (c *Controller) ContinueTest(ctx echo.Context) error {
	return c.command(ctx, "continue", c.Session.Continue)
}

// ResetTest requests Results → Idle.
func (c *Controller) ResetTest(ctx echo.Context) error {
	return c.command(ctx, "reset", c.Session.Reset)
}

func (c *Controller) command(ctx echo.Context, name string, fn func(context.Context) error) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), c.commandWait)
	defer cancel()

	log := c.log.WithContext(ctx.Request().Context())
	if err := fn(reqCtx); err != nil {
		log.Debug("session command rejected",
			logger.String("command", name),
			logger.Error(err))
		return c.HandleError(ctx, err)
	}
	log.Info("session command accepted", logger.String("command", name))
	return ctx.JSON(http.StatusOK, c.Session.State())
}

// GetResult returns the result of the completed trial.
func (c *Controller) GetResult(ctx echo.Context) error {
	state := c.Session.State()
	if state.Result == nil {
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "no result available", Phase: state.Phase.String()})
	}
	return ctx.JSON(http.StatusOK, state.Result)
}

// GetTrial exports the samples of the last completed trial.
func (c *Controller) GetTrial(ctx echo.Context) error {
	trial, ok := c.Session.LastTrial()
	if !ok {
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "no completed trial"})
	}
	return ctx.JSON(http.StatusOK, trial)
}

// GetStimulus returns the stripe pattern descriptor.
func (c *Controller) GetStimulus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, stimulus.Default())
}
