package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var unavailable *workflow.UnavailableError
	switch {
	case errors.As(err, &unavailable), errors.Is(err, workflow.ErrReviewerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, workflow.ErrUnknownReviewer):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as an ErrorResponse. Internal errors are
// logged in full and returned with a generic message.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			code int
			body ErrorResponse
			he   *echo.HTTPError
		)
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			} else {
				body.Error = http.StatusText(code)
			}
		} else {
			code = statusFor(err)
			body.Error = err.Error()
			var unavailable *workflow.UnavailableError
			if errors.As(err, &unavailable) {
				body.Unavailable = unavailable.Reviewers
			}
			if code == http.StatusInternalServerError {
				logger.Error(c.Request().Context(), "request failed",
					zap.String("route", c.Path()),
					zap.Error(err),
				)
				body.Error = http.StatusText(code)
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Warn(c.Request().Context(), "write error response failed", zap.Error(err))
		}
	}
}
