package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// errorMapping turns a use-case sentinel into an HTTP status and error body.
// An empty message falls back to err.Error().
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

func writeMappedError(c echo.Context, err error, mappings []errorMapping, fallback string, data any) error {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		body := apiResponse{Error: &errorBody{Code: m.code, Message: msg}}
		if m.status >= http.StatusInternalServerError {
			body.Data = data
		}
		return c.JSON(m.status, body)
	}

	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: fallback,
	}})
}
