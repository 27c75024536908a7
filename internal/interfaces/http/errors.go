package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// errorMapping ties a domain sentinel to its HTTP status and machine-readable code
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainwf.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domainwf.ErrInvalidFundType, http.StatusBadRequest, "invalid_fund_type"},
	{domainwf.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domainwf.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainwf.ErrImmutableReport, http.StatusConflict, "immutable_report"},
	{domainwf.ErrStaleState, http.StatusConflict, "stale_state"},
	{domainwf.ErrTerminalState, http.StatusConflict, "terminal_state"},
	{domainwf.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domainwf.ErrGuardFailed, http.StatusConflict, "invalid_transition"},
}

// statusFor maps an error from the services to an HTTP status and code
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err. Internal errors are logged and hidden from the caller. Not-found
// responses carry a fixed message so missing and hidden reports are indistinguishable.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusNotFound:
		message = domainwf.ErrNotFound.Error()
	case http.StatusInternalServerError:
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		message = "internal server error"
	}

	c.JSON(status, Response{
		Success: false,
		Code:    code,
		Error:   message,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    "validation_error",
		Error:   message,
	})
}
