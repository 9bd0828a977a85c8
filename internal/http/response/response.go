package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondAggregateError maps an aggregate error code onto the HTTP status.
// Errors without a code are internal; their text is not echoed.
func RespondAggregateError(c *gin.Context, err error) {
	code := domainagg.CodeOf(err)
	status := StatusFor(code)
	if code == "" || code == domainagg.CodeInternal {
		RespondError(c, status, string(domainagg.CodeInternal), errInternal)
		return
	}
	RespondError(c, status, string(code), err)
}

func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict, domainagg.CodeInvariantViolation:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type internalError struct{}

func (internalError) Error() string { return "internal error" }

var errInternal error = internalError{}
