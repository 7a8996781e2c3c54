package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitepass/sitepass-backend/internal/apperr"
)

// Envelope is the uniform response shape. Code zero means success; any other
// value is one of the enumerated business codes.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Code: apperr.CodeOK, Message: "ok", Data: data})
}

// RespondError maps a business error to its envelope and HTTP status.
// Validation failures carry their field errors in data.
func RespondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	env := Envelope{Code: code, Message: err.Error()}
	if ae, ok := apperr.As(err); ok && len(ae.Fields) > 0 {
		env.Data = gin.H{"fields": ae.Fields}
	}
	c.JSON(httpStatusFor(code), env)
}

func httpStatusFor(code int) int {
	switch {
	case code == apperr.CodeOK:
		return http.StatusOK
	case code == apperr.CodeValidationError || code == apperr.CodeTicketChangeForbidden:
		return http.StatusBadRequest
	case code == apperr.CodeNotFound || code == apperr.CodeTicketNotFound ||
		code == apperr.CodeUserNotFound || code == apperr.CodeAccessGrantNotFound:
		return http.StatusNotFound
	case code == apperr.CodePermissionDenied:
		return http.StatusForbidden
	case code >= 20001 && code <= 20006:
		return http.StatusUnauthorized
	case code == apperr.CodeRateLimit:
		return http.StatusTooManyRequests
	case code == apperr.CodeUnknownError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
