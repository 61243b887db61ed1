package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BabaYagaSystems/aroundly-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
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

// RespondServiceError derives status and code from err. Internal failures are not echoed.
func RespondServiceError(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	if apiErr == nil {
		apiErr = apierr.New(http.StatusInternalServerError, "internal_error", nil)
	}
	msg := apiErr.Error()
	if apiErr.Status >= http.StatusInternalServerError && !apiErr.Retry {
		msg = "internal error"
	}
	_ = c.Error(err)
	if apiErr.Retry {
		c.Header("Retry-After", "1")
	}
	c.JSON(apiErr.Status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    apiErr.Code,
			Retry:   apiErr.Retry,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
