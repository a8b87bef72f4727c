// Package response writes the JSON envelope shared by every control endpoint.
package response

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body of every control response
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success writes a 200 envelope
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Fail writes an error envelope with the status matching err's kind and
// logs the failure.
func Fail(c *gin.Context, log zerolog.Logger, message string, err error, data any) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("path", c.FullPath()).
		Str("kind", string(kind)).
		Msg(message)

	c.JSON(status, Envelope{Status: StatusError, Message: message, Data: data, Error: errorText(err)})
}

// BadRequest writes a 400 envelope without logging
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Status: StatusError, Message: message})
}

// BindOptionalJSON decodes the request body into obj. An empty body leaves
// obj untouched.
func BindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
