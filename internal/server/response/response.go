// Package response writes the uniform JSON envelope used by every endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
)

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the body of every response.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Details    any    `json:"details,omitempty"`
}

// Writer renders envelopes. Internal error details are exposed only when Debug is set.
type Writer struct {
	Debug bool
	Log   *zap.Logger
	Now   func() time.Time
}

// NewWriter returns a Writer. debug exposes internal error causes in the details field.
func NewWriter(debug bool, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{Debug: debug, Log: log, Now: time.Now}
}

func (w *Writer) timestamp() string {
	return w.Now().UTC().Format(timestampLayout)
}

// OK writes a 200 success envelope.
func (w *Writer) OK(c *gin.Context, message string, data any) {
	w.Success(c, http.StatusOK, message, data)
}

// Success writes a success envelope with the given status.
func (w *Writer) Success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Code:       apperr.CodeSuccess,
		StatusCode: status,
		Timestamp:  w.timestamp(),
	})
}

// Error writes the failure envelope for err and aborts the handler chain.
// Errors that are not *apperr.Error are treated as internal.
func (w *Writer) Error(c *gin.Context, err error) {
	e := apperr.As(err)
	status := e.Status()
	env := Envelope{
		Success:    false,
		Message:    e.Message,
		Code:       e.Code,
		StatusCode: status,
		Timestamp:  w.timestamp(),
	}
	switch e.Kind {
	case apperr.KindInternal:
		w.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("code", e.Code),
			zap.Error(e.Err))
		if w.Debug && e.Err != nil {
			env.Details = map[string]any{"error": e.Err.Error()}
		}
	case apperr.KindAuthentication, apperr.KindAuthorization, apperr.KindValidation,
		apperr.KindNotFound, apperr.KindConflict, apperr.KindRateLimited:
		env.Details = e.Details
	}
	_ = c.Error(e)
	c.AbortWithStatusJSON(status, env)
}
