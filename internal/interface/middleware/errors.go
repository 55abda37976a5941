package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/response"
)

const internalMessage = "something went very wrong"

// Abort records err for ErrorHandler and stops the chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last error pushed with c.Error using the response
// envelope. Only internal errors are logged as errors; in dev mode their
// underlying text is returned to the client.
func ErrorHandler(logger *logrus.Logger, devMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		kind := apperror.KindOf(err)
		status := kind.Status()

		var (
			message = apperror.MessageOf(err)
			detail  any
		)
		switch kind {
		case apperror.KindValidation:
			if f := apperror.FieldsOf(err); len(f) > 0 {
				detail = f
			}
		case apperror.KindInternal:
			logger.WithError(err).
				WithField("request_id", c.GetString(response.RequestIDKey)).
				WithField("path", c.Request.URL.Path).
				Error("request failed")
			message = internalMessage
			if devMode {
				detail = err.Error()
			}
		default:
			logger.WithField("kind", kind.String()).
				WithField("request_id", c.GetString(response.RequestIDKey)).
				Debug(message)
		}

		res := response.Error[any](c, status, message, detail)
		c.JSON(status, res)
	}
}

// NotFound answers unmatched routes through the same envelope.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		Abort(c, apperror.NotFound("can't find "+c.Request.URL.Path+" on this server"))
	}
}

// Recovery turns panics into internal errors rendered by ErrorHandler.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		Abort(c, apperror.Wrap(panicError{recovered}, apperror.KindInternal, http.StatusText(http.StatusInternalServerError)))
	})
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return "panic: " + err.Error()
	}
	if s, ok := p.v.(string); ok {
		return "panic: " + s
	}
	return "panic"
}
