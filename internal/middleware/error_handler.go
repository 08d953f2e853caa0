package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"dontcare/internal/errors"
	"dontcare/internal/logger"
)

// ErrorHandler recovers from panics and converts them to the standard
// error envelope.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(map[string]interface{}{
			"error":  recovered,
			"stack":  string(debug.Stack()),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Panic recovered")

		writeError(c, errors.NewAppError(errors.ErrCodeInternal, "Internal server error", nil))
	})
}

// HandleError converts errors attached to the gin context into the
// standard envelope after the handler chain runs.
func HandleError(c *gin.Context) {
	c.Next()

	if len(c.Errors) > 0 {
		AbortWithError(c, c.Errors.Last().Err)
	}
}

// AbortWithError writes the error envelope and stops the handler chain.
// Handlers call this for every failure path so clients always see the
// same shape.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	appErr := errors.GetAppError(err)
	if appErr == nil {
		appErr = errors.WrapError(err, errors.ErrCodeInternal, "Internal server error")
	}

	writeError(c, appErr)
}

func writeError(c *gin.Context, appErr *errors.AppError) {
	entry := logger.WithFields(map[string]interface{}{
		"error_code": appErr.Code,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"ip":         c.ClientIP(),
	})
	if appErr.Cause != nil {
		entry = entry.WithField("cause", appErr.Cause.Error())
	}

	status := appErr.HTTPStatus()
	if status >= 500 {
		entry.Error(appErr.Message)
	} else {
		entry.Warn(appErr.Message)
	}

	c.AbortWithStatusJSON(status, errors.NewErrorResponse(appErr, c.Request.URL.Path))
}
