package middleware

import (
	"affiliate-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const HeaderXRequestID = "X-Request-Id"

// RequestID echoes the caller's request id, minting one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(HeaderXRequestID, requestID)
		c.Next()
	}
}

// Error renders the last errutil.BaseError pushed onto the gin error stack.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		zap.L().Error("unhandled request error", zap.Error(err.Err))
		c.JSON(errutil.StatusInternal.HTTPStatus(), errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal error",
		}.JSON())
	}
}
