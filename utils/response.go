package utils

import (
	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/gin-gonic/gin"
)

// RespondData writes the success envelope.
func RespondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// RespondError maps err onto the error envelope. Internal errors are logged
// and their message is replaced with a generic one.
func RespondError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err, "An unexpected error occurred")
	}

	kind := appErr.Kind()
	message := appErr.Message()
	if kind == apperrors.KindInternal || kind == apperrors.KindExternalService {
		logger.FromContext(c.Request.Context()).Error().
			Err(err).
			Str("code", appErr.Code()).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	if kind == apperrors.KindInternal {
		message = "An unexpected error occurred"
	}

	errBody := gin.H{
		"code":    appErr.Code(),
		"message": message,
	}
	if details := appErr.Details(); details != nil {
		errBody["details"] = details
	}
	return kind.HTTPStatus(), gin.H{
		"success": false,
		"error":   errBody,
	}
}
