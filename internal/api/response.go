package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tailorcv/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// RespondDomainError 把领域错误翻译成 HTTP 响应，同时携带业务错误码。
func RespondDomainError(c *gin.Context, err error) {
	code := errcode.Code(err)
	c.JSON(statusForCode(code), gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func statusForCode(code int) int {
	switch code {
	case errcode.UnsupportedFileType, errcode.EmptyExtraction, errcode.ResumeParsingFailed:
		return http.StatusUnprocessableEntity
	case errcode.ResumeQuotaExceeded, errcode.AIQuotaExceeded:
		return http.StatusForbidden
	case errcode.ResourceMissing:
		return http.StatusNotFound
	case errcode.RateLimited:
		return http.StatusTooManyRequests
	case errcode.Unauthorized:
		return http.StatusUnauthorized
	case errcode.ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
