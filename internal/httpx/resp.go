package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response represents the standard API response structure
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK sends a successful response with default message "success"
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// OKMsg sends a successful response with custom message
func OKMsg(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Fail sends an error response with specified HTTP status, business code, and message
func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr sends an error response from an AppError
// If AppError.Err is not nil, it will be logged but not returned to client
func FailErr(c *gin.Context, err *AppError) {
	if err.Err != nil {
		entry := logrus.WithFields(logrus.Fields{
			"code":   err.Code,
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		if rid, ok := c.Get(RequestIDKey); ok {
			entry = entry.WithField("request_id", rid)
		}
		entry.WithError(err.Err).Error(err.Message)
	}

	c.JSON(err.HTTPStatus, Response{
		Code:    err.Code,
		Message: err.Message,
		Data:    nil,
	})
}

// FailAny sends an error response for any error returned by a service.
// AppErrors are returned as-is; anything else becomes an internal error with
// the given message.
func FailAny(c *gin.Context, err error, message string) {
	FailErr(c, AsAppError(err, message))
}

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// ListData represents the standard list response data structure
type ListData struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

// OKItems sends a successful list response
func OKItems(c *gin.Context, items interface{}, total int64) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: ListData{
			Items: items,
			Total: total,
		},
	})
}
