package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data any, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

// Created answers 201 for resources written by the request.
func Created(c *gin.Context, data any) {
	wrapResponse(c, http.StatusCreated, "", data, OK)
}

// Error reports an upstream failure. Internal error text is for the log,
// not the caller.
func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, http.StatusInternalServerError, msg, nil, errorCode)
}

// HTTPError reports a failure with an explicit HTTP status.
func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, errorCode)
}

func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

func ForbiddenError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusForbidden, msg, UserNotAllowed)
}

func NotFoundError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusNotFound, msg, ResourceNotFound)
}
