package response

import (
	"errors"
	"net/http"

	"paylor/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader echoes the request correlation ID on every response.
const RequestIDHeader = "X-Request-ID"

// ErrorBody is the nested part of the error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse carries the message both nested and at the top level so
// clients reading either `error.message` or `message` get the same text.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
}

// OK sends a 200 response with data as the body.
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, data)
}

// Created sends a 201 response with data as the body.
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, data)
}

// Error sends an error response. *apperror.AppError anywhere in the chain is
// mapped to its status and code; anything else becomes a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeError(c, appErr.HTTPStatus, appErr.Code, appErr.Message)
		return
	}
	writeError(c, http.StatusInternalServerError, "SYS_000", "Internal server error")
}

// Abort is Error followed by c.Abort, for middleware.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func write(c *gin.Context, status int, data interface{}) {
	c.Header(RequestIDHeader, getRequestID(c))
	c.JSON(status, data)
}

func writeError(c *gin.Context, status int, code, message string) {
	id := getRequestID(c)
	c.Header(RequestIDHeader, id)
	c.JSON(status, ErrorResponse{
		Error:     ErrorBody{Code: code, Message: message},
		Message:   message,
		RequestID: id,
	})
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
