package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/metrics"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Success writes data as the response body with status 200.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, ErrorResponse{Error: message, Code: code})
}

// Fail maps err onto the error taxonomy and writes it. Internal causes are
// attached to the gin context for the access logger and never sent to the client.
func Fail(ctx *gin.Context, err error) {
	e := apperr.As(err)
	metrics.DomainErrorsTotal.WithLabelValues(e.Kind.String(), strconv.Itoa(e.Code)).Inc()
	if e.Kind == apperr.KindInternal {
		_ = ctx.Error(err)
	}
	Error(ctx, e.Status(), e.Code, e.Message)
}
