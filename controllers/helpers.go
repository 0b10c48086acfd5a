package controllers

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/middleware"
)

const (
	minYear = 1970
	maxYear = 9999
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
				y := fl.Field().Int()
				return y >= minYear && y <= maxYear
			})
		}
	})
}

type yearQuery struct {
	Year *int `form:"year" binding:"omitempty,year"`
}

var errInvalidYear = apperr.Validation(apperr.CodeInvalidYear, "year must be an integer between 1970 and 9999")

// parseYear reads the optional ?year= filter.
func parseYear(ctx *gin.Context) (*int, error) {
	if strings.TrimSpace(ctx.Query("year")) == "" {
		return nil, nil
	}
	var q yearQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, errInvalidYear
	}
	return q.Year, nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(apperr.CodeInvalidID, "invalid record id")
	}
	return uint(id), nil
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func invalidPayload(err error) error {
	return apperr.Validation(apperr.CodeInvalidPayload, "invalid request payload").WithCause(err)
}
