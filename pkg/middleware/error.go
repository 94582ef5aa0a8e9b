package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"careerloop-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Error renders the last handler error as an errutil envelope.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := normalize(last.Err)
		if be.Code.HTTPStatus() >= 500 {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}
		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}

func normalize(err error) errutil.BaseError {
	if be, ok := errutil.As(err); ok {
		return be
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]errutil.Detail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, errutil.Detail{
				Field:   strings.ToLower(fe.Field()),
				Message: "failed on " + fe.Tag(),
			})
		}
		return errutil.BaseError{Code: errutil.StatusValidationFailed, Message: "invalid request", Details: details}
	}

	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntax) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return errutil.BaseError{Code: errutil.StatusBadRequest, Message: "malformed request body", Err: err}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.BaseError{Code: errutil.StatusNotFound, Message: "resource not found"}
	}

	return errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error"}
}
