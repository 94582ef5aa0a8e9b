package middleware

import (
	"context"
	"strings"

	"careerloop-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const HeaderAPIKey = "X-API-Key"

type sourceKey struct{}

var SourceContextKey = sourceKey{}

// KeyChecker verifies an ingestion API key.
type KeyChecker interface {
	CheckAPIKey(key string) error
}

// APIKey rejects requests without a valid X-API-Key and stores the source the
// key maps to on the request context.
func APIKey(checker KeyChecker, sourceOf func(key string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if key == "" {
			_ = c.Error(errutil.Unauthorized("missing api key", nil))
			c.Abort()
			return
		}
		if err := checker.CheckAPIKey(key); err != nil {
			_ = c.Error(errutil.Unauthorized("invalid api key", err))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), SourceContextKey, sourceOf(key))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetSource returns the source stored by APIKey, or fallback.
func GetSource(ctx context.Context, fallback string) string {
	src, ok := ctx.Value(SourceContextKey).(string)
	if !ok || src == "" {
		return fallback
	}
	return src
}
