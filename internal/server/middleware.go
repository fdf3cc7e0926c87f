package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"go.uber.org/zap"
)

const HeaderBusiness = "X-Business-ID"

// BusinessContext resolves the tenant from the request header and injects
// it into the request context. Every /v1 route requires it.
func BusinessContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderBusiness))
		if raw == "" {
			AbortWithError(c, ErrMissingBusiness)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			AbortWithError(c, ErrMissingBusiness)
			return
		}

		ctx := tenantctx.WithBusinessID(c.Request.Context(), snowflake.ID(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if business := c.GetHeader(HeaderBusiness); business != "" {
			fields = append(fields, zap.String("business_id", business))
		}
		if status >= 500 {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
