package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tixsync/internal/observability/logger"
	"go.uber.org/zap"
)

const paramOrgID = "org_id"

// SubmissionRateLimit throttles report submissions per organization. Redis
// failures let the request through.
func (s *Server) SubmissionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.submitLimits.Enabled() {
			c.Next()
			return
		}

		orgID := strings.TrimSpace(c.Param(paramOrgID))
		ctx := c.Request.Context()
		result, err := s.submitLimits.Allow(ctx, orgID)
		if err != nil {
			logger.FromContext(ctx).Warn("report submission rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func orgIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(paramOrgID)))
	if err != nil || id <= 0 {
		return 0, newValidationError("org_id", "invalid_organization", "invalid organization id")
	}
	return id, nil
}

func idParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}

// classifyErrorForLog reports the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
