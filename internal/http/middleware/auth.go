package middleware

import (
	"net/http"
	"strings"

	"pilgrimage/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// TokenParser validates a bearer token and returns its subject and role.
type TokenParser func(raw string) (userID int64, role string, err error)

// AuthOptional sets userID/userRole when a valid bearer token is present.
// Requests without a token pass through as anonymous; a bad token is rejected.
func AuthOptional(parse TokenParser) gin.HandlerFunc {
	return auth(parse, false)
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(parse TokenParser) gin.HandlerFunc {
	return auth(parse, true)
}

func auth(parse TokenParser, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":      "unauthorized: missing bearer token",
					"code":       "unauthorized",
					"request_id": GetRequestID(c),
				})
				return
			}
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			raw, ok = strings.CutPrefix(header, "bearer ")
		}
		var (
			userID int64
			role   string
			err    error
		)
		if ok {
			userID, role, err = parse(strings.TrimSpace(raw))
		}
		if !ok || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized: invalid token",
				"code":       "unauthorized",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Set(userRoleKey, role)
		c.Next()
	}
}

// Actor returns the caller identity set by the auth middleware. Anonymous
// callers get a zero UserID.
func Actor(c *gin.Context) domain.RequestContext {
	rc := domain.RequestContext{RequestID: GetRequestID(c)}
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(int64); ok {
			rc.UserID = domain.ID(id)
		}
	}
	rc.Role = c.GetString(userRoleKey)
	return rc
}
