package middleware

import (
	"github.com/gin-gonic/gin"
)

// DevUserID is the staff identity used when no auth proxy sits in front of the service
const DevUserID = "00000000-0000-0000-0000-000000000001"

// DevelopmentAuthMiddleware fills in a user for local runs. An identity set
// upstream by IstioAuth is kept.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			userID = c.GetHeader("X-User-ID")
		}
		if userID == "" {
			userID = DevUserID
		}

		// RBAC checks staff_id first
		c.Set(UserIDKey, userID)
		c.Set(StaffIDKey, userID)
		c.Next()
	}
}
