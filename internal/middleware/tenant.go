package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

// Context keys shared with the go-shared IstioAuth and RBAC middleware
const (
	TenantIDKey = "tenant_id"
	VendorIDKey = "vendor_id"
	UserIDKey   = "user_id"
	StaffIDKey  = "staff_id"
)

// TenantMiddleware resolves the tenant of a request. A tenant already set by
// IstioAuth (from JWT claims) wins over the X-Vendor-ID and X-Tenant-ID headers.
// Requests without a tenant are rejected; there is no default tenant.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString(TenantIDKey)
		if tenantID == "" {
			tenantID = c.GetHeader("X-Vendor-ID")
		}
		if tenantID == "" {
			tenantID = c.GetHeader("X-Tenant-ID")
		}

		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "TENANT_REQUIRED",
					Message: "Vendor/Tenant ID is required. Include X-Vendor-ID or X-Tenant-ID header.",
				},
			})
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Set(VendorIDKey, tenantID)
		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from gin context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetUserID retrieves the acting user from gin context
func GetUserID(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return id
	}
	return c.GetString(StaffIDKey)
}
