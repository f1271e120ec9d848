package handlers

import "github.com/gin-gonic/gin"

// GetAdminID returns the authenticated admin ID from the request context.
func GetAdminID(c *gin.Context) uint64 {
	value, ok := c.Get("adminID")
	if !ok {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}
