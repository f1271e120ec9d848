package handlers

import "github.com/gin-gonic/gin"

// getResellerID returns the authenticated reseller ID from the request context.
func getResellerID(c *gin.Context) uint64 {
	value, ok := c.Get("resellerID")
	if !ok {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}
