package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseUintParam reads a numeric path parameter, writing the 400 response
// itself on failure.
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// filterUpdates keeps only the allowed keys of a client-supplied update body.
func filterUpdates(body map[string]any, allowed ...string) map[string]any {
	updates := make(map[string]any)
	for _, key := range allowed {
		if v, ok := body[key]; ok {
			updates[key] = v
		}
	}
	return updates
}
