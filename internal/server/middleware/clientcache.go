package middleware

import "github.com/gin-gonic/gin"

// ClientCache returns a middleware that forbids clients and intermediaries
// from caching the response.
func ClientCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
