package middleware

import (
	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header for responses.
func CacheControl(directive string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", directive)
		c.Next()
	}
}

// NoStore marks responses as private draft state that must not be cached.
func NoStore() gin.HandlerFunc {
	return CacheControl("private, no-store")
}
