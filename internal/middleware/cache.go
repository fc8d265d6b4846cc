package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge               int
	Private              bool
	StaleWhileRevalidate int
	Vary                 []string
}

// PublicCacheConfig suits anonymous content such as blog posts and the carousel.
func PublicCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:               60,
		StaleWhileRevalidate: 300,
		Vary:                 []string{"Accept-Encoding"},
	}
}

// Cache sets Cache-Control on successful GET responses. Errors are never cached.
func Cache(config CacheConfig) gin.HandlerFunc {
	directives := []string{"public"}
	if config.Private {
		directives[0] = "private"
	}
	if config.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
	}
	if config.StaleWhileRevalidate > 0 {
		directives = append(directives, "stale-while-revalidate="+strconv.Itoa(config.StaleWhileRevalidate))
	}
	value := strings.Join(directives, ", ")
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != "GET" {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		// headers must be set before the handler writes the body
		c.Header("Cache-Control", value)
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()

		// the error middleware has not written the failure yet
		if len(c.Errors) > 0 && !c.Writer.Written() {
			c.Header("Cache-Control", "no-store")
		}
	}
}
