package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(r *gin.RouterGroup) {
	r.GET("/health", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		resp := gin.H{"message": msg}
		if provider, err := GetStorageProvider(c); err == nil {
			if version, err := provider.GetSchemaVersion(c.Request.Context()); err == nil {
				resp["schema_version"] = version
			} else {
				c.JSON(http.StatusServiceUnavailable, gin.H{"message": "storage unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, resp)
	})
}
