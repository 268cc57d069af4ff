package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storyreel-server/config"
)

func CORS() gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"X-Requested-With", "Accept", "Accept-Encoding", "Accept-Language",
		},
		ExposeHeaders: []string{
			"Content-Length", "Content-Type", RequestIDKey,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// CORS_ALLOWED_ORIGINS narrows the allowed origins; unset means open,
	// which is the expected setup for local development.
	if origins := config.AppConfig.Server.AllowedOrigins; len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return true
		}
	}

	return cors.New(corsConfig)
}
