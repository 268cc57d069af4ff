package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"storyreel-server/controllers"
	"storyreel-server/middleware"
	"storyreel-server/services"
)

func SetupRoutes(r *gin.Engine, generationService *services.GenerationService) {
	projectController := controllers.NewProjectController()
	generationController := controllers.NewGenerationController(generationService)

	// Health check and system endpoints
	r.GET("/health", healthCheck)
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "StoryReel Video Generation API",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", projectController.CreateProject)
			projects.GET("", projectController.ListProjects)
			projects.GET("/:id", projectController.GetProject)
			projects.PUT("/:id", projectController.UpdateProject)
			projects.DELETE("/:id", projectController.DeleteProject)

			// Storyboard lifecycle
			projects.PUT("/:id/storyboard", projectController.UpdateStoryboard)
			projects.POST("/:id/storyboard/approve", projectController.ApproveStoryboard)

			// Generation lifecycle
			projects.POST("/:id/generations", middleware.GenerationRateLimit(), generationController.StartGeneration)
			projects.GET("/:id/generations", generationController.GetGenerations)
			projects.POST("/:id/generations/refresh", generationController.RefreshGenerations)
			projects.POST("/:id/generations/select", generationController.SelectVideo)
			projects.POST("/:id/generations/remix", middleware.GenerationRateLimit(), generationController.RemixVideo)
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
