package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storyreel-server/models"
	"storyreel-server/pkg/logger"
	"storyreel-server/pkg/videogen"
	"storyreel-server/services"
)

type GenerationController struct {
	generationService *services.GenerationService
}

func NewGenerationController(gs *services.GenerationService) *GenerationController {
	return &GenerationController{
		generationService: gs,
	}
}

// StartGeneration kicks off video generation for an approved storyboard.
// The work itself runs on queue workers; this returns the pending record.
func (gc *GenerationController) StartGeneration(c *gin.Context) {
	var req models.StartGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	candidates := req.Candidates
	if candidates == 0 {
		candidates = 1
	}

	record, err := gc.generationService.StartGeneration(c.Param("id"), candidates)
	if err != nil {
		gc.respondError(c, err, "Failed to start generation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Generation started",
		"generations": record,
	})
}

func (gc *GenerationController) GetGenerations(c *gin.Context) {
	record, err := gc.generationService.GetGenerations(c.Param("id"))
	if err != nil {
		gc.respondError(c, err, "Failed to get generations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generations": record,
	})
}

// RefreshGenerations polls providers for every non-terminal video and
// returns the updated record.
func (gc *GenerationController) RefreshGenerations(c *gin.Context) {
	record, err := gc.generationService.RefreshGenerations(c.Param("id"))
	if err != nil {
		gc.respondError(c, err, "Failed to refresh generations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generations": record,
	})
}

func (gc *GenerationController) SelectVideo(c *gin.Context) {
	var req models.SelectVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	record, err := gc.generationService.SelectVideo(c.Param("id"), &req)
	if err != nil {
		gc.respondError(c, err, "Failed to select video")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Video selected",
		"generations": record,
	})
}

func (gc *GenerationController) RemixVideo(c *gin.Context) {
	var req models.RemixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	record, err := gc.generationService.Remix(c.Param("id"), &req)
	if err != nil {
		gc.respondError(c, err, "Failed to remix video")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Remix started",
		"generations": record,
	})
}

func (gc *GenerationController) respondError(c *gin.Context, err error, fallback string) {
	var vErr *videogen.ValidationError
	var reqErr *videogen.RequestError
	var notFound *videogen.VideoNotFoundError
	var authErr *videogen.AuthenticationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrStoryboardNotApproved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": vErr.Error(),
			"kind":  string(vErr.Kind),
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Provider authentication failed"})
	case errors.As(err, &reqErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Errorf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
