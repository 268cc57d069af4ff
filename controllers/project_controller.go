package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storyreel-server/models"
	"storyreel-server/pkg/logger"
	"storyreel-server/pkg/videogen"
	"storyreel-server/services"
)

type ProjectController struct {
	projectService *services.ProjectService
}

func NewProjectController() *ProjectController {
	return &ProjectController{
		projectService: services.NewProjectService(),
	}
}

func (pc *ProjectController) CreateProject(c *gin.Context) {
	var req models.ProjectCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	project, err := pc.projectService.CreateProject(&req)
	if err != nil {
		logger.Errorf("Failed to create project: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create project",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Project created successfully",
		"project": project,
	})
}

func (pc *ProjectController) GetProject(c *gin.Context) {
	project, ok := pc.loadProject(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
	})
}

func (pc *ProjectController) ListProjects(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	projects, total, err := pc.projectService.ListProjects(limit, offset)
	if err != nil {
		logger.Errorf("Failed to list projects: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list projects",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    total,
	})
}

func (pc *ProjectController) UpdateProject(c *gin.Context) {
	var req models.ProjectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	project, err := pc.projectService.UpdateProject(c.Param("id"), &req)
	if err != nil {
		pc.respondError(c, err, "Failed to update project")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project updated successfully",
		"project": project,
	})
}

func (pc *ProjectController) UpdateStoryboard(c *gin.Context) {
	var req models.StoryboardUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request data: " + err.Error(),
		})
		return
	}

	project, err := pc.projectService.UpdateStoryboard(c.Param("id"), &req)
	if err != nil {
		pc.respondError(c, err, "Failed to update storyboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Storyboard updated successfully",
		"project": project,
	})
}

func (pc *ProjectController) ApproveStoryboard(c *gin.Context) {
	project, err := pc.projectService.ApproveStoryboard(c.Param("id"))
	if err != nil {
		pc.respondError(c, err, "Failed to approve storyboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Storyboard approved",
		"project": project,
	})
}

func (pc *ProjectController) DeleteProject(c *gin.Context) {
	if err := pc.projectService.DeleteProject(c.Param("id")); err != nil {
		logger.Errorf("Failed to delete project: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete project",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project deleted successfully",
	})
}

func (pc *ProjectController) loadProject(c *gin.Context) (*models.Project, bool) {
	project, err := pc.projectService.GetProject(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Project not found",
			})
		} else {
			logger.Errorf("Failed to get project: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get project",
			})
		}
		return nil, false
	}
	return project, true
}

// respondError maps service errors to HTTP statuses: not-found to 404,
// validation and workflow errors to 400/409, everything else to 500.
func (pc *ProjectController) respondError(c *gin.Context, err error, fallback string) {
	var vErr *videogen.ValidationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	case errors.Is(err, services.ErrProjectLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": vErr.Error(),
			"kind":  string(vErr.Kind),
		})
	default:
		logger.Errorf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
