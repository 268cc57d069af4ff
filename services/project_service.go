package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storyreel-server/config"
	"storyreel-server/models"
	"storyreel-server/pkg/cache"
	"storyreel-server/pkg/database"
	"storyreel-server/pkg/logger"
)

var ErrProjectLocked = errors.New("project storyboard can no longer be edited")

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService() *ProjectService {
	return &ProjectService{
		db: database.GetDB(),
	}
}

func (s *ProjectService) CreateProject(req *models.ProjectCreateRequest) (*models.Project, error) {
	cfg := config.AppConfig

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = cfg.Generation.DefaultAspectRatio
	}

	project := &models.Project{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		AspectRatio:   aspectRatio,
		TotalDuration: req.TotalDuration,
		Phase:         models.PhaseClarifying,
	}

	if err := s.db.Create(project).Error; err != nil {
		logger.Errorf("Failed to create project: %v", err)
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	logger.Infof("Project created: %s", project.ID)
	return project, nil
}

func (s *ProjectService) GetProject(id string) (*models.Project, error) {
	// Cache first
	var cached models.Project
	if err := cache.Cache.GetJSON(cache.ProjectCacheKey(id), &cached); err == nil {
		return &cached, nil
	}

	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	s.cacheProject(&project)
	return &project, nil
}

func (s *ProjectService) ListProjects(limit, offset int) ([]models.Project, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.Model(&models.Project{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (s *ProjectService) UpdateProject(id string, req *models.ProjectUpdateRequest) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if len(updates) == 0 {
		return &project, nil
	}

	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.invalidateProject(id)
	return &project, nil
}

// UpdateStoryboard replaces the storyboard. Allowed only before the
// project moves into generation; segments must satisfy the structural
// invariants. A total-duration mismatch is documented behavior, so it is
// logged rather than rejected.
func (s *ProjectService) UpdateStoryboard(id string, req *models.StoryboardUpdateRequest) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if project.GenerationStarted() {
		return nil, ErrProjectLocked
	}

	project.Storyboard = models.Storyboard(req.Segments)
	if req.TotalDuration > 0 {
		project.TotalDuration = req.TotalDuration
	}

	if err := project.ValidateStoryboard(config.AppConfig.Generation.LenientFields); err != nil {
		return nil, err
	}

	if sum, mismatch := project.TotalDurationMismatch(); mismatch {
		logger.Warnf("Project %s: total_duration %d does not match segment sum %d",
			id, project.TotalDuration, sum)
	}

	project.Phase = models.PhaseStoryboard
	if err := s.db.Model(&project).Updates(map[string]interface{}{
		"storyboard":     project.Storyboard,
		"total_duration": project.TotalDuration,
		"phase":          project.Phase,
		"updated_at":     time.Now(),
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update storyboard: %w", err)
	}

	s.invalidateProject(id)
	return &project, nil
}

// ApproveStoryboard freezes the storyboard and moves the project into the
// generating phase.
func (s *ProjectService) ApproveStoryboard(id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if project.GenerationStarted() {
		return nil, ErrProjectLocked
	}
	if len(project.Storyboard) == 0 {
		return nil, errors.New("project has no storyboard to approve")
	}

	project.StoryboardApproved = true
	project.Phase = models.PhaseGenerating
	if err := s.db.Model(&project).Updates(map[string]interface{}{
		"storyboard_approved": true,
		"phase":               models.PhaseGenerating,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to approve storyboard: %w", err)
	}

	s.invalidateProject(id)
	logger.Infof("Storyboard approved for project %s", id)
	return &project, nil
}

func (s *ProjectService) DeleteProject(id string) error {
	if err := s.db.Delete(&models.Project{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.invalidateProject(id)
	return nil
}

// SetPhase moves the project's workflow phase.
func (s *ProjectService) SetPhase(id, phase string) error {
	if err := s.db.Model(&models.Project{}).Where("id = ?", id).
		Update("phase", phase).Error; err != nil {
		return fmt.Errorf("failed to set project phase: %w", err)
	}
	s.invalidateProject(id)
	return nil
}

func (s *ProjectService) cacheProject(project *models.Project) {
	if err := cache.Cache.Set(cache.ProjectCacheKey(project.ID), project, 10*time.Minute); err != nil {
		logger.Warnf("Failed to cache project %s: %v", project.ID, err)
	}
}

func (s *ProjectService) invalidateProject(id string) {
	if err := cache.Cache.Delete(cache.ProjectCacheKey(id)); err != nil {
		logger.Debugf("Failed to invalidate project cache %s: %v", id, err)
	}
}
