package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storyreel-server/config"
	"storyreel-server/models"
	"storyreel-server/pkg/cache"
	"storyreel-server/pkg/database"
	"storyreel-server/pkg/logger"
	"storyreel-server/pkg/queue"
	"storyreel-server/pkg/videogen"
)

var ErrStoryboardNotApproved = errors.New("storyboard must be approved before generation")

type GenerationService struct {
	db     *gorm.DB
	videos *videogen.Service
	genCfg config.GenerationConfig

	// publishPoll enqueues a status refresh for a record; tests inject a
	// fake here.
	publishPoll func(recordID string) error

	// Serializes read-modify-write cycles on generation documents, since
	// multiple queue workers can touch the same record.
	mu sync.Mutex
}

func NewGenerationService() *GenerationService {
	cfg := config.AppConfig
	return &GenerationService{
		db: database.GetDB(),
		videos: videogen.NewService(videogen.Credentials{
			SoraAPIKey:  cfg.Providers.SoraAPIKey,
			SoraBaseURL: cfg.Providers.SoraBaseURL,
			VeoAPIKey:   cfg.Providers.VeoAPIKey,
			VeoBaseURL:  cfg.Providers.VeoBaseURL,
		}),
		genCfg:      cfg.Generation,
		publishPoll: queue.PublishPollTask,
	}
}

// maybeEnqueuePoll keeps a record polled while the given result is still
// active. Terminal results need no follow-up.
func (s *GenerationService) maybeEnqueuePoll(recordID string, video videogen.GeneratedVideo) {
	if videogen.IsTerminal(video.Status) {
		return
	}
	if err := s.publishPoll(recordID); err != nil {
		logger.Warnf("Failed to enqueue poll task for record %s: %v", recordID, err)
	}
}

// StartGeneration creates a fresh generation record for an approved
// project, with every segment pending, and enqueues one task per
// (input, candidate) pair. Prior records are never mutated.
func (s *GenerationService) StartGeneration(projectID string, candidates int) (*models.VideoGenerationRecord, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, err
	}

	if !project.StoryboardApproved {
		return nil, ErrStoryboardNotApproved
	}
	if err := project.ValidateStoryboard(s.genCfg.LenientFields); err != nil {
		return nil, err
	}

	if candidates < 1 {
		candidates = 1
	}
	if candidates > s.genCfg.MaxCandidates {
		candidates = s.genCfg.MaxCandidates
	}

	doc := videogen.VideoGenerations{
		ProjectID: projectID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Status:    videogen.AggregatePending,
	}
	for i, seg := range project.Storyboard {
		doc.Segments = append(doc.Segments, videogen.SegmentGeneration{
			SegmentIndex:      i,
			SceneDescription:  seg.SceneDescription,
			Status:            videogen.AggregatePending,
			GenerationResults: []videogen.GenerationResult{},
		})
	}

	record := &models.VideoGenerationRecord{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    videogen.AggregatePending,
		Document:  models.GenerationsDocument(doc),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}
	s.cacheRecord(record)

	for segIdx, seg := range project.Storyboard {
		for inputIdx := range seg.GenerationInputs {
			for c := 0; c < candidates; c++ {
				if err := queue.PublishGenerationTask(record.ID, projectID, segIdx, inputIdx, c); err != nil {
					logger.Errorf("Failed to enqueue generation for project %s segment %d: %v",
						projectID, segIdx, err)
				}
			}
		}
	}

	if err := s.db.Model(&models.Project{}).Where("id = ?", projectID).
		Update("phase", models.PhaseGenerating).Error; err != nil {
		logger.Warnf("Failed to move project %s to generating: %v", projectID, err)
	}

	logger.Infof("Generation started for project %s: record %s, %d segments, %d candidates per input",
		projectID, record.ID, len(project.Storyboard), candidates)
	return record, nil
}

// HandleGenerationTask is the queue worker for one candidate generation.
// Normalization failures are terminal for the result (no retry); only
// infrastructure errors propagate to trigger queue-level retry.
func (s *GenerationService) HandleGenerationTask(task *queue.Task) error {
	recordID, _ := task.Payload["record_id"].(string)
	projectID, _ := task.Payload["project_id"].(string)
	segIdxF, okSeg := task.Payload["segment_index"].(float64) // JSON numbers are float64
	inputIdxF, okInput := task.Payload["input_index"].(float64)
	if recordID == "" || projectID == "" || !okSeg || !okInput {
		return fmt.Errorf("invalid generation task payload: %v", task.Payload)
	}
	segIdx := int(segIdxF)
	inputIdx := int(inputIdxF)

	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if segIdx < 0 || segIdx >= len(project.Storyboard) {
		return fmt.Errorf("segment index %d out of range for project %s", segIdx, projectID)
	}
	segment := project.Storyboard[segIdx]
	if inputIdx < 0 || inputIdx >= len(segment.GenerationInputs) {
		return fmt.Errorf("input index %d out of range for segment %d", inputIdx, segIdx)
	}

	genCfg := s.segmentConfig(&project, &segment)

	var video videogen.GeneratedVideo
	var provider string

	input, err := videogen.ParseGenerationInput(segment.GenerationInputs[inputIdx], s.genCfg.LenientFields)
	if err != nil {
		// Validation failure: record it as a failed result, don't retry.
		video = failedResult(err)
		provider = providerFromRaw(segment.GenerationInputs[inputIdx])
	} else {
		provider = input.ProviderName()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		video, err = s.videos.Generate(ctx, input, genCfg)
		if err != nil {
			var vErr *videogen.ValidationError
			if errors.As(err, &vErr) {
				video = failedResult(err)
			} else {
				return fmt.Errorf("generation call failed for project %s segment %d: %w",
					projectID, segIdx, err)
			}
		}
	}

	result := videogen.GenerationResult{
		InputIndex: inputIdx,
		Provider:   provider,
		Video:      video,
	}
	if err := s.appendResult(recordID, segIdx, result); err != nil {
		return err
	}
	s.maybeEnqueuePoll(recordID, video)
	return nil
}

// HandlePollTask is the queue worker that refreshes non-terminal results.
// It re-enqueues itself until every result is terminal or the poll
// timeout elapses, at which point stuck results are failed.
func (s *GenerationService) HandlePollTask(task *queue.Task) error {
	recordID, ok := task.Payload["record_id"].(string)
	if !ok || recordID == "" {
		return fmt.Errorf("invalid poll task payload: %v", task.Payload)
	}

	var record models.VideoGenerationRecord
	if err := s.db.First(&record, "id = ?", recordID).Error; err != nil {
		return fmt.Errorf("failed to load generation record %s: %w", recordID, err)
	}

	if err := s.refreshRecord(&record); err != nil {
		return err
	}
	if !s.hasActiveResults(&record) {
		return nil
	}

	if time.Since(record.CreatedAt) > s.genCfg.PollTimeout {
		return s.failStuckResults(&record)
	}

	time.Sleep(s.genCfg.PollInterval)
	return s.publishPoll(recordID)
}

func (s *GenerationService) hasActiveResults(record *models.VideoGenerationRecord) bool {
	for _, seg := range record.Document.Segments {
		for _, res := range seg.GenerationResults {
			if !videogen.IsTerminal(res.Video.Status) {
				return true
			}
		}
	}
	return false
}

// failStuckResults fails every result still active after the poll timeout.
func (s *GenerationService) failStuckResults(record *models.VideoGenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh models.VideoGenerationRecord
	if err := s.db.First(&fresh, "id = ?", record.ID).Error; err != nil {
		return err
	}

	doc := videogen.VideoGenerations(fresh.Document)
	for i := range doc.Segments {
		for j := range doc.Segments[i].GenerationResults {
			res := &doc.Segments[i].GenerationResults[j]
			if videogen.IsTerminal(res.Video.Status) {
				continue
			}
			res.Video.Status = videogen.StatusFailed
			res.Video.Error = fmt.Sprintf("generation timed out after %s", s.genCfg.PollTimeout)
			logger.Warnf("Timing out %s video %s on record %s", res.Provider, res.Video.ID, fresh.ID)
		}
	}
	doc.Recalculate()
	fresh.Document = models.GenerationsDocument(doc)
	return s.persistRecord(&fresh)
}

// GetGenerations returns the latest generation record for a project,
// cache first.
func (s *GenerationService) GetGenerations(projectID string) (*models.VideoGenerationRecord, error) {
	var cached models.VideoGenerationRecord
	if err := cache.Cache.GetJSON(cache.GenerationsCacheKey(projectID), &cached); err == nil {
		return &cached, nil
	}
	return s.latestRecord(projectID)
}

// RefreshGenerations polls providers for every non-terminal result of the
// latest record and returns the updated record.
func (s *GenerationService) RefreshGenerations(projectID string) (*models.VideoGenerationRecord, error) {
	record, err := s.latestRecord(projectID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// SelectVideo marks one completed video as the segment's pick, mirrors
// the URL onto the project storyboard, and moves the project into the
// selection phase.
func (s *GenerationService) SelectVideo(projectID string, req *models.SelectVideoRequest) (*models.VideoGenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.latestRecord(projectID)
	if err != nil {
		return nil, err
	}

	doc := videogen.VideoGenerations(record.Document)
	selected, err := doc.SelectVideo(req.SegmentIndex, req.VideoID)
	if err != nil {
		return nil, err
	}
	record.Document = models.GenerationsDocument(doc)
	if err := s.persistRecord(record); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, err
	}
	if req.SegmentIndex < len(project.Storyboard) {
		project.Storyboard[req.SegmentIndex].SelectedVideoURL = selected.VideoURL
		updates := map[string]interface{}{"storyboard": project.Storyboard}
		if project.Phase == models.PhaseGenerating {
			updates["phase"] = models.PhaseSelection
		}
		if err := s.db.Model(&project).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to record selection on project: %w", err)
		}
		if err := cache.Cache.Delete(cache.ProjectCacheKey(projectID)); err != nil {
			logger.Debugf("Failed to invalidate project cache %s: %v", projectID, err)
		}
	}

	return record, nil
}

// Remix starts a prompt-revised Sora generation from a completed video
// and appends the new result to the same segment.
func (s *GenerationService) Remix(projectID string, req *models.RemixRequest) (*models.VideoGenerationRecord, error) {
	record, err := s.latestRecord(projectID)
	if err != nil {
		return nil, err
	}

	doc := videogen.VideoGenerations(record.Document)
	source := doc.FindResult(req.VideoID)
	if source == nil {
		return nil, fmt.Errorf("video %s not found in latest generation record", req.VideoID)
	}
	if source.Provider != videogen.ProviderSora {
		return nil, fmt.Errorf("remix is only supported for sora videos (got %s)", source.Provider)
	}
	if source.Video.Status != videogen.StatusCompleted {
		return nil, fmt.Errorf("video %s is not completed (status: %s)", req.VideoID, source.Video.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	video, err := s.videos.Remix(ctx, req.VideoID, req.Prompt)
	if err != nil {
		return nil, err
	}

	segIdx := segmentIndexOf(&doc, req.VideoID)
	result := videogen.GenerationResult{
		InputIndex: source.InputIndex,
		Provider:   videogen.ProviderSora,
		Video:      video,
	}
	if err := s.appendResult(record.ID, segIdx, result); err != nil {
		return nil, err
	}
	s.maybeEnqueuePoll(record.ID, video)
	return s.latestRecord(projectID)
}

// segmentConfig builds the per-segment generation config from the
// project's aspect ratio, the segment's duration, and global defaults.
func (s *GenerationService) segmentConfig(project *models.Project, segment *models.VideoSegment) videogen.GenerationConfig {
	cfg := videogen.DefaultConfig()
	cfg.Resolution = s.genCfg.DefaultResolution
	cfg.LenientFields = s.genCfg.LenientFields

	if project.AspectRatio == "16:9" || project.AspectRatio == "9:16" {
		cfg.AspectRatio = project.AspectRatio
	} else {
		cfg.AspectRatio = s.genCfg.DefaultAspectRatio
	}

	if segment.Duration > 0 {
		cfg.Duration = segment.Duration
	} else {
		cfg.Duration = s.genCfg.DefaultDuration
	}
	return cfg
}

func (s *GenerationService) appendResult(recordID string, segmentIndex int, result videogen.GenerationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record models.VideoGenerationRecord
	if err := s.db.First(&record, "id = ?", recordID).Error; err != nil {
		return fmt.Errorf("failed to load generation record %s: %w", recordID, err)
	}

	doc := videogen.VideoGenerations(record.Document)
	if err := doc.AppendResult(segmentIndex, result); err != nil {
		return err
	}
	record.Document = models.GenerationsDocument(doc)
	return s.persistRecord(&record)
}

// refreshRecord polls the provider for each non-terminal result and folds
// the fresh statuses into the document, enforcing the state machine.
func (s *GenerationService) refreshRecord(record *models.VideoGenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := videogen.VideoGenerations(record.Document)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	changed := false
	for i := range doc.Segments {
		for j := range doc.Segments[i].GenerationResults {
			res := &doc.Segments[i].GenerationResults[j]
			if videogen.IsTerminal(res.Video.Status) || res.Video.ID == "" {
				continue
			}

			update, err := s.videos.GetStatus(ctx, res.Provider, res.Video.ID)
			if err != nil {
				logger.Warnf("Failed to poll %s video %s: %v", res.Provider, res.Video.ID, err)
				continue
			}
			if err := videogen.ApplyUpdate(&res.Video, update); err != nil {
				logger.Warnf("Rejected status update for video %s: %v", res.Video.ID, err)
				continue
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}

	doc.Recalculate()
	record.Document = models.GenerationsDocument(doc)
	return s.persistRecord(record)
}

func (s *GenerationService) latestRecord(projectID string) (*models.VideoGenerationRecord, error) {
	var record models.VideoGenerationRecord
	err := s.db.Where("project_id = ?", projectID).
		Order("created_at DESC").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *GenerationService) persistRecord(record *models.VideoGenerationRecord) error {
	record.Status = record.Document.Status
	if err := s.db.Model(record).Updates(map[string]interface{}{
		"status":   record.Status,
		"document": record.Document,
	}).Error; err != nil {
		return fmt.Errorf("failed to persist generation record %s: %w", record.ID, err)
	}
	s.cacheRecord(record)
	return nil
}

func (s *GenerationService) cacheRecord(record *models.VideoGenerationRecord) {
	if err := cache.Cache.Set(cache.GenerationsCacheKey(record.ProjectID), record, 5*time.Minute); err != nil {
		logger.Warnf("Failed to cache generation record %s: %v", record.ID, err)
	}
}

func failedResult(err error) videogen.GeneratedVideo {
	return videogen.GeneratedVideo{
		Status:    videogen.StatusFailed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Error:     err.Error(),
	}
}

func providerFromRaw(raw []byte) string {
	input, err := videogen.ParseGenerationInput(raw, true)
	if err != nil {
		return ""
	}
	return input.ProviderName()
}

func segmentIndexOf(doc *videogen.VideoGenerations, videoID string) int {
	for i := range doc.Segments {
		for j := range doc.Segments[i].GenerationResults {
			if doc.Segments[i].GenerationResults[j].Video.ID == videoID {
				return i
			}
		}
	}
	return 0
}
