package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storyreel-server/pkg/videogen"
)

// Project workflow phases.
const (
	PhaseClarifying = "clarifying"
	PhaseStoryboard = "storyboard"
	PhaseGenerating = "generating"
	PhaseSelection  = "selection"
	PhaseAssembling = "assembling"
	PhaseComplete   = "complete"
)

// Storyboard/duration constraints.
const (
	MinTotalDuration = 1
	MaxTotalDuration = 60
)

var segmentDurations = map[int]bool{4: true, 6: true, 8: true, 12: true}

// VideoSegment is one ordered cut of the final video. The generation
// input is stored in its tagged JSON form (provider discriminator inside)
// and parsed on use.
type VideoSegment struct {
	SceneDescription string            `json:"scene_description"`
	Duration         int               `json:"duration"`
	Transition       string            `json:"transition,omitempty"`
	GenerationInputs []json.RawMessage `json:"generation_inputs"`
	SelectedVideoURL string            `json:"selected_video_url,omitempty"`
}

// Storyboard is the ordered segment list, stored as a JSON column.
type Storyboard []VideoSegment

func (s Storyboard) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *Storyboard) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return errors.New("unsupported storyboard column type")
}

// Project is the root aggregate: a marketing-video request spanning
// multiple segments. It is immutable once generation starts, except for
// phase moves and final output fields.
type Project struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	Title       string `json:"title" gorm:"not null;size:200"`
	Description string `json:"description" gorm:"type:text"`

	// Input specifications
	AspectRatio   string `json:"aspect_ratio" gorm:"default:'16:9';size:10"`
	TotalDuration int    `json:"total_duration"`

	// Storyboard
	Storyboard         Storyboard `json:"storyboard" gorm:"type:json"`
	StoryboardApproved bool       `json:"storyboard_approved" gorm:"default:false"`

	// Workflow
	Phase string `json:"phase" gorm:"default:'clarifying';size:20"`

	// Final outputs (produced by the excluded assembly pipeline; stored only)
	FinalVideoURL string `json:"final_video_url,omitempty" gorm:"size:500"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty" gorm:"size:500"`
	BannerURL     string `json:"banner_url,omitempty" gorm:"size:500"`
	MarketingCopy string `json:"marketing_copy,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidateStoryboard checks the segment-level invariants: allowed
// durations, exactly one generation input per segment, and parseable
// tagged inputs. The total-duration match is documented, not enforced,
// so it is reported separately by TotalDurationMismatch.
func (p *Project) ValidateStoryboard(lenientFields bool) error {
	for i, seg := range p.Storyboard {
		if !segmentDurations[seg.Duration] {
			return fmt.Errorf("segment %d: duration %d not in {4,6,8,12}", i, seg.Duration)
		}
		if len(seg.GenerationInputs) != 1 {
			return fmt.Errorf("segment %d: expected exactly 1 generation input, got %d",
				i, len(seg.GenerationInputs))
		}
		input, err := videogen.ParseGenerationInput(seg.GenerationInputs[0], lenientFields)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if input.PromptText() == "" {
			return fmt.Errorf("segment %d: generation input has empty prompt", i)
		}
	}
	return nil
}

// TotalDurationMismatch reports whether the declared total duration
// disagrees with the sum of segment durations.
func (p *Project) TotalDurationMismatch() (int, bool) {
	sum := 0
	for _, seg := range p.Storyboard {
		sum += seg.Duration
	}
	return sum, len(p.Storyboard) > 0 && sum != p.TotalDuration
}

// GenerationStarted reports whether the project has moved past the
// editable storyboard phases.
func (p *Project) GenerationStarted() bool {
	switch p.Phase {
	case PhaseClarifying, PhaseStoryboard:
		return false
	}
	return true
}

func (Project) TableName() string {
	return "projects"
}

// ProjectCreateRequest is the creation payload.
type ProjectCreateRequest struct {
	Title         string `json:"title" binding:"required,max=200"`
	Description   string `json:"description" binding:"omitempty,max=2000"`
	AspectRatio   string `json:"aspect_ratio" binding:"omitempty,oneof=16:9 9:16"`
	TotalDuration int    `json:"total_duration" binding:"omitempty,min=1,max=60"`
}

// ProjectUpdateRequest updates title/description before generation.
type ProjectUpdateRequest struct {
	Title       string `json:"title" binding:"omitempty,max=200"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

// StoryboardUpdateRequest replaces the storyboard before approval.
type StoryboardUpdateRequest struct {
	TotalDuration int            `json:"total_duration" binding:"omitempty,min=1,max=60"`
	Segments      []VideoSegment `json:"segments" binding:"required,min=1"`
}
