package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"storyreel-server/pkg/videogen"
)

// GenerationsDocument wraps the unified result document for storage as a
// JSON column.
type GenerationsDocument videogen.VideoGenerations

func (d GenerationsDocument) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *GenerationsDocument) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return errors.New("unsupported generations column type")
}

// VideoGenerationRecord persists one generation attempt for a project.
// It references the project by id rather than embedding it, so a project
// can be regenerated without mutating prior results: each attempt is a
// fresh record.
type VideoGenerationRecord struct {
	ID        string              `json:"id" gorm:"primaryKey;size:64"`
	ProjectID string              `json:"project_id" gorm:"index;not null;size:64"`
	Status    string              `json:"status" gorm:"default:'pending';size:20"`
	Document  GenerationsDocument `json:"document" gorm:"type:json"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (VideoGenerationRecord) TableName() string {
	return "video_generations"
}

// StartGenerationRequest kicks off generation for an approved storyboard.
type StartGenerationRequest struct {
	// Candidates is the number of parallel videos requested per
	// generation input (results sharing an input_index).
	Candidates int `json:"candidates" binding:"omitempty,min=1,max=4"`
}

// SelectVideoRequest marks one generated video as the segment's pick.
type SelectVideoRequest struct {
	SegmentIndex int    `json:"segment_index" binding:"min=0"`
	VideoID      string `json:"video_id" binding:"required"`
}

// RemixRequest starts a prompt-revised generation from a completed video.
type RemixRequest struct {
	VideoID string `json:"video_id" binding:"required"`
	Prompt  string `json:"prompt" binding:"required,max=4096"`
}
