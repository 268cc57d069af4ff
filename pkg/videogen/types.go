package videogen

import (
	"encoding/json"
	"fmt"
)

// Provider names
const (
	ProviderSora = "sora"
	ProviderVeo  = "veo"
)

// Canonical per-video statuses. FoldResponse never returns anything else.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Aggregate (segment / overall) statuses.
const (
	AggregatePending    = "pending"
	AggregateInProgress = "in_progress"
	AggregateCompleted  = "completed"
	AggregateFailed     = "failed"
)

// Default model identifiers used when the input doesn't name one.
const (
	DefaultSoraModel = "sora-2"
	DefaultVeoModel  = "veo-3.1-generate-preview"
)

// ImageInput is a reference image, supplied either as URL or inline
// base64 bytes with a MIME type. Exactly one supply mode must be set.
type ImageInput struct {
	URL      string `json:"url,omitempty"`
	Base64   string `json:"base64,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// GenerationInput is the tagged union of provider-specific request
// variants, discriminated by the provider field.
type GenerationInput interface {
	ProviderName() string
	PromptText() string
}

// SoraInput is the video generation input for the Sora API.
type SoraInput struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model,omitempty"`
	Prompt     string      `json:"prompt"`
	InputImage *ImageInput `json:"input_image,omitempty"`
}

func (s *SoraInput) ProviderName() string { return ProviderSora }
func (s *SoraInput) PromptText() string   { return s.Prompt }

// VeoInput is the video generation input for the Veo API.
type VeoInput struct {
	Provider        string       `json:"provider"`
	Model           string       `json:"model,omitempty"`
	Prompt          string       `json:"prompt"`
	InputImage      *ImageInput  `json:"input_image,omitempty"`
	NegativePrompt  string       `json:"negative_prompt,omitempty"`
	LastFrame       *ImageInput  `json:"last_frame,omitempty"`
	ReferenceImages []ImageInput `json:"reference_images,omitempty"`
	NumOutputs      int          `json:"num_outputs,omitempty"`
	Seed            *int64       `json:"seed,omitempty"`
}

func (v *VeoInput) ProviderName() string { return ProviderVeo }
func (v *VeoInput) PromptText() string   { return v.Prompt }

// GenerationConfig carries the segment-level generation settings shared
// by all providers. It is passed explicitly into Validate/Project so
// defaults can vary per call.
type GenerationConfig struct {
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`

	// Veo-only knobs, carried in config because they are project-wide
	// policy rather than per-input content.
	GenerateAudio    bool   `json:"generate_audio"`
	PersonGeneration string `json:"person_generation"`

	// LenientFields makes ParseGenerationInput silently drop fields that
	// belong to the other provider instead of rejecting the request.
	LenientFields bool `json:"-"`
}

// DefaultConfig returns the documented defaults: 8s, 16:9, 720p, Veo
// audio on, person generation allowed.
func DefaultConfig() GenerationConfig {
	return GenerationConfig{
		Duration:         8,
		AspectRatio:      "16:9",
		Resolution:       "720p",
		GenerateAudio:    true,
		PersonGeneration: "allow_all",
	}
}

// GeneratedVideo is the unified result record for one provider output.
type GeneratedVideo struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CreatedAt    string `json:"created_at"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	HasAudio     bool   `json:"has_audio"`
	Selected     bool   `json:"selected"`
	Error        string `json:"error,omitempty"`
}

// GenerationResult binds one segment input to one produced video.
// Multiple results may share the same InputIndex (parallel candidates).
type GenerationResult struct {
	InputIndex int            `json:"input_index"`
	Provider   string         `json:"provider"`
	Video      GeneratedVideo `json:"video"`
}

// SegmentGeneration holds the generation results for one storyboard segment.
type SegmentGeneration struct {
	SegmentIndex      int                `json:"segment_index"`
	SceneDescription  string             `json:"scene_description,omitempty"`
	Status            string             `json:"status"`
	GenerationResults []GenerationResult `json:"generation_results"`
}

// VideoGenerations aggregates all results for a project. It references
// the project by ID so the two documents can evolve independently.
type VideoGenerations struct {
	ProjectID string              `json:"project_id"`
	CreatedAt string              `json:"created_at"`
	Status    string              `json:"status"`
	Segments  []SegmentGeneration `json:"segments"`
}

// rawInput is the superset of both variants, used to decode the tagged
// union and detect fields that belong to the other provider.
type rawInput struct {
	Provider        string       `json:"provider"`
	Model           string       `json:"model,omitempty"`
	Prompt          string       `json:"prompt"`
	InputImage      *ImageInput  `json:"input_image,omitempty"`
	NegativePrompt  string       `json:"negative_prompt,omitempty"`
	LastFrame       *ImageInput  `json:"last_frame,omitempty"`
	ReferenceImages []ImageInput `json:"reference_images,omitempty"`
	NumOutputs      int          `json:"num_outputs,omitempty"`
	Seed            *int64       `json:"seed,omitempty"`
}

// ParseGenerationInput decodes a tagged generation input. In strict mode
// (the default) a Veo-only field on a Sora request is rejected with a
// CrossProviderFieldError; with lenient=true such fields are dropped.
func ParseGenerationInput(data []byte, lenient bool) (GenerationInput, error) {
	var raw rawInput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newValidationError(ErrMalformedInput, "generation_input", err.Error())
	}

	switch raw.Provider {
	case ProviderSora:
		if !lenient {
			if field := firstVeoOnlyField(&raw); field != "" {
				return nil, newValidationError(ErrCrossProviderField, field, raw.Provider)
			}
		}
		return &SoraInput{
			Provider:   ProviderSora,
			Model:      raw.Model,
			Prompt:     raw.Prompt,
			InputImage: raw.InputImage,
		}, nil
	case ProviderVeo:
		return &VeoInput{
			Provider:        ProviderVeo,
			Model:           raw.Model,
			Prompt:          raw.Prompt,
			InputImage:      raw.InputImage,
			NegativePrompt:  raw.NegativePrompt,
			LastFrame:       raw.LastFrame,
			ReferenceImages: raw.ReferenceImages,
			NumOutputs:      raw.NumOutputs,
			Seed:            raw.Seed,
		}, nil
	default:
		return nil, &ProviderNotFoundError{Provider: raw.Provider}
	}
}

func firstVeoOnlyField(raw *rawInput) string {
	switch {
	case raw.NegativePrompt != "":
		return "negative_prompt"
	case raw.LastFrame != nil:
		return "last_frame"
	case len(raw.ReferenceImages) > 0:
		return "reference_images"
	case raw.NumOutputs != 0:
		return "num_outputs"
	case raw.Seed != nil:
		return "seed"
	}
	return ""
}

// MarshalInput serializes a generation input back to its tagged JSON form.
func MarshalInput(input GenerationInput) ([]byte, error) {
	switch in := input.(type) {
	case *SoraInput, *VeoInput:
		return json.Marshal(in)
	default:
		return nil, fmt.Errorf("unsupported generation input type %T", input)
	}
}
