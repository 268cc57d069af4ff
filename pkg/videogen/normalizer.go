package videogen

import (
	"strings"
	"unicode/utf8"
)

// Provider-allowed duration sets. A duration outside the set is rejected,
// never snapped to a neighbour.
var (
	soraDurations = map[int]bool{4: true, 8: true, 12: true}
	veoDurations  = map[int]bool{4: true, 6: true, 8: true}
)

var validMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var soraModels = map[string]bool{
	"sora-2":     true,
	"sora-2-pro": true,
}

var veoModels = map[string]bool{
	"veo-3.1-generate-preview":      true,
	"veo-3.1-generate-001":          true,
	"veo-3.1-fast-generate-001":     true,
	"veo-3.1-fast-generate-preview": true,
}

// sizeMap projects (aspect_ratio, resolution) onto Sora's native size string.
var sizeMap = map[[2]string]string{
	{"16:9", "720p"}:  "1280x720",
	{"9:16", "720p"}:  "720x1280",
	{"16:9", "1080p"}: "1792x1024",
	{"9:16", "1080p"}: "1024x1792",
}

const (
	maxPromptLength    = 4096
	maxReferenceImages = 3
	maxNumOutputs      = 4
	maxSeed            = int64(1)<<32 - 1
)

// Validate runs the structural checks for a unified request against the
// target provider's capability constraints. It is pure and performs no
// network calls; calling it twice on the same input yields the same result.
func Validate(input GenerationInput, cfg GenerationConfig) error {
	if err := validatePrompt(input.PromptText()); err != nil {
		return err
	}

	switch in := input.(type) {
	case *SoraInput:
		return validateSora(in, cfg)
	case *VeoInput:
		return validateVeo(in, cfg)
	default:
		return &ProviderNotFoundError{Provider: input.ProviderName()}
	}
}

func validatePrompt(prompt string) error {
	if prompt == "" {
		return newValidationError(ErrMalformedInput, "prompt", "empty")
	}
	// The limit counts characters, not bytes.
	if n := utf8.RuneCountInString(prompt); n > maxPromptLength {
		return newValidationError(ErrOutOfRange, "prompt", n)
	}
	return nil
}

func validateSora(in *SoraInput, cfg GenerationConfig) error {
	if !soraDurations[cfg.Duration] {
		return newValidationError(ErrUnsupportedDuration, "duration", cfg.Duration)
	}
	if in.Model != "" && !soraModels[in.Model] {
		return newValidationError(ErrMalformedInput, "model", in.Model)
	}
	// 4k is a Veo preview feature; Sora sizes only exist for 720p/1080p.
	if _, ok := sizeMap[[2]string{cfg.AspectRatio, cfg.Resolution}]; !ok {
		return newValidationError(ErrUnsupportedResolution, "resolution",
			cfg.AspectRatio+"/"+cfg.Resolution)
	}
	if err := validateImage("input_image", in.InputImage); err != nil {
		return err
	}
	return nil
}

func validateVeo(in *VeoInput, cfg GenerationConfig) error {
	if !veoDurations[cfg.Duration] {
		return newValidationError(ErrUnsupportedDuration, "duration", cfg.Duration)
	}
	if in.Model != "" && !veoModels[in.Model] {
		return newValidationError(ErrMalformedInput, "model", in.Model)
	}
	if err := validateVeoResolution(in, cfg); err != nil {
		return err
	}
	if err := validateImage("input_image", in.InputImage); err != nil {
		return err
	}
	if err := validateImage("last_frame", in.LastFrame); err != nil {
		return err
	}
	if len(in.ReferenceImages) > maxReferenceImages {
		return newValidationError(ErrOutOfRange, "reference_images", len(in.ReferenceImages))
	}
	for i := range in.ReferenceImages {
		if err := validateImage("reference_images", &in.ReferenceImages[i]); err != nil {
			return err
		}
	}
	if in.NumOutputs != 0 && (in.NumOutputs < 1 || in.NumOutputs > maxNumOutputs) {
		return newValidationError(ErrOutOfRange, "num_outputs", in.NumOutputs)
	}
	if in.Seed != nil && (*in.Seed < 0 || *in.Seed > maxSeed) {
		return newValidationError(ErrOutOfRange, "seed", *in.Seed)
	}
	return nil
}

func validateVeoResolution(in *VeoInput, cfg GenerationConfig) error {
	switch cfg.Resolution {
	case "720p", "1080p":
		return nil
	case "4k":
		// 4k output only exists on the preview models.
		model := in.Model
		if model == "" {
			model = DefaultVeoModel
		}
		if strings.HasSuffix(model, "-preview") {
			return nil
		}
		return newValidationError(ErrUnsupportedResolution, "resolution", cfg.Resolution)
	default:
		return newValidationError(ErrUnsupportedResolution, "resolution", cfg.Resolution)
	}
}

// validateImage enforces the supply-mode rule: exactly one of URL or
// base64+mime_type, never both and never neither.
func validateImage(field string, img *ImageInput) error {
	if img == nil {
		return nil
	}
	hasURL := img.URL != ""
	hasBase64 := img.Base64 != ""
	if hasURL == hasBase64 {
		return newValidationError(ErrMalformedInput, field, img)
	}
	if hasBase64 {
		if !validMimeTypes[img.MimeType] {
			return newValidationError(ErrMalformedInput, field+".mime_type", img.MimeType)
		}
	} else if img.MimeType != "" {
		return newValidationError(ErrMalformedInput, field+".mime_type", img.MimeType)
	}
	return nil
}

// SoraPayload is the literal request body for POST /v1/videos.
type SoraPayload struct {
	Model          string          `json:"model"`
	Prompt         string          `json:"prompt"`
	Seconds        int             `json:"seconds"`
	Size           string          `json:"size"`
	InputReference *SoraImageInput `json:"input_reference,omitempty"`
}

// SoraImageInput is Sora's native image reference shape.
type SoraImageInput struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// VeoPayload is the literal request body for the generateVideos-style call.
type VeoPayload struct {
	Model      string        `json:"model"`
	Prompt     string        `json:"prompt"`
	Image      *VeoImage     `json:"image,omitempty"`
	Parameters VeoParameters `json:"parameters"`
}

// VeoImage is Veo's native image shape (GCS URI or raw bytes).
type VeoImage struct {
	GCSURI     string `json:"gcsUri,omitempty"`
	ImageBytes string `json:"bytesBase64Encoded,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
}

// VeoParameters mirrors GenerateVideosConfig.
type VeoParameters struct {
	AspectRatio      string     `json:"aspectRatio"`
	DurationSeconds  int        `json:"durationSeconds"`
	Resolution       string     `json:"resolution,omitempty"`
	NegativePrompt   string     `json:"negativePrompt,omitempty"`
	NumberOfVideos   int        `json:"numberOfVideos"`
	Seed             *int64     `json:"seed,omitempty"`
	GenerateAudio    bool       `json:"generateAudio"`
	PersonGeneration string     `json:"personGeneration,omitempty"`
	LastFrame        *VeoImage  `json:"lastFrame,omitempty"`
	ReferenceImages  []VeoImage `json:"referenceImages,omitempty"`
}

// Project maps a validated unified request onto the provider's native
// payload. It is a pure field rename/reshape: deterministic and total
// once Validate has passed.
func Project(input GenerationInput, cfg GenerationConfig) (interface{}, error) {
	if err := Validate(input, cfg); err != nil {
		return nil, err
	}
	switch in := input.(type) {
	case *SoraInput:
		return ProjectSora(in, cfg)
	case *VeoInput:
		return ProjectVeo(in, cfg)
	default:
		return nil, &ProviderNotFoundError{Provider: input.ProviderName()}
	}
}

// ProjectSora builds the Sora request body from a unified input.
func ProjectSora(in *SoraInput, cfg GenerationConfig) (*SoraPayload, error) {
	size, ok := sizeMap[[2]string{cfg.AspectRatio, cfg.Resolution}]
	if !ok {
		return nil, newValidationError(ErrUnsupportedResolution, "resolution",
			cfg.AspectRatio+"/"+cfg.Resolution)
	}

	model := in.Model
	if model == "" {
		model = DefaultSoraModel
	}

	payload := &SoraPayload{
		Model:   model,
		Prompt:  in.Prompt,
		Seconds: cfg.Duration,
		Size:    size,
	}
	if in.InputImage != nil {
		payload.InputReference = soraImage(in.InputImage)
	}
	return payload, nil
}

func soraImage(img *ImageInput) *SoraImageInput {
	if img.URL != "" {
		return &SoraImageInput{Type: "url", URL: img.URL}
	}
	return &SoraImageInput{Type: "base64", Base64: img.Base64, MediaType: img.MimeType}
}

// ProjectVeo builds the Veo request body from a unified input.
func ProjectVeo(in *VeoInput, cfg GenerationConfig) (*VeoPayload, error) {
	model := in.Model
	if model == "" {
		model = DefaultVeoModel
	}

	numOutputs := in.NumOutputs
	if numOutputs == 0 {
		numOutputs = 1
	}

	params := VeoParameters{
		AspectRatio:      cfg.AspectRatio,
		DurationSeconds:  cfg.Duration,
		NegativePrompt:   in.NegativePrompt,
		NumberOfVideos:   numOutputs,
		Seed:             in.Seed,
		GenerateAudio:    cfg.GenerateAudio,
		PersonGeneration: cfg.PersonGeneration,
	}
	if cfg.Resolution != "720p" {
		params.Resolution = cfg.Resolution
	}
	if in.LastFrame != nil {
		params.LastFrame = veoImage(in.LastFrame)
	}
	for i := range in.ReferenceImages {
		params.ReferenceImages = append(params.ReferenceImages, *veoImage(&in.ReferenceImages[i]))
	}

	payload := &VeoPayload{
		Model:      model,
		Prompt:     in.Prompt,
		Parameters: params,
	}
	if in.InputImage != nil {
		payload.Image = veoImage(in.InputImage)
	}
	return payload, nil
}

func veoImage(img *ImageInput) *VeoImage {
	if img.URL != "" {
		return &VeoImage{GCSURI: img.URL}
	}
	return &VeoImage{ImageBytes: img.Base64, MimeType: img.MimeType}
}

// ValidateSoraPayload checks a projected payload against Sora's native
// constraints. Projection of any valid input must pass this.
func ValidateSoraPayload(p *SoraPayload) error {
	if err := validatePrompt(p.Prompt); err != nil {
		return err
	}
	if !soraModels[p.Model] {
		return newValidationError(ErrMalformedInput, "model", p.Model)
	}
	if !soraDurations[p.Seconds] {
		return newValidationError(ErrUnsupportedDuration, "seconds", p.Seconds)
	}
	known := false
	for _, size := range sizeMap {
		if size == p.Size {
			known = true
			break
		}
	}
	if !known {
		return newValidationError(ErrUnsupportedResolution, "size", p.Size)
	}
	return nil
}

// ValidateVeoPayload checks a projected payload against Veo's native
// constraints.
func ValidateVeoPayload(p *VeoPayload) error {
	if err := validatePrompt(p.Prompt); err != nil {
		return err
	}
	if !veoModels[p.Model] {
		return newValidationError(ErrMalformedInput, "model", p.Model)
	}
	if !veoDurations[p.Parameters.DurationSeconds] {
		return newValidationError(ErrUnsupportedDuration, "durationSeconds", p.Parameters.DurationSeconds)
	}
	if p.Parameters.NumberOfVideos < 1 || p.Parameters.NumberOfVideos > maxNumOutputs {
		return newValidationError(ErrOutOfRange, "numberOfVideos", p.Parameters.NumberOfVideos)
	}
	if len(p.Parameters.ReferenceImages) > maxReferenceImages {
		return newValidationError(ErrOutOfRange, "referenceImages", len(p.Parameters.ReferenceImages))
	}
	return nil
}
