package videogen

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func errorKind(err error) ErrorKind {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	return ""
}

func TestValidateDurations(t *testing.T) {
	tests := []struct {
		name     string
		input    GenerationInput
		duration int
		wantKind ErrorKind
	}{
		{"sora 4s ok", &SoraInput{Prompt: "a cat"}, 4, ""},
		{"sora 8s ok", &SoraInput{Prompt: "a cat"}, 8, ""},
		{"sora 12s ok", &SoraInput{Prompt: "a cat"}, 12, ""},
		{"sora 6s rejected", &SoraInput{Prompt: "a cat"}, 6, ErrUnsupportedDuration},
		{"sora 10s rejected", &SoraInput{Prompt: "a cat"}, 10, ErrUnsupportedDuration},
		{"veo 4s ok", &VeoInput{Prompt: "a cat"}, 4, ""},
		{"veo 6s ok", &VeoInput{Prompt: "a cat"}, 6, ""},
		{"veo 8s ok", &VeoInput{Prompt: "a cat"}, 8, ""},
		{"veo 12s rejected", &VeoInput{Prompt: "a cat"}, 12, ErrUnsupportedDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Duration = tt.duration
			err := Validate(tt.input, cfg)
			if got := errorKind(err); got != tt.wantKind {
				t.Errorf("Validate() error kind = %q, want %q (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidateResolutions(t *testing.T) {
	tests := []struct {
		name       string
		input      GenerationInput
		aspect     string
		resolution string
		wantKind   ErrorKind
	}{
		{"sora 16:9 720p", &SoraInput{Prompt: "p"}, "16:9", "720p", ""},
		{"sora 9:16 1080p", &SoraInput{Prompt: "p"}, "9:16", "1080p", ""},
		{"sora 4k rejected", &SoraInput{Prompt: "p"}, "16:9", "4k", ErrUnsupportedResolution},
		{"sora unknown aspect", &SoraInput{Prompt: "p"}, "1:1", "720p", ErrUnsupportedResolution},
		{"veo 1080p", &VeoInput{Prompt: "p"}, "16:9", "1080p", ""},
		{"veo 4k on preview model", &VeoInput{Prompt: "p"}, "16:9", "4k", ""},
		{"veo 4k on stable model", &VeoInput{Prompt: "p", Model: "veo-3.1-generate-001"}, "16:9", "4k", ErrUnsupportedResolution},
		{"veo 480p rejected", &VeoInput{Prompt: "p"}, "16:9", "480p", ErrUnsupportedResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AspectRatio = tt.aspect
			cfg.Resolution = tt.resolution
			err := Validate(tt.input, cfg)
			if got := errorKind(err); got != tt.wantKind {
				t.Errorf("Validate() error kind = %q, want %q (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidatePrompt(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(&SoraInput{Prompt: ""}, cfg); errorKind(err) != ErrMalformedInput {
		t.Errorf("empty prompt: got %v, want malformed_input", err)
	}

	if err := Validate(&SoraInput{Prompt: strings.Repeat("a", maxPromptLength+1)}, cfg); errorKind(err) != ErrOutOfRange {
		t.Errorf("oversized prompt: got %v, want out_of_range", err)
	}
}

func TestValidatePromptCountsCharacters(t *testing.T) {
	cfg := DefaultConfig()

	// "é" is 2 bytes in UTF-8; the limit is on characters, so 4096 of
	// them must pass even though the byte length is twice the limit.
	atLimit := strings.Repeat("é", maxPromptLength)
	if err := Validate(&SoraInput{Prompt: atLimit}, cfg); err != nil {
		t.Errorf("prompt of %d multibyte characters rejected: %v", maxPromptLength, err)
	}

	overLimit := strings.Repeat("é", maxPromptLength+1)
	if err := Validate(&SoraInput{Prompt: overLimit}, cfg); errorKind(err) != ErrOutOfRange {
		t.Errorf("prompt of %d characters: got %v, want out_of_range", maxPromptLength+1, err)
	}
}

func TestValidateImageSupplyModes(t *testing.T) {
	tests := []struct {
		name     string
		image    *ImageInput
		wantKind ErrorKind
	}{
		{"url only", &ImageInput{URL: "https://example.com/a.png"}, ""},
		{"base64 with mime", &ImageInput{Base64: "aGk=", MimeType: "image/png"}, ""},
		{"both set", &ImageInput{URL: "https://example.com/a.png", Base64: "aGk="}, ErrMalformedInput},
		{"neither set", &ImageInput{}, ErrMalformedInput},
		{"base64 without mime", &ImageInput{Base64: "aGk="}, ErrMalformedInput},
		{"base64 with bad mime", &ImageInput{Base64: "aGk=", MimeType: "image/gif"}, ErrMalformedInput},
		{"url with stray mime", &ImageInput{URL: "https://example.com/a.png", MimeType: "image/png"}, ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&SoraInput{Prompt: "p", InputImage: tt.image}, DefaultConfig())
			if got := errorKind(err); got != tt.wantKind {
				t.Errorf("Validate() error kind = %q, want %q (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidateVeoRanges(t *testing.T) {
	refs := func(n int) []ImageInput {
		out := make([]ImageInput, n)
		for i := range out {
			out[i] = ImageInput{URL: "https://example.com/ref.png"}
		}
		return out
	}

	badSeed := int64(1) << 33
	goodSeed := int64(42)

	tests := []struct {
		name     string
		input    *VeoInput
		wantKind ErrorKind
	}{
		{"three reference images ok", &VeoInput{Prompt: "p", ReferenceImages: refs(3)}, ""},
		{"four reference images rejected", &VeoInput{Prompt: "p", ReferenceImages: refs(4)}, ErrOutOfRange},
		{"num_outputs 4 ok", &VeoInput{Prompt: "p", NumOutputs: 4}, ""},
		{"num_outputs 5 rejected", &VeoInput{Prompt: "p", NumOutputs: 5}, ErrOutOfRange},
		{"seed in range", &VeoInput{Prompt: "p", Seed: &goodSeed}, ""},
		{"seed over 32 bits", &VeoInput{Prompt: "p", Seed: &badSeed}, ErrOutOfRange},
		{"unknown model", &VeoInput{Prompt: "p", Model: "veo-9000"}, ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input, DefaultConfig())
			if got := errorKind(err); got != tt.wantKind {
				t.Errorf("Validate() error kind = %q, want %q (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidateIdempotent(t *testing.T) {
	input := &SoraInput{Prompt: "a dog surfing"}
	cfg := DefaultConfig()
	cfg.Duration = 6

	first := Validate(input, cfg)
	second := Validate(input, cfg)
	if first == nil || second == nil {
		t.Fatal("expected validation errors")
	}
	if first.Error() != second.Error() {
		t.Errorf("validation is not deterministic: %q vs %q", first, second)
	}
}

func TestProjectSora(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolution = "1080p"

	payload, err := ProjectSora(&SoraInput{Prompt: "a dog surfing at sunset"}, cfg)
	if err != nil {
		t.Fatalf("ProjectSora() error: %v", err)
	}

	if payload.Model != "sora-2" {
		t.Errorf("model = %q, want sora-2", payload.Model)
	}
	if payload.Seconds != 8 {
		t.Errorf("seconds = %d, want 8", payload.Seconds)
	}
	if payload.Size != "1792x1024" {
		t.Errorf("size = %q, want 1792x1024", payload.Size)
	}
	if err := ValidateSoraPayload(payload); err != nil {
		t.Errorf("projected payload fails native validation: %v", err)
	}
}

func TestProjectSoraImage(t *testing.T) {
	payload, err := ProjectSora(&SoraInput{
		Prompt:     "p",
		InputImage: &ImageInput{Base64: "aGk=", MimeType: "image/jpeg"},
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("ProjectSora() error: %v", err)
	}
	want := &SoraImageInput{Type: "base64", Base64: "aGk=", MediaType: "image/jpeg"}
	if !reflect.DeepEqual(payload.InputReference, want) {
		t.Errorf("input_reference = %+v, want %+v", payload.InputReference, want)
	}
}

func TestProjectVeo(t *testing.T) {
	seed := int64(7)
	cfg := DefaultConfig()
	cfg.Duration = 6
	cfg.AspectRatio = "9:16"

	payload, err := ProjectVeo(&VeoInput{
		Prompt:         "neon city flythrough",
		NegativePrompt: "daylight",
		Seed:           &seed,
		InputImage:     &ImageInput{URL: "gs://bucket/frame.png"},
	}, cfg)
	if err != nil {
		t.Fatalf("ProjectVeo() error: %v", err)
	}

	if payload.Model != DefaultVeoModel {
		t.Errorf("model = %q, want %q", payload.Model, DefaultVeoModel)
	}
	if payload.Parameters.DurationSeconds != 6 {
		t.Errorf("durationSeconds = %d, want 6", payload.Parameters.DurationSeconds)
	}
	if payload.Parameters.AspectRatio != "9:16" {
		t.Errorf("aspectRatio = %q, want 9:16", payload.Parameters.AspectRatio)
	}
	// 720p is the API default and is omitted from the payload.
	if payload.Parameters.Resolution != "" {
		t.Errorf("resolution = %q, want empty for 720p", payload.Parameters.Resolution)
	}
	if payload.Parameters.NumberOfVideos != 1 {
		t.Errorf("numberOfVideos = %d, want 1", payload.Parameters.NumberOfVideos)
	}
	if !payload.Parameters.GenerateAudio {
		t.Error("generateAudio = false, want true by default")
	}
	if payload.Parameters.PersonGeneration != "allow_all" {
		t.Errorf("personGeneration = %q, want allow_all", payload.Parameters.PersonGeneration)
	}
	if payload.Image == nil || payload.Image.GCSURI != "gs://bucket/frame.png" {
		t.Errorf("image = %+v, want gcsUri set", payload.Image)
	}
	if err := ValidateVeoPayload(payload); err != nil {
		t.Errorf("projected payload fails native validation: %v", err)
	}
}

func TestProjectVeoNonDefaultResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolution = "1080p"

	payload, err := ProjectVeo(&VeoInput{Prompt: "p"}, cfg)
	if err != nil {
		t.Fatalf("ProjectVeo() error: %v", err)
	}
	if payload.Parameters.Resolution != "1080p" {
		t.Errorf("resolution = %q, want 1080p", payload.Parameters.Resolution)
	}
}

func TestProjectRejectsInvalidInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 6

	if _, err := Project(&SoraInput{Prompt: "p"}, cfg); errorKind(err) != ErrUnsupportedDuration {
		t.Errorf("Project() error = %v, want unsupported_duration", err)
	}
}

func TestProjectDeterministic(t *testing.T) {
	input := &VeoInput{Prompt: "p", NumOutputs: 2}
	cfg := DefaultConfig()

	first, err := ProjectVeo(input, cfg)
	if err != nil {
		t.Fatalf("ProjectVeo() error: %v", err)
	}
	second, err := ProjectVeo(input, cfg)
	if err != nil {
		t.Fatalf("ProjectVeo() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("projection is not deterministic: %+v vs %+v", first, second)
	}
}

func TestParseGenerationInput(t *testing.T) {
	t.Run("sora", func(t *testing.T) {
		input, err := ParseGenerationInput([]byte(`{"provider":"sora","prompt":"a cat"}`), false)
		if err != nil {
			t.Fatalf("ParseGenerationInput() error: %v", err)
		}
		if input.ProviderName() != ProviderSora || input.PromptText() != "a cat" {
			t.Errorf("got %s / %q", input.ProviderName(), input.PromptText())
		}
	})

	t.Run("veo keeps its fields", func(t *testing.T) {
		input, err := ParseGenerationInput([]byte(`{"provider":"veo","prompt":"p","negative_prompt":"rain","num_outputs":2}`), false)
		if err != nil {
			t.Fatalf("ParseGenerationInput() error: %v", err)
		}
		veo, ok := input.(*VeoInput)
		if !ok {
			t.Fatalf("got %T, want *VeoInput", input)
		}
		if veo.NegativePrompt != "rain" || veo.NumOutputs != 2 {
			t.Errorf("fields lost: %+v", veo)
		}
	})

	t.Run("cross provider field rejected", func(t *testing.T) {
		_, err := ParseGenerationInput([]byte(`{"provider":"sora","prompt":"p","negative_prompt":"rain"}`), false)
		if errorKind(err) != ErrCrossProviderField {
			t.Errorf("got %v, want cross_provider_field", err)
		}
	})

	t.Run("cross provider field dropped when lenient", func(t *testing.T) {
		input, err := ParseGenerationInput([]byte(`{"provider":"sora","prompt":"p","negative_prompt":"rain"}`), true)
		if err != nil {
			t.Fatalf("ParseGenerationInput() error: %v", err)
		}
		if _, ok := input.(*SoraInput); !ok {
			t.Fatalf("got %T, want *SoraInput", input)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := ParseGenerationInput([]byte(`{"provider":"pika","prompt":"p"}`), false)
		var pErr *ProviderNotFoundError
		if !errors.As(err, &pErr) {
			t.Errorf("got %v, want ProviderNotFoundError", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseGenerationInput([]byte(`{"provider":`), false)
		if errorKind(err) != ErrMalformedInput {
			t.Errorf("got %v, want malformed_input", err)
		}
	})
}
