package videogen

import (
	"context"
	"sync"
	"time"
)

// Credentials holds the provider API keys and base URL overrides.
type Credentials struct {
	SoraAPIKey  string
	SoraBaseURL string
	VeoAPIKey   string
	VeoBaseURL  string
}

// Service routes unified requests to the provider named by the input's
// discriminator. Providers are constructed lazily and reused; the service
// is safe for concurrent use.
type Service struct {
	creds Credentials

	mu        sync.Mutex
	providers map[string]Provider
}

// NewService builds a provider-routing service.
func NewService(creds Credentials) *Service {
	return &Service{
		creds:     creds,
		providers: make(map[string]Provider),
	}
}

// RegisterProvider installs a provider implementation, replacing the one
// that would be lazily constructed. Tests use this to inject fakes.
func (s *Service) RegisterProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
}

func (s *Service) provider(name string) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[name]; ok {
		return p, nil
	}

	var p Provider
	var err error
	switch name {
	case ProviderSora:
		p, err = NewSoraProvider(s.creds.SoraAPIKey, s.creds.SoraBaseURL)
	case ProviderVeo:
		p, err = NewVeoProvider(s.creds.VeoAPIKey, s.creds.VeoBaseURL)
	default:
		return nil, &ProviderNotFoundError{Provider: name}
	}
	if err != nil {
		return nil, err
	}
	s.providers[name] = p
	return p, nil
}

// Generate routes a single unified request to its provider.
func (s *Service) Generate(ctx context.Context, input GenerationInput, cfg GenerationConfig) (GeneratedVideo, error) {
	p, err := s.provider(input.ProviderName())
	if err != nil {
		return GeneratedVideo{}, err
	}
	return p.Generate(ctx, input, cfg)
}

// IndexedInput pairs a generation input with its position within the
// segment's generation_inputs list.
type IndexedInput struct {
	Input GenerationInput
	Index int
}

// GenerateBatch starts all inputs in parallel and returns one result per
// input with InputIndex preserved. A per-input failure becomes a failed
// result rather than aborting the batch.
func (s *Service) GenerateBatch(ctx context.Context, inputs []IndexedInput, cfg GenerationConfig) []GenerationResult {
	results := make([]GenerationResult, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in IndexedInput) {
			defer wg.Done()
			video, err := s.Generate(ctx, in.Input, cfg)
			if err != nil {
				video = failedVideo(err)
			}
			results[i] = GenerationResult{
				InputIndex: in.Index,
				Provider:   in.Input.ProviderName(),
				Video:      video,
			}
		}(i, in)
	}
	wg.Wait()

	return results
}

// GetStatus fetches the current record for a video from its provider.
func (s *Service) GetStatus(ctx context.Context, provider, videoID string) (GeneratedVideo, error) {
	p, err := s.provider(provider)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return p.GetStatus(ctx, videoID)
}

// WaitForCompletion polls one video until it reaches a terminal state.
func (s *Service) WaitForCompletion(ctx context.Context, provider, videoID string,
	pollInterval, timeout time.Duration) (GeneratedVideo, error) {

	p, err := s.provider(provider)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return WaitForCompletion(ctx, p, videoID, pollInterval, timeout)
}

// PendingVideo identifies one started generation awaiting completion.
type PendingVideo struct {
	Provider   string
	VideoID    string
	InputIndex int
}

// WaitForBatch polls all pending videos in parallel until each reaches a
// terminal state or times out. Timeouts and poll failures fold into
// failed results so the batch shape is preserved.
func (s *Service) WaitForBatch(ctx context.Context, pending []PendingVideo,
	pollInterval, timeout time.Duration) []GenerationResult {

	results := make([]GenerationResult, len(pending))

	var wg sync.WaitGroup
	for i, pv := range pending {
		wg.Add(1)
		go func(i int, pv PendingVideo) {
			defer wg.Done()
			video, err := s.WaitForCompletion(ctx, pv.Provider, pv.VideoID, pollInterval, timeout)
			if err != nil {
				video = failedVideo(err)
				video.ID = pv.VideoID
			}
			results[i] = GenerationResult{
				InputIndex: pv.InputIndex,
				Provider:   pv.Provider,
				Video:      video,
			}
		}(i, pv)
	}
	wg.Wait()

	return results
}

// GetVideoURL returns the download URL for a completed video.
func (s *Service) GetVideoURL(ctx context.Context, provider, videoID string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.GetVideoURL(ctx, videoID)
}

// Remix starts a prompt-revised generation from a completed Sora video.
func (s *Service) Remix(ctx context.Context, videoID, prompt string) (GeneratedVideo, error) {
	p, err := s.provider(ProviderSora)
	if err != nil {
		return GeneratedVideo{}, err
	}
	remixer, ok := p.(Remixer)
	if !ok {
		return GeneratedVideo{}, &RequestError{Provider: ProviderSora, Details: "remix not supported by installed provider"}
	}
	return remixer.Remix(ctx, videoID, prompt)
}

func failedVideo(err error) GeneratedVideo {
	return GeneratedVideo{
		Status:    StatusFailed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Error:     err.Error(),
	}
}
