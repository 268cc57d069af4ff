package videogen

import (
	"context"
	"time"
)

// Provider is one video-generation backend. Implementations are stateless
// and safe for concurrent use; cancellation and timeouts come from the
// caller's context.
type Provider interface {
	Name() string

	// Generate starts a generation and returns the initial record
	// (usually queued or in_progress).
	Generate(ctx context.Context, input GenerationInput, cfg GenerationConfig) (GeneratedVideo, error)

	// GetStatus fetches the current record for a previously started video.
	GetStatus(ctx context.Context, videoID string) (GeneratedVideo, error)

	// GetVideoURL returns the download URL for a completed video.
	GetVideoURL(ctx context.Context, videoID string) (string, error)
}

// Remixer is implemented by providers that can derive a new generation
// from a completed video with a revised prompt.
type Remixer interface {
	Remix(ctx context.Context, videoID, prompt string) (GeneratedVideo, error)
}

// WaitForCompletion polls a provider until the video reaches a terminal
// state, the timeout elapses, or the context is cancelled.
func WaitForCompletion(ctx context.Context, p Provider, videoID string,
	pollInterval, timeout time.Duration) (GeneratedVideo, error) {

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		video, err := p.GetStatus(ctx, videoID)
		if err != nil {
			return GeneratedVideo{}, err
		}
		if IsTerminal(video.Status) {
			return video, nil
		}

		if time.Now().After(deadline) {
			return GeneratedVideo{}, &TimeoutError{
				Provider: p.Name(),
				VideoID:  videoID,
				Timeout:  timeout.Seconds(),
			}
		}

		select {
		case <-ctx.Done():
			return GeneratedVideo{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
