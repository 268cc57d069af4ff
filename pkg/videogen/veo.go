package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const veoDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// VeoProvider talks to the Google Veo API through its long-running
// operation surface: a generateVideos-style start call followed by
// operation polling.
type VeoProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewVeoProvider builds a Veo provider.
func NewVeoProvider(apiKey, baseURL string) (*VeoProvider, error) {
	if apiKey == "" {
		return nil, &AuthenticationError{Provider: ProviderVeo, Details: "API key not set"}
	}
	if baseURL == "" {
		baseURL = veoDefaultBaseURL
	}
	return &VeoProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *VeoProvider) Name() string { return ProviderVeo }

// veoStartRequest is the wire shape for the predictLongRunning call. The
// model travels in the URL, so the projected payload is reshaped here.
type veoStartRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters VeoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *VeoImage `json:"image,omitempty"`
}

// Generate validates and projects the input, then starts an operation.
// The returned record carries the operation name as its id.
func (p *VeoProvider) Generate(ctx context.Context, input GenerationInput, cfg GenerationConfig) (GeneratedVideo, error) {
	in, ok := input.(*VeoInput)
	if !ok {
		return GeneratedVideo{}, newValidationError(ErrMalformedInput, "provider", input.ProviderName())
	}

	if err := Validate(in, cfg); err != nil {
		return GeneratedVideo{}, err
	}
	payload, err := ProjectVeo(in, cfg)
	if err != nil {
		return GeneratedVideo{}, err
	}

	start := veoStartRequest{
		Instances:  []veoInstance{{Prompt: payload.Prompt, Image: payload.Image}},
		Parameters: payload.Parameters,
	}
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", p.baseURL, payload.Model)
	body, err := p.doRequest(ctx, http.MethodPost, url, start)
	if err != nil {
		return GeneratedVideo{}, err
	}

	var op struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &op); err != nil || op.Name == "" {
		return GeneratedVideo{}, newValidationError(ErrUnmappableResponse, "name", string(body))
	}

	return GeneratedVideo{
		ID:        op.Name,
		Status:    StatusInProgress,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		HasAudio:  cfg.GenerateAudio,
	}, nil
}

// GetStatus polls the operation named by videoID.
func (p *VeoProvider) GetStatus(ctx context.Context, videoID string) (GeneratedVideo, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, strings.TrimPrefix(videoID, "/"))
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return FoldVeoOperation(body)
}

// GetVideoURL returns the URI of a completed video.
func (p *VeoProvider) GetVideoURL(ctx context.Context, videoID string) (string, error) {
	video, err := p.GetStatus(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video.Status != StatusCompleted {
		return "", &RequestError{
			Provider: ProviderVeo,
			Details:  fmt.Sprintf("video is not completed (status: %s)", video.Status),
		}
	}
	if video.VideoURL == "" {
		return "", &RequestError{Provider: ProviderVeo, Details: "video URL not available"}
	}
	return video.VideoURL, nil
}

func (p *VeoProvider) doRequest(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal veo request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build veo request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: ProviderVeo, Details: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Provider: ProviderVeo, Details: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthenticationError{Provider: ProviderVeo, Details: veoErrorMessage(body)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &VideoNotFoundError{Provider: ProviderVeo, VideoID: url}
	case resp.StatusCode != http.StatusOK:
		return nil, &RequestError{
			Provider:   ProviderVeo,
			StatusCode: resp.StatusCode,
			Details:    veoErrorMessage(body),
		}
	}
	return body, nil
}

func veoErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}
