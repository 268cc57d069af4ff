package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const soraDefaultBaseURL = "https://api.openai.com/v1"

// SoraProvider talks to the OpenAI video API:
// POST /v1/videos, GET /v1/videos/{id}, POST /v1/videos/{id}/remix.
type SoraProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSoraProvider builds a Sora provider. An empty API key is an
// authentication error surfaced immediately rather than on first call.
func NewSoraProvider(apiKey, baseURL string) (*SoraProvider, error) {
	if apiKey == "" {
		return nil, &AuthenticationError{Provider: ProviderSora, Details: "API key not set"}
	}
	if baseURL == "" {
		baseURL = soraDefaultBaseURL
	}
	return &SoraProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *SoraProvider) Name() string { return ProviderSora }

// Generate validates and projects the input, then starts a generation.
func (p *SoraProvider) Generate(ctx context.Context, input GenerationInput, cfg GenerationConfig) (GeneratedVideo, error) {
	in, ok := input.(*SoraInput)
	if !ok {
		return GeneratedVideo{}, newValidationError(ErrMalformedInput, "provider", input.ProviderName())
	}

	if err := Validate(in, cfg); err != nil {
		return GeneratedVideo{}, err
	}
	payload, err := ProjectSora(in, cfg)
	if err != nil {
		return GeneratedVideo{}, err
	}

	body, err := p.doRequest(ctx, http.MethodPost, p.baseURL+"/videos", payload)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return FoldSoraResponse(body, p.baseURL)
}

// GetStatus fetches the current state of a Sora video.
func (p *SoraProvider) GetStatus(ctx context.Context, videoID string) (GeneratedVideo, error) {
	body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/videos/%s", p.baseURL, videoID), nil)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return FoldSoraResponse(body, p.baseURL)
}

// GetVideoURL returns the content URL of a completed video.
func (p *SoraProvider) GetVideoURL(ctx context.Context, videoID string) (string, error) {
	video, err := p.GetStatus(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video.Status != StatusCompleted {
		return "", &RequestError{
			Provider: ProviderSora,
			Details:  fmt.Sprintf("video is not completed (status: %s)", video.Status),
		}
	}
	return fmt.Sprintf("%s/videos/%s/content", p.baseURL, videoID), nil
}

// Remix starts a new generation derived from a completed video with a
// revised prompt.
func (p *SoraProvider) Remix(ctx context.Context, videoID, prompt string) (GeneratedVideo, error) {
	if err := validatePrompt(prompt); err != nil {
		return GeneratedVideo{}, err
	}
	body, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/videos/%s/remix", p.baseURL, videoID),
		map[string]string{"prompt": prompt})
	if err != nil {
		return GeneratedVideo{}, err
	}
	return FoldSoraResponse(body, p.baseURL)
}

func (p *SoraProvider) doRequest(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sora request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build sora request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: ProviderSora, Details: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Provider: ProviderSora, Details: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthenticationError{Provider: ProviderSora, Details: "invalid API key"}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &VideoNotFoundError{Provider: ProviderSora, VideoID: url}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, &RequestError{
			Provider:   ProviderSora,
			StatusCode: resp.StatusCode,
			Details:    soraErrorMessage(body),
		}
	}
	return body, nil
}

func soraErrorMessage(body []byte) string {
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
