package videogen

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// soraResponse is the wire shape returned by POST /v1/videos and
// GET /v1/videos/{id}.
type soraResponse struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Progress      int         `json:"progress"`
	CreatedAt     json.Number `json:"created_at"`
	Seconds       json.Number `json:"seconds"`
	Size          string      `json:"size"`
	FailureReason string      `json:"failure_reason"`
	Error         *soraError  `json:"error"`
}

type soraError struct {
	Message string `json:"message"`
}

// veoOperation is the long-running operation shape returned by the Veo API.
type veoOperation struct {
	Name     string        `json:"name"`
	Done     bool          `json:"done"`
	Status   string        `json:"status"`
	Error    *veoOpError   `json:"error"`
	Response *veoOpPayload `json:"response"`
}

type veoOpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type veoOpPayload struct {
	GeneratedVideos []veoGeneratedVideo `json:"generated_videos"`
	// Gemini API wraps the result one level deeper.
	GenerateVideoResponse *struct {
		GeneratedVideos []veoGeneratedVideo `json:"generated_videos"`
	} `json:"generateVideoResponse"`
}

type veoGeneratedVideo struct {
	Video struct {
		URI string `json:"uri"`
	} `json:"video"`
}

// FoldResponse maps a provider-native response body onto the unified
// GeneratedVideo record. Status is always one of the four canonical
// values: a response with an unrecognizable status fails closed into
// "failed" with a diagnostic error string.
func FoldResponse(provider string, raw []byte) (GeneratedVideo, error) {
	switch provider {
	case ProviderSora:
		return FoldSoraResponse(raw, soraDefaultBaseURL)
	case ProviderVeo:
		return FoldVeoOperation(raw)
	default:
		return GeneratedVideo{}, &ProviderNotFoundError{Provider: provider}
	}
}

// FoldSoraResponse maps a Sora video object onto GeneratedVideo. Field
// names map almost 1:1; created_at arrives as a unix timestamp and the
// download URL is derived from the video id once completed.
func FoldSoraResponse(raw []byte, baseURL string) (GeneratedVideo, error) {
	var resp soraResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return GeneratedVideo{}, newValidationError(ErrUnmappableResponse, "response", err.Error())
	}
	if resp.ID == "" {
		return GeneratedVideo{}, newValidationError(ErrUnmappableResponse, "id", string(raw))
	}

	video := GeneratedVideo{
		ID:         resp.ID,
		Progress:   resp.Progress,
		CreatedAt:  soraCreatedAt(resp.CreatedAt),
		Resolution: resp.Size,
		HasAudio:   false, // Sora does not generate audio
	}
	if secs, err := resp.Seconds.Int64(); err == nil {
		video.Duration = int(secs)
	}

	switch resp.Status {
	case StatusQueued, StatusInProgress, StatusFailed:
		video.Status = resp.Status
	case StatusCompleted:
		video.Status = StatusCompleted
		video.Progress = 100
		video.VideoURL = fmt.Sprintf("%s/videos/%s/content", baseURL, resp.ID)
	default:
		video.Status = StatusFailed
		video.Error = fmt.Sprintf("unrecognized sora status %q", resp.Status)
		return video, nil
	}

	if video.Status == StatusFailed && video.Error == "" {
		video.Error = resp.FailureReason
		if video.Error == "" && resp.Error != nil {
			video.Error = resp.Error.Message
		}
		if video.Error == "" {
			video.Error = "generation failed"
		}
	}
	return video, nil
}

func soraCreatedAt(n json.Number) string {
	if unix, err := n.Int64(); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// FoldVeoOperation maps a Veo long-running operation onto GeneratedVideo.
// The video id is the operation name and the download URL comes from
// generated_videos[0].video.uri once the operation is done.
func FoldVeoOperation(raw []byte) (GeneratedVideo, error) {
	var op veoOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		return GeneratedVideo{}, newValidationError(ErrUnmappableResponse, "operation", err.Error())
	}
	if op.Name == "" {
		return GeneratedVideo{}, newValidationError(ErrUnmappableResponse, "name", string(raw))
	}

	video := GeneratedVideo{
		ID:        op.Name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		HasAudio:  true, // Veo generates audio by default
	}

	done := op.Done || strings.EqualFold(op.Status, "done")

	if !done {
		video.Status = StatusInProgress
		return video, nil
	}

	if op.Error != nil {
		video.Status = StatusFailed
		video.Error = op.Error.Message
		if video.Error == "" {
			video.Error = fmt.Sprintf("operation failed with code %d", op.Error.Code)
		}
		return video, nil
	}

	if uri := veoVideoURI(op.Response); uri != "" {
		video.Status = StatusCompleted
		video.Progress = 100
		video.VideoURL = uri
		video.Resolution = "720p"
		return video, nil
	}

	// Done with neither an error nor a video: terminal, so fail closed.
	video.Status = StatusFailed
	video.Error = "operation done but no generated videos in response"
	return video, nil
}

func veoVideoURI(payload *veoOpPayload) string {
	if payload == nil {
		return ""
	}
	videos := payload.GeneratedVideos
	if len(videos) == 0 && payload.GenerateVideoResponse != nil {
		videos = payload.GenerateVideoResponse.GeneratedVideos
	}
	if len(videos) == 0 {
		return ""
	}
	return videos[0].Video.URI
}
