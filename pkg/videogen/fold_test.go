package videogen

import (
	"testing"
)

func TestFoldSoraResponse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantStatus   string
		wantProgress int
		wantVideoURL string
		wantError    string
	}{
		{
			name:       "queued",
			raw:        `{"id":"video_123","status":"queued","progress":0,"created_at":1712000000}`,
			wantStatus: StatusQueued,
		},
		{
			name:         "in progress keeps progress",
			raw:          `{"id":"video_123","status":"in_progress","progress":42}`,
			wantStatus:   StatusInProgress,
			wantProgress: 42,
		},
		{
			name:         "completed derives content url",
			raw:          `{"id":"video_123","status":"completed","progress":87,"seconds":8,"size":"1280x720"}`,
			wantStatus:   StatusCompleted,
			wantProgress: 100,
			wantVideoURL: "https://sora.test/v1/videos/video_123/content",
		},
		{
			name:       "failed with failure_reason",
			raw:        `{"id":"video_123","status":"failed","failure_reason":"content policy"}`,
			wantStatus: StatusFailed,
			wantError:  "content policy",
		},
		{
			name:       "failed with error envelope",
			raw:        `{"id":"video_123","status":"failed","error":{"message":"quota exceeded"}}`,
			wantStatus: StatusFailed,
			wantError:  "quota exceeded",
		},
		{
			name:       "failed with no detail",
			raw:        `{"id":"video_123","status":"failed"}`,
			wantStatus: StatusFailed,
			wantError:  "generation failed",
		},
		{
			name:       "unknown status fails closed",
			raw:        `{"id":"video_123","status":"paused"}`,
			wantStatus: StatusFailed,
			wantError:  `unrecognized sora status "paused"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, err := FoldSoraResponse([]byte(tt.raw), "https://sora.test/v1")
			if err != nil {
				t.Fatalf("FoldSoraResponse() error: %v", err)
			}
			if video.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", video.Status, tt.wantStatus)
			}
			if video.Progress != tt.wantProgress {
				t.Errorf("progress = %d, want %d", video.Progress, tt.wantProgress)
			}
			if video.VideoURL != tt.wantVideoURL {
				t.Errorf("video_url = %q, want %q", video.VideoURL, tt.wantVideoURL)
			}
			if video.Error != tt.wantError {
				t.Errorf("error = %q, want %q", video.Error, tt.wantError)
			}
			if video.HasAudio {
				t.Error("has_audio = true, want false for sora")
			}
		})
	}
}

func TestFoldSoraResponseFields(t *testing.T) {
	video, err := FoldSoraResponse(
		[]byte(`{"id":"video_9","status":"completed","created_at":1712000000,"seconds":12,"size":"720x1280"}`),
		"https://api.openai.com/v1")
	if err != nil {
		t.Fatalf("FoldSoraResponse() error: %v", err)
	}
	if video.Duration != 12 {
		t.Errorf("duration = %d, want 12", video.Duration)
	}
	if video.Resolution != "720x1280" {
		t.Errorf("resolution = %q, want 720x1280", video.Resolution)
	}
	if video.CreatedAt != "2024-04-01T19:33:20Z" {
		t.Errorf("created_at = %q, want 2024-04-01T19:33:20Z", video.CreatedAt)
	}
}

func TestFoldSoraResponseUnmappable(t *testing.T) {
	if _, err := FoldSoraResponse([]byte(`{"status":"queued"}`), "base"); errorKind(err) != ErrUnmappableResponse {
		t.Errorf("missing id: got %v, want unmappable_provider_response", err)
	}
	if _, err := FoldSoraResponse([]byte(`not json`), "base"); errorKind(err) != ErrUnmappableResponse {
		t.Errorf("bad json: got %v, want unmappable_provider_response", err)
	}
}

func TestFoldVeoOperation(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantStatus   string
		wantVideoURL string
		wantError    string
	}{
		{
			name:       "not done",
			raw:        `{"name":"operations/op-1","done":false}`,
			wantStatus: StatusInProgress,
		},
		{
			name:       "status field marks done",
			raw:        `{"name":"operations/op-1","status":"DONE","error":{"code":3,"message":"bad prompt"}}`,
			wantStatus: StatusFailed,
			wantError:  "bad prompt",
		},
		{
			name:         "done with video uri",
			raw:          `{"name":"operations/op-1","done":true,"response":{"generated_videos":[{"video":{"uri":"https://veo.test/files/v1.mp4"}}]}}`,
			wantStatus:   StatusCompleted,
			wantVideoURL: "https://veo.test/files/v1.mp4",
		},
		{
			name:         "done with nested response shape",
			raw:          `{"name":"operations/op-1","done":true,"response":{"generateVideoResponse":{"generated_videos":[{"video":{"uri":"https://veo.test/files/v2.mp4"}}]}}}`,
			wantStatus:   StatusCompleted,
			wantVideoURL: "https://veo.test/files/v2.mp4",
		},
		{
			name:       "done with error code only",
			raw:        `{"name":"operations/op-1","done":true,"error":{"code":13}}`,
			wantStatus: StatusFailed,
			wantError:  "operation failed with code 13",
		},
		{
			name:       "done with no videos fails closed",
			raw:        `{"name":"operations/op-1","done":true,"response":{}}`,
			wantStatus: StatusFailed,
			wantError:  "operation done but no generated videos in response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, err := FoldVeoOperation([]byte(tt.raw))
			if err != nil {
				t.Fatalf("FoldVeoOperation() error: %v", err)
			}
			if video.ID != "operations/op-1" {
				t.Errorf("id = %q, want operation name", video.ID)
			}
			if video.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", video.Status, tt.wantStatus)
			}
			if video.VideoURL != tt.wantVideoURL {
				t.Errorf("video_url = %q, want %q", video.VideoURL, tt.wantVideoURL)
			}
			if video.Error != tt.wantError {
				t.Errorf("error = %q, want %q", video.Error, tt.wantError)
			}
			if !video.HasAudio {
				t.Error("has_audio = false, want true for veo")
			}
		})
	}
}

func TestFoldVeoOperationUnmappable(t *testing.T) {
	if _, err := FoldVeoOperation([]byte(`{"done":true}`)); errorKind(err) != ErrUnmappableResponse {
		t.Errorf("missing name: got %v, want unmappable_provider_response", err)
	}
}

func TestFoldResponseUnknownProvider(t *testing.T) {
	if _, err := FoldResponse("pika", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown provider")
	}
}
