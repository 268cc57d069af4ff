package videogen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVeoTestProvider(t *testing.T, handler http.HandlerFunc) *VeoProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewVeoProvider("test-key", server.URL)
	require.NoError(t, err)
	return p
}

func TestVeoGenerate(t *testing.T) {
	var gotStart veoStartRequest
	p := newVeoTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/veo-3.1-generate-preview:predictLongRunning", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStart))

		json.NewEncoder(w).Encode(map[string]string{"name": "operations/op-42"})
	})

	cfg := DefaultConfig()
	cfg.Duration = 6
	video, err := p.Generate(context.Background(), &VeoInput{
		Prompt:         "neon alley in the rain",
		NegativePrompt: "daylight",
	}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "operations/op-42", video.ID)
	assert.Equal(t, StatusInProgress, video.Status)
	assert.True(t, video.HasAudio)

	require.Len(t, gotStart.Instances, 1)
	assert.Equal(t, "neon alley in the rain", gotStart.Instances[0].Prompt)
	assert.Equal(t, 6, gotStart.Parameters.DurationSeconds)
	assert.Equal(t, "daylight", gotStart.Parameters.NegativePrompt)
	assert.True(t, gotStart.Parameters.GenerateAudio)
}

func TestVeoGenerateRejectsInvalidDuration(t *testing.T) {
	p := newVeoTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the API on validation failure")
	})

	cfg := DefaultConfig()
	cfg.Duration = 12
	_, err := p.Generate(context.Background(), &VeoInput{Prompt: "p"}, cfg)
	assert.Equal(t, ErrUnsupportedDuration, errorKind(err))
}

func TestVeoGetStatus(t *testing.T) {
	p := newVeoTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/operations/op-42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "operations/op-42",
			"done": true,
			"response": map[string]interface{}{
				"generated_videos": []map[string]interface{}{
					{"video": map[string]string{"uri": "https://veo.test/files/out.mp4"}},
				},
			},
		})
	})

	video, err := p.GetStatus(context.Background(), "operations/op-42")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, video.Status)
	assert.Equal(t, "https://veo.test/files/out.mp4", video.VideoURL)
	assert.Equal(t, 100, video.Progress)
}

func TestVeoGetVideoURL(t *testing.T) {
	p := newVeoTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "operations/op-42", "done": false,
		})
	})

	_, err := p.GetVideoURL(context.Background(), "operations/op-42")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Details, "not completed")
}

func TestVeoErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "403 becomes authentication error",
			statusCode: http.StatusForbidden,
			body:       `{"error":{"message":"API key invalid"}}`,
			check: func(t *testing.T, err error) {
				var authErr *AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Contains(t, authErr.Details, "API key invalid")
			},
		},
		{
			name:       "404 becomes not found",
			statusCode: http.StatusNotFound,
			body:       `{}`,
			check: func(t *testing.T, err error) {
				var nfErr *VideoNotFoundError
				require.ErrorAs(t, err, &nfErr)
			},
		},
		{
			name:       "429 carries the status code",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":{"message":"quota exhausted"}}`,
			check: func(t *testing.T, err error) {
				var reqErr *RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, http.StatusTooManyRequests, reqErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newVeoTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			})

			_, err := p.GetStatus(context.Background(), "operations/op-42")
			tt.check(t, err)
		})
	}
}
