package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	registry := inference.NewRegistry([]inference.ModelConfig{
		{Name: "whisper", Kind: inference.KindDummy},
		{Name: "dummy", Kind: inference.KindDummy},
	})
	return SetupRouter(NewHandler(registry, logger.Discard()))
}

func multipartBody(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("RIFF"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		fields     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "defaults to whisper v1",
			filename:   "clip.wav",
			wantStatus: http.StatusOK,
			wantBody:   inference.DummyText,
		},
		{
			name:       "explicit model",
			filename:   "CLIP.WAV",
			fields:     map[string]string{"model_name": "dummy", "model_version": "v1"},
			wantStatus: http.StatusOK,
			wantBody:   inference.DummyText,
		},
		{
			name:       "rejects non wav",
			filename:   "clip.mp4",
			wantStatus: http.StatusBadRequest,
			wantBody:   "only .wav files are accepted",
		},
		{
			name:       "missing file",
			wantStatus: http.StatusBadRequest,
			wantBody:   "file is required",
		},
		{
			name:       "unknown model",
			filename:   "clip.wav",
			fields:     map[string]string{"model_name": "large"},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown model large:v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/infer", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			newTestRouter().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestInfer_WireFormat(t *testing.T) {
	body, contentType := multipartBody(t, "clip.wav", nil)
	req := httptest.NewRequest(http.MethodPost, "/infer", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Text   string `json:"text"`
		Chunks []struct {
			Timestamp []float64 `json:"timestamp"`
			Text      string    `json:"text"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Chunks, 1)
	assert.Equal(t, []float64{0, 1}, payload.Chunks[0].Timestamp)
}

func TestClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	client := inference.NewClient(srv.URL, time.Second, logger.Discard())
	tr, err := inference.NewRemoteModel(client, "dummy", "v1").Transcribe(context.Background(), audio)
	require.NoError(t, err)

	assert.Equal(t, inference.DummyText, tr.Text)
	require.Len(t, tr.Chunks, 1)
	assert.Equal(t, 1.0, tr.Chunks[0].End)
}
