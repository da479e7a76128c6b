package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
)

// DefaultTimeout bounds a whole inference round trip.
const DefaultTimeout = 300 * time.Second

// maxErrorBody limits how much of a failed response ends up in the error.
const maxErrorBody = 512

// Client calls a remote inference service. It is safe for concurrent use
// and never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Transcribe uploads the audio file and decodes the returned transcription.
// Every failure is reported as a *domain.InferenceError.
func (c *Client) Transcribe(ctx context.Context, audioPath, modelName, modelVersion string) (*Transcription, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, &domain.InferenceError{Op: "open audio", Err: err}
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeForm(form, file, filepath.Base(audioPath), modelName, modelVersion))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", body)
	if err != nil {
		body.Close()
		return nil, &domain.InferenceError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		body.Close()
		return nil, &domain.InferenceError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.InferenceError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &domain.InferenceError{
			Op:  "request",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet),
		}
	}

	t, err := Decode(data)
	if err != nil {
		return nil, &domain.InferenceError{Op: "decode response", Err: err}
	}

	c.logger.Info("Inference completed",
		slog.String("model", modelName),
		slog.Int("chunks", len(t.Chunks)),
		slog.Duration("latency", time.Since(start)),
	)
	return t, nil
}

func writeForm(form *multipart.Writer, file io.Reader, filename, modelName, modelVersion string) error {
	if err := form.WriteField("model_name", modelName); err != nil {
		return err
	}
	if err := form.WriteField("model_version", modelVersion); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

// Health checks that the inference service answers.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
