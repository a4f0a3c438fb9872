package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/run"
	"trainer/pkg/backoff"
)

// StorageKind identifies the data bank in artifact pointers.
const StorageKind = "data-bank"

// Uploader makes a run's artifact directory durable and returns the pointer
// to record in the state store.
type Uploader interface {
	Upload(ctx context.Context, runID, dir string) (run.ArtifactPointer, error)
}

// HTTPUploader archives a directory and posts it to the data bank API.
// Server errors and transport failures are retried with exponential backoff;
// 4xx responses short-circuit since retrying them cannot succeed.
type HTTPUploader struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewHTTPUploader creates an uploader posting to url. apiKey may be empty
// when the endpoint is unauthenticated.
func NewHTTPUploader(url, apiKey string) *HTTPUploader {
	return &HTTPUploader{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		maxRetries: 3,
		logger:     slog.With("component", "uploader"),
	}
}

// uploadResponse is the subset of the data bank's reply we need.
type uploadResponse struct {
	FileID string `json:"file_id"`
}

// Upload archives dir into a temporary tar.gz and posts it. The returned
// pointer's ExternalID is the data bank file ID.
func (u *HTTPUploader) Upload(ctx context.Context, runID, dir string) (run.ArtifactPointer, error) {
	if u.url == "" {
		return run.ArtifactPointer{}, apperrors.Validation("upload_url", "must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return run.ArtifactPointer{}, apperrors.Upload("upload.stat", fmt.Errorf("artifact directory not found: %s", dir))
	}

	tmp, err := os.CreateTemp("", "artifact_*.tar.gz")
	if err != nil {
		return run.ArtifactPointer{}, apperrors.Upload("upload.tempfile", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			u.logger.Warn("Failed to remove temp archive", "path", tmpPath, "error", err)
		}
	}()

	if err := archiveDir(dir, tmpPath, runID); err != nil {
		return run.ArtifactPointer{}, apperrors.Upload("upload.archive", err)
	}

	fileID, err := u.postWithRetry(ctx, tmpPath, runID)
	if err != nil {
		return run.ArtifactPointer{}, err
	}
	return run.ArtifactPointer{StorageKind: StorageKind, ExternalID: fileID}, nil
}

func (u *HTTPUploader) postWithRetry(ctx context.Context, archivePath, runID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperrors.Upload("upload.post", err)
		}
		if attempt > 0 {
			wait := backoff.Exponential(attempt, nil)
			u.logger.Debug("Retrying upload", "attempt", attempt, "backoff", wait, "runId", runID)
			select {
			case <-ctx.Done():
				return "", apperrors.Upload("upload.post", ctx.Err())
			case <-time.After(wait):
			}
		}

		fileID, err := u.post(ctx, archivePath, runID)
		if err == nil {
			if attempt > 0 {
				u.logger.Info("Upload succeeded after retry", "attempt", attempt, "runId", runID)
			}
			return fileID, nil
		}
		lastErr = err

		if isClientError(err) {
			return "", apperrors.Upload("upload.post", err)
		}
		u.logger.Warn("Upload failed", "attempt", attempt, "runId", runID, "error", err)
	}
	return "", apperrors.Upload("upload.post", fmt.Errorf("upload failed after %d retries: %w", u.maxRetries, lastErr))
}

func (u *HTTPUploader) post(ctx context.Context, archivePath, runID string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(archivePath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to buffer archive: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Request-ID", runID)
	if u.apiKey != "" {
		req.Header.Set("X-API-Key", u.apiKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &uploadHTTPError{statusCode: resp.StatusCode, message: string(respBody)}
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.FileID == "" {
		return "", fmt.Errorf("missing file_id in response")
	}
	return parsed.FileID, nil
}

type uploadHTTPError struct {
	statusCode int
	message    string
}

func (e *uploadHTTPError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.statusCode, e.message)
}

// isClientError reports whether err is a 4xx response, which no retry can fix.
func isClientError(err error) bool {
	var httpErr *uploadHTTPError
	return errors.As(err, &httpErr) && httpErr.statusCode >= 400 && httpErr.statusCode < 500
}

var _ Uploader = (*HTTPUploader)(nil)
