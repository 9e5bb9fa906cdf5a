/**
 * Artifact client for the Screening Worker
 *
 * Uploads result archives to the artifact service so submitters can download
 * the partitioned zip after the job completes.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ArtifactClient handles communication with the artifact service
type ArtifactClient struct {
	baseURL    string
	httpClient *http.Client
}

// ArtifactUploadResponse represents the response from uploading an artifact
type ArtifactUploadResponse struct {
	Success  bool `json:"success"`
	Artifact struct {
		ID          string `json:"id"`
		Filename    string `json:"filename"`
		FileSize    int64  `json:"file_size"`
		MimeType    string `json:"mime_type"`
		DownloadURL string `json:"download_url"`
		CreatedAt   string `json:"created_at"`
	} `json:"artifact,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewArtifactClient creates a new artifact client
func NewArtifactClient(baseURL string) *ArtifactClient {
	return &ArtifactClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// HealthCheck verifies the artifact service is available
func (c *ArtifactClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("artifact service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("artifact service health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// UploadArchive uploads a result archive and returns the stored artifact
// metadata including its download URL.
func (c *ArtifactClient) UploadArchive(ctx context.Context, jobID string, archive []byte) (*ArtifactUploadResponse, error) {
	if len(archive) == 0 {
		return nil, fmt.Errorf("archive is required: received empty buffer")
	}
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fmt.Sprintf("results_%s.zip", jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(archive); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	fields := map[string]string{
		"source_service": "screening-worker",
		"source_id":      jobID,
		"mime_type":      "application/zip",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/artifacts/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact upload failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("artifact upload returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp ArtifactUploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if !uploadResp.Success {
		return nil, fmt.Errorf("artifact upload rejected: %s", uploadResp.Error)
	}

	return &uploadResp, nil
}
