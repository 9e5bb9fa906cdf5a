/**
 * Screening job payload
 *
 * Jobs are submitted by the upload API as JSON. Image buffers arrive either
 * as base64 strings (current format) or as Node.js Buffer objects (legacy
 * submitters); both are accepted.
 */

package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ImagePayload is one uploaded image inside a screening job.
type ImagePayload struct {
	Filename string `json:"filename"`
	Data     []byte
}

// UnmarshalJSON implements custom JSON unmarshaling to handle both buffer
// serializations.
func (p *ImagePayload) UnmarshalJSON(data []byte) error {
	aux := struct {
		Filename string      `json:"filename"`
		Data     interface{} `json:"data"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal image payload: %w", err)
	}
	p.Filename = aux.Filename

	switch v := aux.Data.(type) {
	case nil:
		p.Data = nil

	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 image data: %w", err)
		}
		p.Data = decoded

	case map[string]interface{}:
		// Node.js Buffer object format (legacy compatibility)
		bufferType, _ := v["type"].(string)
		if bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.Data = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.Data[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("image data must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// JobData represents one screening job from the queue.
type JobData struct {
	JobID      string `json:"jobId"`
	UserID     string `json:"userId"`
	TargetName string `json:"targetName"`

	// Optional threshold overrides; zero keeps the worker defaults.
	SimilarityThreshold int `json:"similarityThreshold,omitempty"`
	NameMatchThreshold  int `json:"nameMatchThreshold,omitempty"`

	Images   []ImagePayload         `json:"images"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate bounds the per-job threshold overrides. Payloads cross the trust
// boundary from the submitting API, so out-of-range values are rejected
// instead of flowing into matching: a low name threshold would silently turn
// weak candidates into matches. Zero means "use the worker default".
func (j *JobData) Validate() error {
	if t := j.SimilarityThreshold; t != 0 && (t < 80 || t > 100) {
		return fmt.Errorf("similarityThreshold must be between 80 and 100, got %d", t)
	}
	if t := j.NameMatchThreshold; t != 0 && (t < 60 || t > 100) {
		return fmt.Errorf("nameMatchThreshold must be between 60 and 100, got %d", t)
	}
	return nil
}

// uniqueFilenames disambiguates repeated upload names with _N suffixes so
// per-image reporting stays unambiguous.
func uniqueFilenames(images []ImagePayload) []string {
	seen := make(map[string]int, len(images))
	names := make([]string, len(images))
	for i, img := range images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image_%d", i+1)
		}
		if count := seen[name]; count > 0 {
			ext := filepath.Ext(name)
			base := strings.TrimSuffix(name, ext)
			names[i] = fmt.Sprintf("%s_%d%s", base, count, ext)
		} else {
			names[i] = name
		}
		seen[name]++
	}
	return names
}
