package queue

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestImagePayloadUnmarshalBase64(t *testing.T) {
	raw := `{"filename": "scan.png", "data": "aGVsbG8="}`
	var p ImagePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal base64 payload: %v", err)
	}
	if p.Filename != "scan.png" {
		t.Fatalf("filename = %q", p.Filename)
	}
	if !bytes.Equal(p.Data, []byte("hello")) {
		t.Fatalf("data = %q, want %q", p.Data, "hello")
	}
}

func TestImagePayloadUnmarshalBufferObject(t *testing.T) {
	raw := `{"filename": "scan.png", "data": {"type": "Buffer", "data": [104, 105]}}`
	var p ImagePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal Buffer payload: %v", err)
	}
	if !bytes.Equal(p.Data, []byte("hi")) {
		t.Fatalf("data = %q, want %q", p.Data, "hi")
	}
}

func TestImagePayloadUnmarshalRejectsBadData(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "invalid base64", raw: `{"filename": "a.png", "data": "!!not-base64!!"}`},
		{name: "wrong buffer type", raw: `{"filename": "a.png", "data": {"type": "Blob", "data": [1]}}`},
		{name: "buffer without data array", raw: `{"filename": "a.png", "data": {"type": "Buffer"}}`},
		{name: "numeric data", raw: `{"filename": "a.png", "data": 42}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p ImagePayload
			if err := json.Unmarshal([]byte(tc.raw), &p); err == nil {
				t.Fatalf("expected error for %s", tc.raw)
			}
		})
	}
}

func TestImagePayloadUnmarshalNilData(t *testing.T) {
	var p ImagePayload
	if err := json.Unmarshal([]byte(`{"filename": "a.png"}`), &p); err != nil {
		t.Fatalf("unmarshal payload without data: %v", err)
	}
	if p.Data != nil {
		t.Fatalf("data = %v, want nil", p.Data)
	}
}

func TestJobDataUnmarshal(t *testing.T) {
	raw := `{
		"jobId": "job-42",
		"userId": "user-7",
		"targetName": "张伟",
		"similarityThreshold": 92,
		"nameMatchThreshold": 85,
		"images": [{"filename": "a.png", "data": "aGk="}],
		"metadata": {"source": "upload-api"}
	}`
	var job JobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.JobID != "job-42" || job.UserID != "user-7" || job.TargetName != "张伟" {
		t.Fatalf("job identity = %+v", job)
	}
	if job.SimilarityThreshold != 92 || job.NameMatchThreshold != 85 {
		t.Fatalf("thresholds = %d/%d", job.SimilarityThreshold, job.NameMatchThreshold)
	}
	if len(job.Images) != 1 || !bytes.Equal(job.Images[0].Data, []byte("hi")) {
		t.Fatalf("images = %+v", job.Images)
	}
}

func TestJobDataValidateThresholdBounds(t *testing.T) {
	testCases := []struct {
		name       string
		similarity int
		nameMatch  int
		wantErr    bool
	}{
		{name: "zero means defaults", similarity: 0, nameMatch: 0, wantErr: false},
		{name: "in-range overrides", similarity: 92, nameMatch: 85, wantErr: false},
		{name: "bounds inclusive", similarity: 80, nameMatch: 60, wantErr: false},
		{name: "similarity below range", similarity: 79, nameMatch: 0, wantErr: true},
		{name: "similarity above range", similarity: 101, nameMatch: 0, wantErr: true},
		{name: "name match far below range", similarity: 0, nameMatch: 5, wantErr: true},
		{name: "name match just below range", similarity: 0, nameMatch: 59, wantErr: true},
		{name: "name match above range", similarity: 0, nameMatch: 101, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job := JobData{
				JobID:               "job-1",
				TargetName:          "张伟",
				SimilarityThreshold: tc.similarity,
				NameMatchThreshold:  tc.nameMatch,
			}
			err := job.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("Validate accepted thresholds %d/%d", tc.similarity, tc.nameMatch)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestUniqueFilenames(t *testing.T) {
	images := []ImagePayload{
		{Filename: "scan.png"},
		{Filename: "scan.png"},
		{Filename: "scan.png"},
		{Filename: "other.jpg"},
		{Filename: ""},
	}
	got := uniqueFilenames(images)
	want := []string{"scan.png", "scan_1.png", "scan_2.png", "other.jpg", "image_5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniqueFilenames = %v, want %v", got, want)
	}
}
