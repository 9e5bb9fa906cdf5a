package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewRecognitionFailedError("job-1", "img-1", cause)

	msg := err.Error()
	if !strings.Contains(msg, "RECOGNITION_FAILED") {
		t.Errorf("message %q missing code", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("message %q missing cause", msg)
	}

	bare := NewMalformedSpanError("img-2", 3)
	if strings.Contains(bare.Error(), "caused by") {
		t.Errorf("causeless error mentions a cause: %q", bare.Error())
	}
}

func TestUnwrapAndIsCode(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewArchiveFailedError("job-1", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if !IsCode(err, ErrorArchiveFailed) {
		t.Error("IsCode should report the error's own code")
	}
	if IsCode(err, ErrorDecodeFailed) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(cause, ErrorArchiveFailed) {
		t.Error("IsCode matched a plain error")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if !IsCode(wrapped, ErrorArchiveFailed) {
		t.Error("IsCode should see through fmt.Errorf wrapping")
	}
}

func TestToMap(t *testing.T) {
	err := NewDecodeFailedError("img-9", "scan.png", fmt.Errorf("bad header"))
	m := err.ToMap()

	if m["error_code"] != "DECODE_FAILED" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["image_id"] != "img-9" {
		t.Errorf("image_id = %v", m["image_id"])
	}
	if m["filename"] != "scan.png" {
		t.Errorf("filename detail = %v", m["filename"])
	}
	if m["cause"] != "bad header" {
		t.Errorf("cause = %v", m["cause"])
	}
}
