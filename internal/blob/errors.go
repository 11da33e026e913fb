package blob

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// TransportError is returned when the metadata service could not be reached or answered with a
// non-success status. StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Body       string
	URL        string
	cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.cause)
	}
	if e.Body == "" {
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// Cause lets errors.Cause from github.com/pkg/errors see through the transport error.
func (e *TransportError) Cause() error {
	if e.cause == nil {
		return e
	}
	return e.cause
}

func NewTransportError(url string, statusCode int, body string, cause error) *TransportError {
	return &TransportError{StatusCode: statusCode, Body: body, URL: url, cause: cause}
}

// IncompatibleModelError means the revision exists but holds no output the caller can read.
type IncompatibleModelError struct {
	ModelID           int64
	RevisionID        int64
	Format            string
	SupportedVersions []int
}

func (e *IncompatibleModelError) Error() string {
	versions := "any version"
	if len(e.SupportedVersions) > 0 {
		versions = "versions [" + strings.Join(lo.Map(e.SupportedVersions, func(v int, _ int) string {
			return fmt.Sprint(v)
		}), ", ") + "]"
	}
	return fmt.Sprintf("model %d revision %d has no %s output in %s, the model must be reconverted",
		e.ModelID, e.RevisionID, e.Format, versions)
}
