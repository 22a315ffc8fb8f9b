// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// ErrWriteFailed is returned by the failing writers.
var ErrWriteFailed = errors.New("write failed")

// BrokenWriter rejects every write.
type BrokenWriter struct{}

func (BrokenWriter) Write(p []byte) (int, error) { return 0, ErrWriteFailed }

// CappedWriter forwards the first Allowed writes to Target and fails after that.
type CappedWriter struct {
	Allowed int
	Target  io.Writer
	writes  int
}

func (w *CappedWriter) Write(p []byte) (int, error) {
	if w.writes >= w.Allowed {
		return 0, ErrWriteFailed
	}
	w.writes++
	return w.Target.Write(p)
}

// StubTransport answers every request with a fixed response or error and counts calls.
type StubTransport struct {
	Status int
	Body   io.ReadCloser
	Err    error
	Calls  int
}

func (s *StubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return &http.Response{StatusCode: s.Status, Body: s.Body, Header: http.Header{}, Request: req}, nil
}

// ErrReadFailed is returned by [BrokenBody].
var ErrReadFailed = errors.New("read failed")

// BrokenBody is a response body whose reads always fail.
type BrokenBody struct{}

func (BrokenBody) Read(p []byte) (int, error) { return 0, ErrReadFailed }

func (BrokenBody) Close() error { return nil }

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

// DiscardWriter accepts and drops every write, for quiet loggers in tests.
type DiscardWriter struct{}

func (DiscardWriter) Write(p []byte) (int, error) { return len(p), nil }
