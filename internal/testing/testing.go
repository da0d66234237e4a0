// package testing holds generic doubles and filesystem helpers shared
// by tests across packages. Provider and engine doubles stay
// package-local next to the tests that configure them.
package testing

import (
	"errors"
	"net/http"
	"os"
	"testing"
)

// FWriter fails every Write. Exercises the error paths of output
// helpers that format into an io.Writer.
type FWriter struct{}

func (f *FWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper returns a canned response (or error) for any
// request, bypassing the network inside an http.Client.
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(response *http.Response, err error) *MockRoundTripper {
	return &MockRoundTripper{response: response, err: err}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser is a response body whose Read always fails, for testing
// body-decode error handling.
type FCloser struct{}

func (f *FCloser) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error { return nil }

// MustGetwd returns the working directory or fails the test.
func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	return wd
}

// MustChdir changes into dir or fails the test. Pair with a deferred
// call back to MustGetwd's result.
func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
}

// AssertFileExists flags the test if path does not exist.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("file does not exist: %s", path)
	}
}

// MustReadFile returns the file contents or fails the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(content)
}
