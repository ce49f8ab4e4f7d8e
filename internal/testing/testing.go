// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
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

// FakeTMDB is an in-process stand-in for the TMDB v3 API.
//
// It answers /search/tv with a single-result page for any query and /tv/{id}
// with a detail payload for the ids in Series; unknown ids get a TMDB-style 404.
type FakeTMDB struct {
	*httptest.Server
	Series map[int]string
	calls  atomic.Int32
}

// NewFakeTMDB starts a [FakeTMDB] that knows the given id → name pairs and
// closes it when the test ends.
func NewFakeTMDB(t *testing.T, series map[int]string) *FakeTMDB {
	t.Helper()
	f := &FakeTMDB{Series: series}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// Calls returns how many requests the fake has served.
func (f *FakeTMDB) Calls() int { return int(f.calls.Load()) }

func (f *FakeTMDB) serve(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/search/tv" {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		fmt.Fprintf(w, `{"page":%s,"total_pages":1,"total_results":1,"results":[{"id":1,"name":%q}]}`,
			page, r.URL.Query().Get("query"))
		return
	}

	var id int
	if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/tv/"), "%d", &id); err == nil {
		if name, ok := f.Series[id]; ok {
			fmt.Fprintf(w, `{"id":%d,"name":%q,"poster_path":"/%d.jpg","number_of_seasons":1}`, id, name, id)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
}
