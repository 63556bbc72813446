// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/registry"
	"github.com/desertthunder/nowplaying/internal/services"
)

// FakeProvider is a test double for [services.Provider] returning a settable snapshot.
type FakeProvider struct {
	mu    sync.Mutex
	snap  models.Snapshot
	err   error
	calls int
}

// NewFakeProvider returns a provider that reports snap.
func NewFakeProvider(snap models.Snapshot) *FakeProvider {
	return &FakeProvider{snap: snap}
}

// Set replaces the reported snapshot.
func (f *FakeProvider) Set(snap models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

// Fail makes the next calls return err; nil restores normal answers.
func (f *FakeProvider) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls reports how many times CurrentlyPlaying ran.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeProvider) CurrentlyPlaying(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snap
	return &snap, nil
}

func (f *FakeProvider) Name() string { return "fake" }

// FakeLyrics is a test double for [services.LyricsProvider].
type FakeLyrics struct {
	Raw   *models.RawLyrics
	Err   error
	Calls int
}

func (f *FakeLyrics) Lyrics(ctx context.Context, title, artist string) (*models.RawLyrics, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Raw == nil {
		return &models.RawLyrics{}, nil
	}
	return f.Raw, nil
}

// FakeSearcher is a test double for [services.TrackSearcher].
type FakeSearcher struct {
	Track *services.YouTubeTrack
	Err   error
	Calls int
}

func (f *FakeSearcher) SearchTrack(ctx context.Context, title, artist string) (*services.YouTubeTrack, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Track, nil
}

// RegistryAPI serves [services.SessionAPI] straight from a [registry.Registry], skipping HTTP.
type RegistryAPI struct {
	Registry *registry.Registry
}

func (a *RegistryAPI) Create(ctx context.Context) (*models.CreateResponse, error) {
	s, err := a.Registry.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &models.CreateResponse{SessionID: s.ID, Code: s.Code}, nil
}

func (a *RegistryAPI) Join(ctx context.Context, key, deviceID, deviceName string, progressMs int64) (*models.SessionState, error) {
	s, err := a.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := a.Registry.AddDevice(ctx, s.ID, deviceID, deviceName, progressMs); err != nil {
		return nil, err
	}
	return a.Registry.State(ctx, models.IDKey(s.ID))
}

func (a *RegistryAPI) Update(ctx context.Context, key, deviceID string, progressMs int64, playing *bool) error {
	s, err := a.resolve(ctx, key)
	if err != nil {
		return err
	}
	return a.Registry.UpdateProgress(ctx, s.ID, deviceID, progressMs, playing)
}

func (a *RegistryAPI) Get(ctx context.Context, key string) (*models.SessionState, error) {
	k, err := models.ParseLookupKey(key)
	if err != nil {
		return nil, err
	}
	return a.Registry.State(ctx, k)
}

func (a *RegistryAPI) Leave(ctx context.Context, key, deviceID string) error {
	s, err := a.resolve(ctx, key)
	if err != nil {
		return err
	}
	return a.Registry.RemoveDevice(ctx, s.ID, deviceID)
}

func (a *RegistryAPI) resolve(ctx context.Context, key string) (*models.Session, error) {
	k, err := models.ParseLookupKey(key)
	if err != nil {
		return nil, err
	}
	return a.Registry.Resolve(ctx, k)
}

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

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Eventually polls cond until it holds or the wait runs out.
func Eventually(t *testing.T, wait time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", wait, msg)
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

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
