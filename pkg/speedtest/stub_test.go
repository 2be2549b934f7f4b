package speedtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubEnv is a scripted environment lookup.
type stubEnv struct {
	info EnvironmentInfo
	err  error
}

func (s stubEnv) Lookup(ctx context.Context) (EnvironmentInfo, error) {
	return s.info, s.err
}

// stubTransport scripts probe outcomes. Head pops durations off a fixed
// list; Stream dispatches to the download or upload function depending on
// whether a request body is present.
type stubTransport struct {
	mu      sync.Mutex
	heads   []time.Duration
	headIdx int
	headErr error

	download func(ctx context.Context, url string, opts StreamOptions) (StreamResult, error)
	upload   func(ctx context.Context, url string, opts StreamOptions) (StreamResult, error)
}

func (s *stubTransport) Head(ctx context.Context, url string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, netErr(url, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headErr != nil {
		return 0, s.headErr
	}
	if s.headIdx >= len(s.heads) {
		return 0, netErr(url, context.DeadlineExceeded)
	}
	d := s.heads[s.headIdx]
	s.headIdx++
	return d, nil
}

func (s *stubTransport) Stream(ctx context.Context, url string, opts StreamOptions) (StreamResult, error) {
	if err := ctx.Err(); err != nil {
		return StreamResult{}, netErr(url, err)
	}
	if opts.Body != nil {
		if s.upload == nil {
			return StreamResult{}, netErr(url, context.DeadlineExceeded)
		}
		return s.upload(ctx, url, opts)
	}
	if s.download == nil {
		return StreamResult{}, netErr(url, context.DeadlineExceeded)
	}
	return s.download(ctx, url, opts)
}

// deliverStream simulates a transfer: progress callbacks in chunks, then a
// fixed result.
func deliverStream(bytes int64, elapsed time.Duration) func(context.Context, string, StreamOptions) (StreamResult, error) {
	return func(ctx context.Context, url string, opts StreamOptions) (StreamResult, error) {
		const chunks = 4
		for i := int64(1); i <= chunks; i++ {
			if opts.Progress != nil {
				opts.Progress(bytes * i / chunks)
			}
		}
		return StreamResult{Bytes: bytes, Elapsed: elapsed}, nil
	}
}

func failStream(err error) func(context.Context, string, StreamOptions) (StreamResult, error) {
	return func(ctx context.Context, url string, opts StreamOptions) (StreamResult, error) {
		return StreamResult{}, err
	}
}

// blockStream parks until the context is cancelled or release is closed.
func blockStream(release <-chan struct{}) func(context.Context, string, StreamOptions) (StreamResult, error) {
	return func(ctx context.Context, url string, opts StreamOptions) (StreamResult, error) {
		select {
		case <-ctx.Done():
			return StreamResult{}, netErr(url, ctx.Err())
		case <-release:
			return StreamResult{Bytes: 1, Elapsed: time.Second}, nil
		}
	}
}

// memStore is an in-memory kv.Store for pipeline and history tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// happyTransport reproduces the standard happy-path scenario: pings
// 20/22/21/23/24 ms, 25 MB downloaded in 2.0 s, 5 MB uploaded in 1.0 s.
func happyTransport() *stubTransport {
	return &stubTransport{
		heads: []time.Duration{
			20 * time.Millisecond,
			22 * time.Millisecond,
			21 * time.Millisecond,
			23 * time.Millisecond,
			24 * time.Millisecond,
		},
		download: deliverStream(25_000_000, 2*time.Second),
		upload:   deliverStream(64, time.Second),
	}
}

var testEndpoints = Endpoints{
	PingURL:     "https://test.invalid/trace",
	DownloadURL: "https://test.invalid/down",
	UploadURL:   "https://test.invalid/up",
	EnvURL:      "https://test.invalid/env",
}

// runSession starts a session and collects events until a terminal one.
func runSession(t *testing.T, c *Client) (*Result, []Event) {
	t.Helper()

	ch, unsub := c.Events(256)
	defer unsub()
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(10 * time.Second)
	var events []Event
	for {
		select {
		case e := <-ch:
			events = append(events, e)
			switch e.Type {
			case EventCompleted:
				return e.Result, events
			case EventCancelled:
				return nil, events
			}
		case <-deadline:
			t.Fatal("session did not finish in time")
		}
	}
}
