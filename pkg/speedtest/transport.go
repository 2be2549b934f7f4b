package speedtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	logx "github.com/frkrmn/speed-test/pkg/logx"
)

// StreamOptions controls a single streaming probe.
type StreamOptions struct {
	// Body, when non-nil, is uploaded as the request body.
	Body []byte
	// Progress, when non-nil, receives a running byte count: request-body
	// bytes written for upload probes, response-body bytes read otherwise.
	Progress func(n int64)
}

// StreamResult reports what a streaming probe actually observed.
type StreamResult struct {
	// Bytes is the total response-body octets delivered by the body-reading
	// layer. No adjustment is made for compression, framing or TLS overhead.
	Bytes int64
	// Elapsed is the monotonic time from request issuance to stream end
	// (for uploads: to the server's acknowledgement of completion).
	Elapsed time.Duration
}

// Transport issues a single HTTP request per call against a named endpoint.
//
// Contract: Transport never retries, and every failure (including early
// stream termination) is reported as a *NetworkError.
type Transport interface {
	// Head retrieves response headers only, with caching suppressed, and
	// returns the elapsed monotonic time from issue to header arrival.
	Head(ctx context.Context, url string) (time.Duration, error)
	// Stream issues a request (optionally uploading opts.Body), consumes the
	// response body in chunks, and reports running byte counts through
	// opts.Progress.
	Stream(ctx context.Context, url string, opts StreamOptions) (StreamResult, error)
}

const streamChunkSize = 32 * 1024

// HTTPTransport is the production Transport on net/http.
//
// It owns a dedicated http.Transport so probe connections can be isolated
// from anything else in the process and closed promptly after a session.
type HTTPTransport struct {
	client *http.Client
	inner  *http.Transport
	clock  Clock
	log    logx.Logger
}

// NewHTTPTransport builds a probe transport.
//
// Keep-alives are disabled: each probe should pay connection setup the same
// way, and idle sockets must not linger between sessions.
func NewHTTPTransport(log logx.Logger) *HTTPTransport {
	if log.IsZero() {
		log = logx.Nop()
	}

	d := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: -1}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   0,
		IdleConnTimeout:       2 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		DisableCompression:    true,
	}

	return &HTTPTransport{
		client: &http.Client{Transport: tr},
		inner:  tr,
		clock:  systemClock{},
		log:    log,
	}
}

// CloseIdleConnections releases any sockets left from the last probe.
func (t *HTTPTransport) CloseIdleConnections() {
	if t.inner != nil {
		t.inner.CloseIdleConnections()
	}
}

func (t *HTTPTransport) Head(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, netErr(url, err)
	}
	suppressCaching(req)

	start := t.clock.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, netErr(url, err)
	}
	// Headers have arrived once Do returns; stop the clock before draining.
	elapsed := t.clock.Now().Sub(start)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, netErr(url, fmt.Errorf("unexpected status %s", resp.Status))
	}
	return elapsed, nil
}

func (t *HTTPTransport) Stream(ctx context.Context, url string, opts StreamOptions) (StreamResult, error) {
	method := http.MethodGet
	var body io.Reader
	if opts.Body != nil {
		method = http.MethodPost
		br := &countingReader{r: bytes.NewReader(opts.Body), progress: opts.Progress}
		body = br
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return StreamResult{}, netErr(url, err)
	}
	suppressCaching(req)
	if opts.Body != nil {
		req.ContentLength = int64(len(opts.Body))
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	start := t.clock.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return StreamResult{}, netErr(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StreamResult{}, netErr(url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var total int64
	buf := make([]byte, streamChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			total += int64(n)
			if opts.Progress != nil && opts.Body == nil {
				opts.Progress(total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return StreamResult{}, netErr(url, rerr)
		}
	}
	elapsed := t.clock.Now().Sub(start)

	return StreamResult{Bytes: total, Elapsed: elapsed}, nil
}

func suppressCaching(req *http.Request) {
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
}

// countingReader reports upload progress as the HTTP stack drains the
// request body.
type countingReader struct {
	r        io.Reader
	progress func(int64)
	sent     int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent)
		}
	}
	return n, err
}
