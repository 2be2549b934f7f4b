package speedtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	logx "github.com/frkrmn/speed-test/pkg/logx"
)

// Progress layout across phases. Latency claims [0,30] in fixed shares per
// probe, download [30,70], upload [70,95]; 100 is reserved for finished.
const (
	latencyProgressShare = 6
	downloadProgressLo   = 30
	downloadProgressHi   = 70
	uploadProgressLo     = 70
	uploadProgressHi     = 95
)

// lastCapturedAt enforces that capture times never run backwards within a
// process, even if the wall clock is adjusted between sessions. Stamps are
// strictly increasing so history keys cannot collide.
var lastCapturedAt atomic.Int64

func stampCapturedAt(clk Clock) int64 {
	now := clk.Now().UnixMilli()
	for {
		last := lastCapturedAt.Load()
		if now <= last {
			now = last + 1
		}
		if lastCapturedAt.CompareAndSwap(last, now) {
			return now
		}
	}
}

const displayTimeLayout = "Jan 2, 2006 15:04:05"

// pipeline drives one measurement session. It is built per run and owns all
// in-flight state; nothing escapes except the final Result and events.
type pipeline struct {
	runID     string
	endpoints Endpoints

	clock     Clock
	transport Transport
	env       EnvironmentLookup
	history   *History
	log       logx.Logger

	emit    func(Event)
	limiter *rate.Limiter

	phase    Phase
	progress int
}

// run executes the four-phase sequence and returns the completed record.
//
// A transport failure in phases 1-3 produces the degraded fallback record
// instead of an error; the only error return is the context's, on
// cancellation (no record is produced or persisted then).
func (p *pipeline) run(ctx context.Context) (*Result, error) {
	p.setPhase(PhaseEnvironment)
	p.setProgress(0, "", true)

	label, addr := p.lookupEnvironment(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setPhase(PhaseLatency)
	pingMs, jitterMs, err := p.measureLatency(ctx)
	if err != nil {
		return p.completeOrCancel(ctx, err)
	}

	p.setPhase(PhaseDownload)
	downloadMbps, err := p.measureDownload(ctx)
	if err != nil {
		return p.completeOrCancel(ctx, err)
	}

	p.setPhase(PhaseUpload)
	uploadMbps, err := p.measureUpload(ctx)
	if err != nil {
		return p.completeOrCancel(ctx, err)
	}

	r := Result{
		PingMs:        pingMs,
		JitterMs:      jitterMs,
		DownloadMbps:  downloadMbps,
		UploadMbps:    uploadMbps,
		ServerLabel:   label,
		ClientAddress: addr,
	}
	return p.complete(ctx, r), nil
}

// completeOrCancel resolves a failed probe: cancellation wins, anything
// else takes the degraded completion path so the UI still gets a number.
func (p *pipeline) completeOrCancel(ctx context.Context, cause error) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.log.Warn("probe failed; completing with fallback record",
		logx.String("run_id", p.runID), logx.String("phase", string(p.phase)), logx.Err(cause))
	return p.complete(ctx, degradedResult()), nil
}

// complete stamps, persists and announces the record.
func (p *pipeline) complete(ctx context.Context, r Result) *Result {
	r.CapturedAt = stampCapturedAt(p.clock)
	r.DisplayTimestamp = time.UnixMilli(r.CapturedAt).Local().Format(displayTimeLayout)

	// History gets its own copy; the record is immutable once handed over.
	// Result holds no pointers, so plain assignment is a deep copy.
	if err := p.history.Append(ctx, r); err != nil {
		p.log.Warn("history append failed; result still returned",
			logx.String("run_id", p.runID), logx.Err(err))
	}

	p.setProgress(100, "", true)
	p.setPhase(PhaseFinished)
	return &r
}

// lookupEnvironment runs phase 0. It never fails the session.
func (p *pipeline) lookupEnvironment(ctx context.Context) (label, addr string) {
	info, err := p.env.Lookup(ctx)
	if err != nil {
		p.log.Warn("environment lookup failed; using fallback label",
			logx.String("run_id", p.runID), logx.Err(err))
		return fallbackServerLabel, ""
	}
	label = info.Label()
	if label == "" {
		label = fallbackServerLabel
	}
	return label, info.IP
}

// measureLatency runs the five sequential head probes and reduces them.
// The probes are sequential on purpose: parallel probes would contend for
// the same socket/bandwidth budget and not measure idle-network RTT.
func (p *pipeline) measureLatency(ctx context.Context) (pingMs, jitterMs int, err error) {
	samples := make([]float64, 0, latencySampleCount)
	for i := 0; i < latencySampleCount; i++ {
		elapsed, err := p.transport.Head(ctx, p.endpoints.PingURL)
		if err != nil {
			return 0, 0, err
		}
		samples = append(samples, float64(elapsed)/float64(time.Millisecond))
		p.setProgress((i+1)*latencyProgressShare, "", false)
	}

	mean := stat.Mean(samples, nil)
	spread := floats.Max(samples) - floats.Min(samples)
	// Round-half-away-from-zero, the same rule for both fields.
	return int(math.Round(mean)), int(math.Round(spread)), nil
}

func (p *pipeline) measureDownload(ctx context.Context) (float64, error) {
	target := withBytesParam(p.endpoints.DownloadURL, downloadSizeBytes)
	res, err := p.transport.Stream(ctx, target, StreamOptions{
		Progress: func(n int64) {
			p.setProgress(
				scaleProgress(n, downloadSizeBytes, downloadProgressLo, downloadProgressHi),
				transferStatus(n, downloadSizeBytes), false)
		},
	})
	if err != nil {
		return 0, err
	}
	// The observed byte count (not the requested size) goes in the
	// numerator, so early server truncation does not inflate the score.
	return throughputMbps(res.Bytes, res.Elapsed), nil
}

func (p *pipeline) measureUpload(ctx context.Context) (float64, error) {
	// Cryptographically random payload: incompressible, so transparent
	// transport compression cannot shrink what we think we sent.
	body := make([]byte, uploadSizeBytes)
	if _, err := rand.Read(body); err != nil {
		return 0, err
	}

	res, err := p.transport.Stream(ctx, p.endpoints.UploadURL, StreamOptions{
		Body: body,
		Progress: func(n int64) {
			p.setProgress(
				scaleProgress(n, uploadSizeBytes, uploadProgressLo, uploadProgressHi),
				transferStatus(n, uploadSizeBytes), false)
		},
	})
	if err != nil {
		return 0, err
	}
	return throughputMbps(uploadSizeBytes, res.Elapsed), nil
}

func (p *pipeline) setPhase(ph Phase) {
	p.phase = ph
	p.emit(Event{Type: EventPhaseChanged, RunID: p.runID, Phase: ph, Progress: p.progress})
}

// setProgress advances the coarse progress value. It never decreases, and
// emissions are rate-limited so a fast stream cannot flood subscribers;
// forced updates (phase boundaries, completion) always go out.
func (p *pipeline) setProgress(v int, status string, force bool) {
	if v < p.progress {
		v = p.progress
	}
	changed := v != p.progress
	p.progress = v
	if !force && (!changed || !p.limiter.Allow()) {
		return
	}
	p.emit(Event{Type: EventProgressChanged, RunID: p.runID, Phase: p.phase, Progress: v, Status: status})
}

// throughputMbps converts observed payload bytes over an elapsed duration
// to megabits per second with one fractional digit. Elapsed below one
// millisecond is measurement error: it is clamped so the result stays
// finite (but large).
func throughputMbps(bytes int64, elapsed time.Duration) float64 {
	if elapsed < time.Millisecond {
		elapsed = time.Millisecond
	}
	mbps := float64(bytes) * 8 / 1e6 / elapsed.Seconds()
	return math.Round(mbps*10) / 10
}

func scaleProgress(n, total int64, lo, hi int) int {
	if total <= 0 {
		return lo
	}
	v := lo + int(float64(hi-lo)*float64(n)/float64(total))
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func transferStatus(n, total int64) string {
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(n)), humanize.Bytes(uint64(total)))
}

func withBytesParam(rawURL string, n int64) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("bytes", strconv.FormatInt(n, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
