package speedtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/frkrmn/speed-test/internal/config"
	"github.com/frkrmn/speed-test/internal/kv"
	logx "github.com/frkrmn/speed-test/pkg/logx"
)

// Client is the UI-facing controller: it runs at most one measurement
// session at a time, publishes typed events, and serves history and
// insights for completed sessions.
type Client struct {
	mu        sync.Mutex
	endpoints Endpoints
	running   bool
	cancel    context.CancelFunc
	profile   Profile
	last      *Result
	phase     Phase
	progress  int

	bus       *eventBus
	transport Transport
	env       EnvironmentLookup
	clock     Clock
	history   *History
	store     kv.Store
	log       logx.Logger

	// set by Load
	cfgMgr   *config.Manager
	ownStore bool
	ownLog   bool
}

// Option customizes a Client. The main use is substituting the transport,
// environment lookup or store in tests.
type Option func(*Client)

func WithTransport(t Transport) Option { return func(c *Client) { c.transport = t } }

func WithEnvironmentLookup(e EnvironmentLookup) Option {
	return func(c *Client) { c.env = e }
}

func WithClock(clk Clock) Option      { return func(c *Client) { c.clock = clk } }
func WithStore(s kv.Store) Option     { return func(c *Client) { c.store = s } }
func WithLogger(l logx.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client probing the given endpoints.
func New(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints: endpoints,
		phase:     PhaseIdle,
		bus:       newEventBus(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(c.log)
	}
	c.history = NewHistory(c.store, c.log)
	return c
}

// Load builds a fully wired Client from a YAML config file: logger, history
// store and endpoints. A missing file yields the built-in defaults. The
// returned Client owns the store and logger; call Close when done.
func Load(path string) (*Client, error) {
	mgr := config.NewManager(path)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File != "", Path: cfg.Logging.File},
	})
	if err != nil {
		return nil, err
	}
	mgr.SetLogger(log)

	// Storage is best-effort everywhere else; an unopenable store disables
	// history instead of blocking measurements.
	store, err := kv.Open(kv.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	}, log)
	if err != nil {
		log.Warn("history store unavailable; continuing without persistence", logx.Err(err))
		store = nil
	}

	c := New(Endpoints{
		PingURL:     cfg.Endpoints.PingURL,
		DownloadURL: cfg.Endpoints.DownloadURL,
		UploadURL:   cfg.Endpoints.UploadURL,
		EnvURL:      cfg.Endpoints.EnvURL,
	}, WithStore(store), WithLogger(log))

	c.history.MaxRecords = cfg.History.MaxRecords
	c.history.MaxAgeDays = cfg.History.MaxAgeDays
	c.cfgMgr = mgr
	c.ownStore = true
	c.ownLog = true
	return c, nil
}

// Start begins a measurement session. It returns ErrBusy while a prior
// session is still running, without disturbing it.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.phase = PhaseEnvironment
	c.progress = 0
	endpoints := c.endpoints
	c.mu.Unlock()

	// The env lookup is rebuilt per run so endpoint swaps apply to it too.
	env := c.env
	if env == nil {
		env = newHTTPEnvLookup(endpoints.EnvURL)
	}

	runID := uuid.NewString()
	p := &pipeline{
		runID:     runID,
		endpoints: endpoints,
		clock:     c.clock,
		transport: c.transport,
		env:       env,
		history:   c.history,
		log:       c.log.With(logx.String("run_id", runID)),
		emit:      c.relay,
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}

	c.log.Info("measurement session started", logx.String("run_id", runID))
	go func() {
		defer cancel()
		res, err := p.run(ctx)

		c.mu.Lock()
		c.running = false
		c.cancel = nil
		if res != nil {
			c.last = res
			c.phase = PhaseFinished
			c.progress = 100
		} else {
			c.phase = PhaseIdle
		}
		c.mu.Unlock()

		if err != nil {
			c.log.Info("measurement session cancelled", logx.String("run_id", runID))
			c.bus.publish(Event{Type: EventCancelled, RunID: runID, Phase: PhaseIdle})
			return
		}
		c.log.Info("measurement session finished",
			logx.String("run_id", runID),
			logx.Float64("download_mbps", res.DownloadMbps),
			logx.Float64("upload_mbps", res.UploadMbps),
			logx.Int("ping_ms", res.PingMs),
			logx.Bool("degraded", res.Degraded))
		c.bus.publish(Event{Type: EventCompleted, RunID: runID, Phase: PhaseFinished, Progress: 100, Result: res})
	}()
	return nil
}

// relay mirrors pipeline events into the snapshot state and fans them out
// to subscribers. Progress only ever moves forward within a run.
func (c *Client) relay(e Event) {
	c.mu.Lock()
	c.phase = e.Phase
	if e.Progress > c.progress {
		c.progress = e.Progress
	}
	c.mu.Unlock()
	c.bus.publish(e)
}

// Cancel aborts the in-flight session, if any. It takes effect at the next
// I/O suspension point; no record is produced or persisted.
func (c *Client) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ChooseProfile records the usage profile the user cares about.
func (c *Client) ChooseProfile(p Profile) error {
	if !p.valid() {
		return ErrUnknownProfile
	}
	c.mu.Lock()
	c.profile = p
	c.mu.Unlock()
	return nil
}

// Insights evaluates the last completed result against the chosen profile.
func (c *Client) Insights() (Assessment, error) {
	c.mu.Lock()
	last := c.last
	profile := c.profile
	c.mu.Unlock()

	if last == nil {
		return Assessment{}, ErrNoResult
	}
	return Evaluate(*last, profile)
}

// Events subscribes to the client's event stream. The returned function
// unsubscribes; the channel is closed afterwards.
func (c *Client) Events(buffer int) (<-chan Event, func()) {
	return c.bus.subscribe(buffer)
}

// Snapshot returns the current state for UI rendering.
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Phase:    c.phase,
		Progress: c.progress,
		Profile:  c.profile,
		Running:  c.running,
	}
	if c.last != nil {
		cp := *c.last
		s.LastResult = &cp
	}
	return s
}

// Recent returns up to n past records, newest first.
func (c *Client) Recent(ctx context.Context, n int) []Result {
	return c.history.Recent(ctx, n)
}

// Stats summarizes sessions within the trailing window.
func (c *Client) Stats(ctx context.Context, window time.Duration) *TrendStats {
	return c.history.Stats(ctx, window)
}

// CleanHistory applies retention, returning how many records were removed.
func (c *Client) CleanHistory(ctx context.Context, days int) int {
	return c.history.CleanOlderThan(ctx, days)
}

// SetEndpoints swaps the probe targets. Takes effect on the next Start.
func (c *Client) SetEndpoints(e Endpoints) {
	c.mu.Lock()
	c.endpoints = e
	c.mu.Unlock()
}

// WatchConfig blocks until ctx is done, applying endpoint changes from the
// config file the Client was loaded from. No-op for clients built with New.
func (c *Client) WatchConfig(ctx context.Context) error {
	if c.cfgMgr == nil {
		return nil
	}
	sub := c.cfgMgr.Subscribe(1)
	defer c.cfgMgr.Unsubscribe(sub)

	errCh := make(chan error, 1)
	go func() { errCh <- c.cfgMgr.Watch(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			c.SetEndpoints(Endpoints{
				PingURL:     cfg.Endpoints.PingURL,
				DownloadURL: cfg.Endpoints.DownloadURL,
				UploadURL:   cfg.Endpoints.UploadURL,
				EnvURL:      cfg.Endpoints.EnvURL,
			})
			c.log.Info("endpoints updated from config")
		}
	}
}

// Close cancels any in-flight session and releases resources owned by Load.
func (c *Client) Close() error {
	c.Cancel()

	var err error
	if c.ownStore && c.store != nil {
		err = c.store.Close()
	}
	if t, ok := c.transport.(*HTTPTransport); ok {
		t.CloseIdleConnections()
	}
	if c.ownLog {
		if cerr := c.log.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
