package speedtest

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/frkrmn/speed-test/internal/kv"
	logx "github.com/frkrmn/speed-test/pkg/logx"
)

// historyKeyPrefix partitions speed-test records from any other data
// co-tenanted in the underlying key-value store.
//
// Keys are the prefix plus the decimal UnixMilli capture time. Millisecond
// epochs are 13 digits until the year 2286, so descending lexicographic
// order over these keys equals descending chronological order.
const historyKeyPrefix = "speedtest:"

// History schema version stamped into stored values.
const historySchemaVersion = 1

const (
	DefaultHistoryMaxRecords = 500
	DefaultHistoryMaxAgeDays = 90
)

// storedRecord is the persisted form of a Result. The capture time is
// duplicated at the top level for key/value consistency under lossy
// restores.
type storedRecord struct {
	V         int   `json:"v"`
	Timestamp int64 `json:"timestamp"`
	Result
}

// History persists Results to a key-value store and serves recent records
// newest first.
//
// Writes are best-effort: the pipeline treats an append failure as a log
// line, never as a session failure.
type History struct {
	store kv.Store
	log   logx.Logger

	MaxRecords int
	MaxAgeDays int
}

// NewHistory wraps a store. A nil store yields a History whose appends are
// no-ops and whose reads return nothing.
func NewHistory(store kv.Store, log logx.Logger) *History {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &History{
		store:      store,
		log:        log,
		MaxRecords: DefaultHistoryMaxRecords,
		MaxAgeDays: DefaultHistoryMaxAgeDays,
	}
}

// Append persists one record under its capture time.
func (h *History) Append(ctx context.Context, r Result) error {
	if h == nil || h.store == nil {
		return nil
	}
	rec := storedRecord{V: historySchemaVersion, Timestamp: r.CapturedAt, Result: r}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return h.store.Set(ctx, historyKey(r.CapturedAt), b)
}

// Recent returns up to n records in descending capture-time order.
//
// Corrupt or missing entries are silently skipped; a read failure on the
// key listing returns an empty slice (the UI shows "no history" rather
// than an error).
func (h *History) Recent(ctx context.Context, n int) []Result {
	if h == nil || h.store == nil || n <= 0 {
		return nil
	}

	keys, err := h.store.List(ctx, historyKeyPrefix)
	if err != nil {
		h.log.Warn("history: list failed", logx.Err(err))
		return nil
	}
	// Descending lexicographic equals descending capture time (fixed-width
	// numeric suffix).
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > n {
		keys = keys[:n]
	}

	out := make([]Result, 0, len(keys))
	for _, k := range keys {
		v, ok, err := h.store.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var rec storedRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			continue
		}
		out = append(out, rec.Result)
	}
	return out
}

// CleanOlderThan removes records older than the given number of days, and
// enforces MaxRecords by dropping the oldest overflow. Returns how many
// records were removed.
func (h *History) CleanOlderThan(ctx context.Context, days int) int {
	if h == nil || h.store == nil {
		return 0
	}
	if days < 1 {
		days = 1
	}
	maxRecords := h.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultHistoryMaxRecords
	}

	keys, err := h.store.List(ctx, historyKeyPrefix)
	if err != nil {
		h.log.Warn("history: list failed", logx.Err(err))
		return 0
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys))) // newest first

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	removed := 0
	for i, k := range keys {
		ts, ok := parseHistoryKey(k)
		drop := !ok || ts < cutoff || i >= maxRecords
		if !drop {
			continue
		}
		if err := h.store.Delete(ctx, k); err != nil {
			h.log.Warn("history: delete failed", logx.String("key", k), logx.Err(err))
			continue
		}
		removed++
	}
	return removed
}

// TrendStats summarizes the sessions inside a recent window.
type TrendStats struct {
	Period      string  `json:"period"`
	TestCount   int     `json:"test_count"`
	AvgDownload float64 `json:"avg_download_mbps"`
	AvgUpload   float64 `json:"avg_upload_mbps"`
	AvgPing     float64 `json:"avg_ping_ms"`
	MaxDownload float64 `json:"max_download_mbps"`
	MinDownload float64 `json:"min_download_mbps"`
	MaxUpload   float64 `json:"max_upload_mbps"`
	MinUpload   float64 `json:"min_upload_mbps"`
	MaxPing     float64 `json:"max_ping_ms"`
	MinPing     float64 `json:"min_ping_ms"`
	FirstTest   int64   `json:"first_test"`
	LastTest    int64   `json:"last_test"`
}

// Stats computes rolling statistics over the sessions captured within the
// window ending now. Errors are treated as "no data".
func (h *History) Stats(ctx context.Context, window time.Duration) *TrendStats {
	stats := &TrendStats{Period: "Last " + window.String()}
	if h == nil || h.store == nil || window <= 0 {
		return stats
	}
	cutoff := time.Now().Add(-window).UnixMilli()

	keys, err := h.store.List(ctx, historyKeyPrefix)
	if err != nil {
		return stats
	}

	var totalDownload, totalUpload, totalPing float64
	for _, k := range keys {
		if ts, ok := parseHistoryKey(k); !ok || ts < cutoff {
			continue
		}
		v, ok, err := h.store.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var rec storedRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			continue
		}

		stats.TestCount++
		totalDownload += rec.DownloadMbps
		totalUpload += rec.UploadMbps
		totalPing += float64(rec.PingMs)

		if stats.TestCount == 1 {
			stats.MaxDownload, stats.MinDownload = rec.DownloadMbps, rec.DownloadMbps
			stats.MaxUpload, stats.MinUpload = rec.UploadMbps, rec.UploadMbps
			stats.MaxPing, stats.MinPing = float64(rec.PingMs), float64(rec.PingMs)
			stats.FirstTest, stats.LastTest = rec.CapturedAt, rec.CapturedAt
			continue
		}
		stats.MaxDownload = max(stats.MaxDownload, rec.DownloadMbps)
		stats.MinDownload = min(stats.MinDownload, rec.DownloadMbps)
		stats.MaxUpload = max(stats.MaxUpload, rec.UploadMbps)
		stats.MinUpload = min(stats.MinUpload, rec.UploadMbps)
		stats.MaxPing = max(stats.MaxPing, float64(rec.PingMs))
		stats.MinPing = min(stats.MinPing, float64(rec.PingMs))
		stats.FirstTest = min(stats.FirstTest, rec.CapturedAt)
		stats.LastTest = max(stats.LastTest, rec.CapturedAt)
	}

	if stats.TestCount > 0 {
		count := float64(stats.TestCount)
		stats.AvgDownload = totalDownload / count
		stats.AvgUpload = totalUpload / count
		stats.AvgPing = totalPing / count
	}
	return stats
}

func historyKey(capturedAt int64) string {
	return historyKeyPrefix + strconv.FormatInt(capturedAt, 10)
}

func parseHistoryKey(key string) (int64, bool) {
	ts, err := strconv.ParseInt(key[len(historyKeyPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
