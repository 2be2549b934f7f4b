package speedtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProfileSelectionAndInsights(t *testing.T) {
	c := newTestClient(happyTransport(), stubEnv{}, newMemStore())

	if _, err := c.Insights(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("Insights before run = %v, want ErrNoResult", err)
	}
	if err := c.ChooseProfile(Profile("arcade")); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("ChooseProfile(arcade) = %v, want ErrUnknownProfile", err)
	}

	res, _ := runSession(t, c)
	if res == nil {
		t.Fatal("expected completion")
	}

	if err := c.ChooseProfile(ProfileStreaming); err != nil {
		t.Fatalf("ChooseProfile: %v", err)
	}
	a, err := c.Insights()
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if a.Status != "Seamless" {
		t.Fatalf("Status = %q, want Seamless (download %v)", a.Status, res.DownloadMbps)
	}

	// Same result, same profile: identical assessment.
	a2, err := c.Insights()
	if err != nil || a != a2 {
		t.Fatalf("Insights not stable: %+v vs %+v (%v)", a, a2, err)
	}

	if err := c.ChooseProfile(ProfileGaming); err != nil {
		t.Fatalf("ChooseProfile: %v", err)
	}
	a, err = c.Insights()
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if a.Status != "Elite" { // ping 22 < 30
		t.Fatalf("gaming Status = %q, want Elite", a.Status)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	c := newTestClient(happyTransport(), stubEnv{}, newMemStore())

	snap := c.Snapshot()
	if snap.Phase != PhaseIdle || snap.Running || snap.LastResult != nil {
		t.Fatalf("initial snapshot: %+v", snap)
	}

	res, _ := runSession(t, c)
	if res == nil {
		t.Fatal("expected completion")
	}

	snap = c.Snapshot()
	if snap.Phase != PhaseFinished || snap.Progress != 100 || snap.Running {
		t.Fatalf("final snapshot: %+v", snap)
	}
	if snap.LastResult == nil || *snap.LastResult != *res {
		t.Fatalf("snapshot result mismatch: %+v", snap.LastResult)
	}

	// The snapshot hands out a copy; mutating it must not leak back.
	snap.LastResult.PingMs = -1
	if c.Snapshot().LastResult.PingMs == -1 {
		t.Fatal("snapshot exposed internal state")
	}
}

func TestClientStatsAndClean(t *testing.T) {
	store := newMemStore()
	c := newTestClient(happyTransport(), stubEnv{}, store)

	res, _ := runSession(t, c)
	if res == nil {
		t.Fatal("expected completion")
	}

	s := c.Stats(context.Background(), 24*time.Hour)
	if s.TestCount != 1 || s.AvgDownload != res.DownloadMbps {
		t.Fatalf("stats: %+v", s)
	}
	if removed := c.CleanHistory(context.Background(), 90); removed != 0 {
		t.Fatalf("fresh record removed: %d", removed)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "speedtest.yaml")
	body := "logging:\n  level: error\nstorage:\n  driver: file\n  path: " +
		filepath.Join(dir, "history.db") + "\nendpoints:\n  ping_url: https://example.org/trace\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer c.Close()

	c.mu.Lock()
	ping := c.endpoints.PingURL
	download := c.endpoints.DownloadURL
	c.mu.Unlock()
	if ping != "https://example.org/trace" {
		t.Fatalf("ping endpoint override lost: %s", ping)
	}
	if download == "" {
		t.Fatal("default download endpoint missing")
	}
	if c.history == nil || c.store == nil {
		t.Fatal("history store not wired")
	}
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	// t.Chdir needs Go 1.24; do the equivalent on older toolchains.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil { // default storage path is relative
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	c, err := Load("absent.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer c.Close()
	if c.endpoints.PingURL == "" || c.endpoints.UploadURL == "" {
		t.Fatalf("defaults missing: %+v", c.endpoints)
	}
}
