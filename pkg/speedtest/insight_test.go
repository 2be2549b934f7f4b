package speedtest

import (
	"errors"
	"testing"
)

func TestStreamingHit(t *testing.T) {
	r := Result{DownloadMbps: 100}
	a, err := Evaluate(r, ProfileStreaming)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if a.Status != "Seamless" {
		t.Errorf("Status = %q, want Seamless", a.Status)
	}
	if a.Description != "Perfect for 4 concurrent UHD streams." {
		t.Errorf("Description = %q", a.Description)
	}
}

func TestStreamingMissAtThreshold(t *testing.T) {
	// The comparison is strict: exactly 25 Mbps is a miss.
	a, err := Evaluate(Result{DownloadMbps: 25}, ProfileStreaming)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if a.Status != "Limited" {
		t.Errorf("Status = %q, want Limited", a.Status)
	}
	if a.Description != "Buffer risks on high quality." {
		t.Errorf("Description = %q", a.Description)
	}
}

func TestGamingLadder(t *testing.T) {
	if a, _ := Evaluate(Result{PingMs: 12}, ProfileGaming); a.Status != "Elite" {
		t.Errorf("ping 12: Status = %q, want Elite", a.Status)
	}
	if a, _ := Evaluate(Result{PingMs: 50}, ProfileGaming); a.Status != "Fair" {
		t.Errorf("ping 50: Status = %q, want Fair", a.Status)
	}
	if a, _ := Evaluate(Result{PingMs: 30}, ProfileGaming); a.Status != "Fair" {
		t.Errorf("ping 30 (boundary): Status = %q, want Fair", a.Status)
	}
}

func TestWorkLadder(t *testing.T) {
	if a, _ := Evaluate(Result{UploadMbps: 31.2}, ProfileWork); a.Status != "Professional" {
		t.Errorf("upload 31.2: Status = %q, want Professional", a.Status)
	}
	if a, _ := Evaluate(Result{UploadMbps: 10}, ProfileWork); a.Status != "Basic" {
		t.Errorf("upload 10 (boundary): Status = %q, want Basic", a.Status)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	r := Result{PingMs: 22, JitterMs: 4, DownloadMbps: 100, UploadMbps: 40}
	for _, p := range []Profile{ProfileStreaming, ProfileGaming, ProfileWork} {
		a1, err1 := Evaluate(r, p)
		a2, err2 := Evaluate(r, p)
		if err1 != nil || err2 != nil {
			t.Fatalf("Evaluate(%s): %v %v", p, err1, err2)
		}
		if a1 != a2 {
			t.Fatalf("Evaluate(%s) not deterministic: %+v vs %+v", p, a1, a2)
		}
	}
}

func TestEvaluateUnknownProfile(t *testing.T) {
	if _, err := Evaluate(Result{}, Profile("vr")); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile", err)
	}
	if _, err := Evaluate(Result{}, Profile("")); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("empty profile err = %v, want ErrUnknownProfile", err)
	}
}
