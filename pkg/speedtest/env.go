package speedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EnvironmentInfo is the viewer's network identity, as reported by the
// metadata endpoint.
type EnvironmentInfo struct {
	Org string `json:"org"`
	ASN string `json:"asn"`
	IP  string `json:"ip"`
}

// Label picks the best human-readable network name available.
func (e EnvironmentInfo) Label() string {
	if e.Org != "" {
		return e.Org
	}
	if e.ASN != "" {
		return e.ASN
	}
	return ""
}

// EnvironmentLookup resolves the viewer's ISP/AS label and public address.
// It is an opaque external collaborator; any failure makes the pipeline
// fall back to a local label and proceed.
type EnvironmentLookup interface {
	Lookup(ctx context.Context) (EnvironmentInfo, error)
}

type httpEnvLookup struct {
	client *http.Client
	url    string
}

// newHTTPEnvLookup builds the production lookup against a JSON endpoint
// returning at least org/asn and ip string fields.
func newHTTPEnvLookup(url string) EnvironmentLookup {
	return &httpEnvLookup{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (l *httpEnvLookup) Lookup(ctx context.Context) (EnvironmentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EnvironmentInfo{}, fmt.Errorf("environment lookup: unexpected status %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return EnvironmentInfo{}, err
	}
	var info EnvironmentInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return EnvironmentInfo{}, err
	}
	return info, nil
}
