package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kmscode/livelinks/live"
)

type staticSource struct {
	sum *live.Summary
}

func (s *staticSource) LastSummary() *live.Summary { return s.sum }

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewMux(&staticSource{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStatusPendingBeforeFirstRun(t *testing.T) {
	srv := httptest.NewServer(NewMux(&staticSource{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "pending" {
		t.Errorf("body = %v", body)
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	src := &staticSource{sum: &live.Summary{
		StartedAt: time.Now().UTC(),
		Channels:  2,
		Appended:  []string{"vid00000001"},
	}}
	srv := httptest.NewServer(NewMux(src))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got live.Summary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Channels != 2 || len(got.Appended) != 1 {
		t.Errorf("summary = %+v", got)
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv := httptest.NewServer(NewMux(&staticSource{}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation header = %q", got)
	}

	req2, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing generated correlation header")
	}
}
