package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Submissions.WithLabelValues("submitted").Inc()
	m.StatusQueries.Add(3)
	m.StatusResults.WithLabelValues("running").Inc()

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("submitted")); got != 1 {
		t.Fatalf("unexpected submissions: %v", got)
	}
	if got := testutil.ToFloat64(m.StatusQueries); got != 3 {
		t.Fatalf("unexpected status queries: %v", got)
	}
	if n := testutil.CollectAndCount(m.StatusResults); n != 1 {
		t.Fatalf("unexpected status result series: %d", n)
	}
}

func TestPushToGateway(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.StatusQueries.Inc()
	if err := m.Push(context.Background(), srv.URL, "lsf_status"); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPost {
		t.Fatalf("unexpected method: %s", method)
	}
	if path != "/metrics/job/lsf_status" {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestPushDisabled(t *testing.T) {
	if err := New().Push(context.Background(), "", "lsf_status"); err != nil {
		t.Fatalf("disabled push returned error: %v", err)
	}
}

func TestPushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := New().Push(context.Background(), srv.URL, "lsf_submit"); err == nil {
		t.Fatal("expected error from failing gateway")
	}
}
