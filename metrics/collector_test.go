package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmomasters/tkgateway/bench"
)

func sampleReport() *bench.Report {
	avg := 0.2
	return &bench.Report{
		Host:      "192.168.0.129",
		Timestamp: time.Unix(1700000000, 0),
		Results: []bench.Result{
			{Success: true, ResponseTime: 0.1},
			{Success: true, ResponseTime: 0.3},
			{Success: false, Error: "HTTP 404 Not Found"},
		},
		Summary: bench.Summary{
			TotalRequests:   3,
			Successful:      2,
			Failed:          1,
			AvgResponseTime: &avg,
		},
	}
}

func TestReportCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewReportCollector(sampleReport())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	byName := map[string]int{}
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
	}

	want := map[string]int{
		"tkgateway_benchmark_requests":                  2,
		"tkgateway_benchmark_response_seconds":          5,
		"tkgateway_benchmark_recommended_delay_seconds": 2,
		"tkgateway_benchmark_timestamp_seconds":         1,
	}
	for name, series := range want {
		if byName[name] != series {
			t.Errorf("family %s has %d series, want %d", name, byName[name], series)
		}
	}

	for _, mf := range families {
		if mf.GetName() != "tkgateway_benchmark_requests" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var result string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" {
					result = lp.GetValue()
				}
			}
			value := m.GetGauge().GetValue()
			switch result {
			case "success":
				if value != 2 {
					t.Errorf("success count = %v, want 2", value)
				}
			case "failure":
				if value != 1 {
					t.Errorf("failure count = %v, want 1", value)
				}
			default:
				t.Errorf("unexpected result label %q", result)
			}
		}
	}
}

func TestReportCollectorNoSuccesses(t *testing.T) {
	rep := &bench.Report{
		Host:      "192.168.0.129",
		Timestamp: time.Unix(1700000000, 0),
		Results:   []bench.Result{{Success: false, Error: "connection refused"}},
		Summary:   bench.Summary{TotalRequests: 1, Failed: 1},
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewReportCollector(rep)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "tkgateway_benchmark_response_seconds", "tkgateway_benchmark_recommended_delay_seconds":
			t.Errorf("family %s must not be emitted without successful samples", mf.GetName())
		}
	}
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method = r.Method
		path = r.URL.Path
		body = data
		mu.Unlock()
	}))
	defer srv.Close()

	if err := Push(srv.URL, "bench_test", sampleReport()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %q, want PUT", method)
	}
	if path != "/metrics/job/bench_test" {
		t.Errorf("path = %q, want /metrics/job/bench_test", path)
	}
	if !strings.Contains(string(body), "tkgateway_benchmark_requests") {
		t.Error("push body does not carry the benchmark metrics")
	}
}

func TestPushDefaultJob(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		mu.Unlock()
	}))
	defer srv.Close()

	if err := Push(srv.URL, "", sampleReport()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/metrics/job/"+DefaultJob {
		t.Errorf("path = %q, want the default job name", path)
	}
}
