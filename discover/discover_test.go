package discover

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func listenerPort(t *testing.T, l net.Listener) int {
	t.Helper()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected addr type %T", l.Addr())
	}
	return addr.Port
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return port
}

func quietConfig(host string) ScanConfig {
	cfg := DefaultScanConfig(host)
	cfg.PortTimeout = 500 * time.Millisecond
	cfg.Out = io.Discard
	return cfg
}

func TestScanPorts(t *testing.T) {
	l1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l1.Close()

	l2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l2.Close()

	// Grab a port and release it so the scan sees it closed.
	gone, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	closedPort := listenerPort(t, gone)
	gone.Close()

	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{Ports: []int{closedPort, listenerPort(t, l2), listenerPort(t, l1)}}

	open, err := NewScanner(cfg).ScanPorts(context.Background())
	if err != nil {
		t.Fatalf("ScanPorts: %v", err)
	}

	want := []int{listenerPort(t, l1), listenerPort(t, l2)}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	if !reflect.DeepEqual(open, want) {
		t.Errorf("open ports = %v, want %v", open, want)
	}
}

func TestScanPortsNoneOpen(t *testing.T) {
	gone, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	closedPort := listenerPort(t, gone)
	gone.Close()

	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{Ports: []int{closedPort}}

	open, err := NewScanner(cfg).ScanPorts(context.Background())
	if err != nil {
		t.Fatalf("ScanPorts: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open ports = %v, want none", open)
	}
}

func TestProbeEndpointsClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "online"}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("v1.2.3"))
	})
	mux.HandleFunc("/open", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing parameters", http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	port := serverPort(t, srv)
	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{
		Ports: []int{port},
		Get:   []string{"/status", "/version", "/missing"},
		Post:  []string{"/open", "/locker/update"},
	}

	findings, err := NewScanner(cfg).ProbeEndpoints(context.Background(), port)
	if err != nil {
		t.Fatalf("ProbeEndpoints: %v", err)
	}

	if len(findings.Get) != 2 {
		t.Fatalf("discovered %d GET endpoints, want 2: %+v", len(findings.Get), findings.Get)
	}

	status := findings.Get[0]
	if status.Endpoint != "/status" || status.Type != TypeJSON {
		t.Errorf("first GET finding = %+v, want /status as json", status)
	}
	if status.Data == nil {
		t.Error("json finding carries no decoded data")
	}

	version := findings.Get[1]
	if version.Endpoint != "/version" || version.Type != TypeText {
		t.Errorf("second GET finding = %+v, want /version as text", version)
	}
	if version.Preview != "v1.2.3" {
		t.Errorf("preview = %q", version.Preview)
	}

	if len(findings.Post) != 1 {
		t.Fatalf("discovered %d POST endpoints, want 1: %+v", len(findings.Post), findings.Post)
	}
	if f := findings.Post[0]; f.Endpoint != "/open" || f.Status != http.StatusBadRequest {
		t.Errorf("POST finding = %+v, want /open with a 400", f)
	}
}

func TestProbeGet404NotDiscovered(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	port := serverPort(t, srv)
	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{Ports: []int{port}, Get: []string{"/status"}}

	findings, err := NewScanner(cfg).ProbeEndpoints(context.Background(), port)
	if err != nil {
		t.Fatalf("ProbeEndpoints: %v", err)
	}
	if !findings.Empty() {
		t.Errorf("404 responses must not be discoveries: %+v", findings)
	}
}

func TestProbePreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(long))
	}))
	defer srv.Close()

	port := serverPort(t, srv)
	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{Ports: []int{port}, Get: []string{"/"}}

	findings, err := NewScanner(cfg).ProbeEndpoints(context.Background(), port)
	if err != nil {
		t.Fatalf("ProbeEndpoints: %v", err)
	}
	if len(findings.Get) != 1 {
		t.Fatalf("findings = %+v", findings)
	}
	if got := len(findings.Get[0].Preview); got != previewLimit {
		t.Errorf("preview length = %d, want %d", got, previewLimit)
	}
}

func TestProbePacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	port := serverPort(t, srv)
	cfg := quietConfig("127.0.0.1")
	cfg.Delay = 50 * time.Millisecond
	cfg.Plan = Plan{Ports: []int{port}, Get: []string{"/a", "/b", "/c"}}

	start := time.Now()
	if _, err := NewScanner(cfg).ProbeEndpoints(context.Background(), port); err != nil {
		t.Fatalf("ProbeEndpoints: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three paced probes finished in %v, want at least 100ms", elapsed)
	}
}

func TestRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "online"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gone, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	closedPort := listenerPort(t, gone)
	gone.Close()

	port := serverPort(t, srv)
	cfg := quietConfig("127.0.0.1")
	cfg.Plan = Plan{
		Ports: []int{port, closedPort},
		Get:   []string{"/status"},
		Post:  []string{"/open"},
	}

	report, err := NewScanner(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := []int{port}; !reflect.DeepEqual(report.OpenPorts, want) {
		t.Errorf("OpenPorts = %v, want %v", report.OpenPorts, want)
	}
	if len(report.Findings) != 1 || report.Findings[0].Port != port {
		t.Fatalf("Findings = %+v", report.Findings)
	}
	if got := report.Findings[0].Get; len(got) != 1 || got[0].Endpoint != "/status" {
		t.Errorf("GET findings = %+v", got)
	}
}

func TestDiscovered(t *testing.T) {
	tests := []struct {
		name    string
		finding Finding
		want    bool
	}{
		{"get 200", Finding{Method: http.MethodGet, Status: 200}, true},
		{"get 201", Finding{Method: http.MethodGet, Status: 201}, true},
		{"get 400", Finding{Method: http.MethodGet, Status: 400}, false},
		{"get 404", Finding{Method: http.MethodGet, Status: 404}, false},
		{"post 200", Finding{Method: http.MethodPost, Status: 200}, true},
		{"post 400", Finding{Method: http.MethodPost, Status: 400}, true},
		{"post 404", Finding{Method: http.MethodPost, Status: 404}, false},
		{"post 500", Finding{Method: http.MethodPost, Status: 500}, false},
		{"no response", Finding{Method: http.MethodGet}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.finding.Discovered(); got != tt.want {
				t.Errorf("Discovered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.0.129", "192.168.0.129"},
		{"http://192.168.0.129", "192.168.0.129"},
		{"https://gw.local/", "gw.local"},
		{"10.0.0.5:9856", "10.0.0.5"},
		{"http://10.0.0.5:9856/", "10.0.0.5"},
		{"gw.local", "gw.local"},
	}

	for _, tt := range tests {
		if got := CleanHost(tt.in); got != tt.want {
			t.Errorf("CleanHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	report := &Report{
		Host:      "127.0.0.1",
		OpenPorts: []int{80, 9856},
		Findings: []PortFindings{{
			Port: 9856,
			Get:  []Finding{{Endpoint: "/status", Method: http.MethodGet, Status: 200, Type: TypeJSON}},
			Post: []Finding{{Endpoint: "/open", Method: http.MethodPost, Status: 400, Type: TypeHTTPError}},
		}},
	}

	var buf strings.Builder
	report.WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{"DISCOVERY SUMMARY", "Open ports: 80, 9856", "Port 9856:", "/status", "/open"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
