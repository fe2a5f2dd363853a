// Package discover locates a locker gateway's HTTP API on an unknown host by
// scanning candidate ports and fingerprinting the endpoints that answer.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigFastest

const (
	// DefaultWorkers bounds the concurrent TCP connects of a port scan.
	DefaultWorkers = 10

	// DefaultPortTimeout is the per-port TCP connect timeout.
	DefaultPortTimeout = 2 * time.Second

	// DefaultProbeTimeout is the per-request timeout for endpoint probes.
	DefaultProbeTimeout = 3 * time.Second

	// previewLimit caps the stored body excerpt of a probe.
	previewLimit = 200
)

// ResultType classifies what an endpoint probe got back.
type ResultType string

const (
	TypeJSON      ResultType = "json"
	TypeText      ResultType = "text"
	TypeHTTPError ResultType = "http_error"
	TypeException ResultType = "exception"
)

// Finding is the outcome of probing a single endpoint.
type Finding struct {
	Endpoint string     `json:"endpoint"`
	Method   string     `json:"method"`
	Status   int        `json:"status,omitempty"`
	Type     ResultType `json:"type"`
	Preview  string     `json:"preview,omitempty"`
	Data     any        `json:"data,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Discovered reports whether the probe is positive evidence the endpoint
// exists. GET counts 200 and 201. POST additionally counts 400: a handler
// complaining about missing parameters proves the path is routed.
func (f Finding) Discovered() bool {
	switch f.Method {
	case http.MethodGet:
		return f.Status == http.StatusOK || f.Status == http.StatusCreated
	case http.MethodPost:
		return f.Status == http.StatusOK || f.Status == http.StatusCreated || f.Status == http.StatusBadRequest
	}
	return false
}

// PortFindings groups the discovered endpoints of one open port, in probe
// order.
type PortFindings struct {
	Port int       `json:"port"`
	Get  []Finding `json:"get,omitempty"`
	Post []Finding `json:"post,omitempty"`
}

// Empty reports whether the port yielded no discovered endpoints.
func (p PortFindings) Empty() bool {
	return len(p.Get) == 0 && len(p.Post) == 0
}

// Report is the complete outcome of one discovery sweep.
type Report struct {
	Host      string         `json:"host"`
	OpenPorts []int          `json:"open_ports"`
	Findings  []PortFindings `json:"findings,omitempty"`
}

// ScanConfig contains configuration for a discovery sweep.
type ScanConfig struct {
	// Host to scan (hostname or IP, without scheme or port)
	Host string

	// Plan is the set of ports and paths to probe
	Plan Plan

	// Workers bounds the concurrent TCP connects of the port scan
	Workers int

	// PortTimeout is the TCP connect timeout per port
	PortTimeout time.Duration

	// ProbeTimeout is the HTTP timeout per endpoint probe
	ProbeTimeout time.Duration

	// Delay paces endpoint probes. Zero disables pacing.
	Delay time.Duration

	// Out receives progress output. Defaults to os.Stdout.
	Out io.Writer
}

// DefaultScanConfig returns a ScanConfig with default values.
func DefaultScanConfig(host string) ScanConfig {
	return ScanConfig{
		Host:         host,
		Plan:         DefaultPlan(),
		Workers:      DefaultWorkers,
		PortTimeout:  DefaultPortTimeout,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Scanner runs discovery sweeps against one host. Ports are scanned with a
// bounded pool of concurrent connects; endpoint probes run sequentially.
type Scanner struct {
	cfg        ScanConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	out        io.Writer
}

// NewScanner creates a Scanner from the configuration.
func NewScanner(cfg ScanConfig) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PortTimeout <= 0 {
		cfg.PortTimeout = DefaultPortTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if len(cfg.Plan.Ports) == 0 && len(cfg.Plan.Get) == 0 && len(cfg.Plan.Post) == 0 {
		cfg.Plan = DefaultPlan()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	return &Scanner{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		limiter:    limiter,
		out:        cfg.Out,
	}
}

// Run executes the full sweep: the concurrent port scan, then sequential
// endpoint probing of every open port.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	open, err := s.ScanPorts(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Host: s.cfg.Host, OpenPorts: open}
	for _, port := range open {
		findings, err := s.ProbeEndpoints(ctx, port)
		if err != nil {
			return nil, err
		}
		if !findings.Empty() {
			report.Findings = append(report.Findings, findings)
		}
	}
	return report, nil
}

// ScanPorts tests every candidate port with a bounded pool of concurrent TCP
// connects and returns the open ones in ascending order. A failed connect
// just means the port is closed; it is never an error.
func (s *Scanner) ScanPorts(ctx context.Context) ([]int, error) {
	fmt.Fprintf(s.out, "Scanning %d ports on %s ...\n", len(s.cfg.Plan.Ports), s.cfg.Host)

	var (
		mu   sync.Mutex
		open []int
	)

	dialer := &net.Dialer{Timeout: s.cfg.PortTimeout}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, port := range s.cfg.Plan.Ports {
		port := port
		g.Go(func() error {
			addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil
			}
			conn.Close()

			mu.Lock()
			open = append(open, port)
			fmt.Fprintf(s.out, "Port %d is open\n", port)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(open) == 0 {
		fmt.Fprintln(s.out, "No open ports found")
	}
	sort.Ints(open)
	return open, nil
}

// ProbeEndpoints tries every candidate GET and POST path on one open port and
// returns the probes that produced positive evidence of an endpoint.
func (s *Scanner) ProbeEndpoints(ctx context.Context, port int) (PortFindings, error) {
	base := "http://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	findings := PortFindings{Port: port}

	fmt.Fprintf(s.out, "\nProbing endpoints on %s ...\n", net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)))

	fmt.Fprintln(s.out, "GET endpoints:")
	for _, path := range s.cfg.Plan.Get {
		if err := s.pace(ctx); err != nil {
			return findings, err
		}
		f := s.probe(ctx, http.MethodGet, base, path)
		if f.Discovered() {
			findings.Get = append(findings.Get, f)
		}
		s.printProbe(f)
	}

	fmt.Fprintln(s.out, "POST endpoints:")
	for _, path := range s.cfg.Plan.Post {
		if err := s.pace(ctx); err != nil {
			return findings, err
		}
		f := s.probe(ctx, http.MethodPost, base, path)
		if f.Discovered() {
			findings.Post = append(findings.Post, f)
		}
		s.printProbe(f)
	}

	return findings, nil
}

func (s *Scanner) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// probe issues one request and classifies the outcome. A refused connection
// or timeout is a finding, not an error.
func (s *Scanner) probe(ctx context.Context, method, base, path string) Finding {
	f := Finding{Endpoint: path, Method: method}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		f.Type = TypeException
		f.Error = err.Error()
		return f
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		f.Type = TypeException
		f.Error = err.Error()
		return f
	}
	defer resp.Body.Close()

	f.Status = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		f.Type = TypeHTTPError
		f.Error = "HTTP " + resp.Status
		return f
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.Type = TypeException
		f.Error = err.Error()
		return f
	}

	f.Preview = preview(data)
	var decoded any
	if err := json.Unmarshal(data, &decoded); err == nil && len(bytes.TrimSpace(data)) > 0 {
		f.Type = TypeJSON
		f.Data = decoded
	} else {
		f.Type = TypeText
	}
	return f
}

// printProbe logs one probe outcome. Connection errors stay quiet.
func (s *Scanner) printProbe(f Finding) {
	switch {
	case f.Discovered() && f.Status == http.StatusBadRequest:
		fmt.Fprintf(s.out, "  %s - HTTP 400 (exists, needs parameters)\n", f.Endpoint)
	case f.Discovered():
		fmt.Fprintf(s.out, "  %s (%s)\n", f.Endpoint, f.Type)
		if f.Preview != "" {
			fmt.Fprintf(s.out, "    %s\n", f.Preview)
		}
	case f.Type == TypeHTTPError:
		fmt.Fprintf(s.out, "  %s - HTTP %d\n", f.Endpoint, f.Status)
	}
}

// CleanHost normalizes user input to a bare hostname or IP: the scheme and
// any port are stripped, since the scan supplies ports itself.
func CleanHost(s string) string {
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimSuffix(s, "/")
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// preview returns the first 200 characters of a response body.
func preview(data []byte) string {
	runes := []rune(string(data))
	if len(runes) <= previewLimit {
		return string(runes)
	}
	return string(runes[:previewLimit])
}

// WriteSummary prints the sweep outcome grouped by port.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(w, "DISCOVERY SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Host: %s\n", r.Host)

	if len(r.OpenPorts) == 0 {
		fmt.Fprintln(w, "No open ports found")
		return
	}
	fmt.Fprintf(w, "Open ports: %s\n", joinPorts(r.OpenPorts))

	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No accessible endpoints discovered")
		return
	}

	for _, pf := range r.Findings {
		fmt.Fprintf(w, "\nPort %d:\n", pf.Port)
		if len(pf.Get) > 0 {
			fmt.Fprintf(w, "  GET endpoints (%d):\n", len(pf.Get))
			for _, f := range pf.Get {
				fmt.Fprintf(w, "    %s\n", f.Endpoint)
			}
		}
		if len(pf.Post) > 0 {
			fmt.Fprintf(w, "  POST endpoints (%d):\n", len(pf.Post))
			for _, f := range pf.Post {
				fmt.Fprintf(w, "    %s\n", f.Endpoint)
			}
		}
	}
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
