// Package bench measures gateway endpoint latency and derives rate limit
// recommendations from the observed response times.
package bench

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mmomasters/tkgateway/config"
	"github.com/mmomasters/tkgateway/gateway"
)

const (
	// DefaultIterations is how many times each endpoint is hit.
	DefaultIterations = 5

	// DefaultPause separates repetitions of the same endpoint.
	DefaultPause = 500 * time.Millisecond
)

// Result records one timed request.
type Result struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	Description string `json:"description"`

	// Status is the HTTP status code, or null when no response arrived
	// or the request failed.
	Status *int `json:"status"`

	// ResponseTime is the full request duration in seconds, including
	// reading the body.
	ResponseTime float64 `json:"response_time"`

	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`

	// Locker is set on per-locker checks; gateway-wide requests leave it
	// empty.
	Locker string `json:"locker_name,omitempty"`
}

// RunnerConfig contains configuration for a benchmark run.
type RunnerConfig struct {
	// Host is the gateway address (host or host:port), without scheme
	Host string

	// Iterations per endpoint
	Iterations int

	// Pause between repetitions of the same endpoint
	Pause time.Duration

	// Timeout for each request
	Timeout time.Duration

	// Config supplies the lockers to check. May be nil.
	Config *config.Config

	// Out receives progress output. Defaults to os.Stdout.
	Out io.Writer
}

// DefaultRunnerConfig returns a RunnerConfig with default values.
func DefaultRunnerConfig(host string, cfg *config.Config) RunnerConfig {
	return RunnerConfig{
		Host:       host,
		Iterations: DefaultIterations,
		Pause:      DefaultPause,
		Timeout:    gateway.DefaultTimeout,
		Config:     cfg,
	}
}

// Runner benchmarks a gateway. Requests go out through its own unpaced HTTP
// client rather than the rate-limited gateway client.
type Runner struct {
	host       string
	iterations int
	pause      time.Duration
	cfg        *config.Config
	httpClient *http.Client
	out        io.Writer
	results    []Result
}

// NewRunner creates a Runner from the configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = gateway.DefaultTimeout
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Runner{
		host:       cfg.Host,
		iterations: cfg.Iterations,
		pause:      cfg.Pause,
		cfg:        cfg.Config,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		out:        cfg.Out,
	}
}

// Results returns every result recorded so far, in request order.
func (r *Runner) Results() []Result {
	return r.results
}

// RunSuite benchmarks the gateway-wide endpoints, then runs an authenticated
// status check for every configured locker.
func (r *Runner) RunSuite() {
	fmt.Fprintf(r.out, "Benchmarking gateway at %s\n", r.host)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))

	base := "http://" + r.host
	r.testEndpoint(base+"/status", http.MethodGet, "Gateway Status", "", nil)
	r.testEndpoint(base+"/lockers", http.MethodGet, "List Lockers", "", nil)
	r.testLockers(base)
}

// testLockers checks /locker_status once per configured locker. Lockers that
// still carry placeholder credentials are skipped without issuing a request.
func (r *Runner) testLockers(base string) {
	if r.cfg == nil {
		return
	}
	for _, name := range r.cfg.LockerNames() {
		locker, _ := r.cfg.Locker(name)
		if !locker.IsConfigured() {
			fmt.Fprintf(r.out, "\nSkipping locker %q: placeholder credentials\n", name)
			continue
		}

		cred := gateway.Credentials(locker)
		desc := fmt.Sprintf("Locker Status (%s)", name)
		r.testEndpoint(base+"/locker_status", http.MethodPost, desc, name, func() url.Values {
			return gateway.SignedForm(cred, time.Now())
		})
	}
}

// testEndpoint hits one endpoint iterations times with a pause between
// repetitions and prints per-sample lines plus a statistics block. The form
// builder runs per request so signed forms carry a fresh timestamp.
func (r *Runner) testEndpoint(target, method, desc, locker string, form func() url.Values) {
	fmt.Fprintf(r.out, "\nTesting: %s (%s %s)\n", desc, method, target)

	var times []float64
	for i := 0; i < r.iterations; i++ {
		var vals url.Values
		if form != nil {
			vals = form()
		}

		res := r.request(target, method, desc, locker, vals)
		if res.Success {
			times = append(times, res.ResponseTime)
			fmt.Fprintf(r.out, "  request %d/%d: %.3fs (HTTP %d)\n", i+1, r.iterations, res.ResponseTime, *res.Status)
		} else {
			fmt.Fprintf(r.out, "  request %d/%d: failed - %s\n", i+1, r.iterations, res.Error)
		}

		if i < r.iterations-1 && r.pause > 0 {
			time.Sleep(r.pause)
		}
	}

	if len(times) == 0 {
		return
	}
	fmt.Fprintln(r.out, "  statistics:")
	fmt.Fprintf(r.out, "    mean:   %.3fs\n", Mean(times))
	fmt.Fprintf(r.out, "    median: %.3fs\n", Median(times))
	fmt.Fprintf(r.out, "    min:    %.3fs\n", Min(times))
	fmt.Fprintf(r.out, "    max:    %.3fs\n", Max(times))
	if len(times) > 1 {
		fmt.Fprintf(r.out, "    stddev: %.3fs\n", StdDev(times))
	}
}

// request issues one timed request and records the result. The clock covers
// the full exchange including reading the body.
func (r *Runner) request(target, method, desc, locker string, form url.Values) Result {
	res := Result{
		URL:         target,
		Method:      method,
		Description: desc,
		Timestamp:   time.Now(),
		Locker:      locker,
	}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		res.Error = err.Error()
		r.results = append(r.results, res)
		return res
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		res.ResponseTime = time.Since(start).Seconds()
		res.Error = err.Error()
		r.results = append(r.results, res)
		return res
	}

	_, readErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	res.ResponseTime = time.Since(start).Seconds()

	switch {
	case readErr != nil:
		res.Error = readErr.Error()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		res.Error = "HTTP " + resp.Status
	default:
		code := resp.StatusCode
		res.Status = &code
		res.Success = true
	}

	r.results = append(r.results, res)
	return res
}
