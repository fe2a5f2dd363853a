// Package gateway implements the signed HTTP client for the locker gateway.
package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// DefaultTimeout bounds a single gateway request.
const DefaultTimeout = 10 * time.Second

// ClientConfig contains configuration for connecting to a gateway.
type ClientConfig struct {
	// Host is the gateway address (host or host:port), without scheme
	Host string

	// Timeout for HTTP requests
	Timeout time.Duration

	// HeavyDelay is the minimum spacing before actuating operations
	// (open, close, calibrate, locker status)
	HeavyDelay time.Duration

	// LightDelay is the minimum spacing before status, list, sync and
	// update operations
	LightDelay time.Duration

	// Out receives the request and response trace. Defaults to os.Stdout.
	Out io.Writer
}

// DefaultConfig returns a ClientConfig with default values.
func DefaultConfig(host string) ClientConfig {
	return ClientConfig{
		Host:       host,
		Timeout:    DefaultTimeout,
		HeavyDelay: time.Second,
		LightDelay: 200 * time.Millisecond,
	}
}

// Client talks to a locker gateway over plain HTTP. It spaces consecutive
// requests to respect the gateway's rate limits, so a single Client must be
// reused across calls rather than created per call.
//
// Client is not safe for concurrent use.
type Client struct {
	host       string
	httpClient *http.Client
	heavyDelay time.Duration
	lightDelay time.Duration
	out        io.Writer

	// last is the completion time of the most recent request. The first
	// call on a fresh client never waits.
	last time.Time
}

// NewClient creates a new gateway client based on the configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Client{
		host:       cfg.Host,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		heavyDelay: cfg.HeavyDelay,
		lightDelay: cfg.LightDelay,
		out:        cfg.Out,
	}
}

// Open opens the locker.
func (c *Client) Open(cred Credentials) (any, error) {
	return c.actuate("open", cred)
}

// Close closes the locker.
func (c *Client) Close(cred Credentials) (any, error) {
	return c.actuate("close", cred)
}

// Calibrate runs the locker's calibration routine.
func (c *Client) Calibrate(cred Credentials) (any, error) {
	return c.actuate("calibrate", cred)
}

// LockerStatus queries the state of a single locker.
func (c *Client) LockerStatus(cred Credentials) (any, error) {
	return c.actuate("locker_status", cred)
}

// actuate issues one signed locker operation. The form is signed at call
// time so the timestamp matches the moment the request goes out.
func (c *Client) actuate(op string, cred Credentials) (any, error) {
	form := SignedForm(cred, time.Now())
	return c.call(op, http.MethodPost, "/"+op, form, c.heavyDelay, false)
}

// SynchronizeLocker asks the gateway to re-sync one locker. The gateway often
// answers these with an empty or non-JSON body on success.
func (c *Client) SynchronizeLocker(identifier string) (any, error) {
	form := url.Values{"identifier": {identifier}}
	return c.call("synchronize locker", http.MethodPost, "/locker/synchronize", form, c.lightDelay, true)
}

// UpdateLocker asks the gateway to push pending updates to one locker. Like
// SynchronizeLocker, success responses may carry no body.
func (c *Client) UpdateLocker(identifier string) (any, error) {
	form := url.Values{"identifier": {identifier}}
	return c.call("update locker", http.MethodPost, "/locker/update", form, c.lightDelay, true)
}

// Synchronize triggers a gateway-wide synchronization.
func (c *Client) Synchronize() (any, error) {
	return c.call("synchronize", http.MethodGet, "/synchronize", nil, c.lightDelay, false)
}

// Update triggers a gateway-wide update check. The endpoint expects a POST
// with an empty body.
func (c *Client) Update() (any, error) {
	return c.call("update", http.MethodPost, "/update", url.Values{}, c.lightDelay, false)
}

// Status reports the gateway's own status.
func (c *Client) Status() (any, error) {
	return c.call("status", http.MethodGet, "/status", nil, c.lightDelay, false)
}

// Search lists all lockers known to the gateway.
func (c *Client) Search() (any, error) {
	return c.call("search", http.MethodGet, "/lockers", nil, c.lightDelay, false)
}

// wait enforces the minimum spacing between consecutive requests. Only the
// remainder of the delay is slept, so time spent between calls counts.
func (c *Client) wait(delay time.Duration) {
	if delay <= 0 || c.last.IsZero() {
		return
	}
	if elapsed := time.Since(c.last); elapsed < delay {
		time.Sleep(delay - elapsed)
	}
}

// call performs one gateway request and decodes the JSON response. When
// tolerant is set, a 2xx response with an empty or non-JSON body counts as
// success; some firmware endpoints acknowledge commands that way. Tolerance
// never applies to error statuses.
func (c *Client) call(op, method, path string, form url.Values, delay time.Duration, tolerant bool) (any, error) {
	c.wait(delay)
	defer func() { c.last = time.Now() }()

	target := fmt.Sprintf("http://%s%s", c.host, path)
	fmt.Fprintf(c.out, "URL: %s\n", target)

	var body io.Reader
	if method == http.MethodPost {
		encoded := form.Encode()
		fmt.Fprintf(c.out, "Data: %s\n", encoded)
		body = strings.NewReader(encoded)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, &APIError{Kind: ErrKindTransport, Op: op, URL: target, Err: err}
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: classify(err), Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Kind: ErrKindStatus, Op: op, URL: target, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: ErrKindTransport, Op: op, URL: target, Err: err}
	}

	if len(data) == 0 {
		fmt.Fprintln(c.out, "Response: (empty)")
		if tolerant {
			fmt.Fprintln(c.out, "Success: command completed (empty response)")
			return map[string]any{"status": "ok"}, nil
		}
		return nil, &APIError{Kind: ErrKindDecode, Op: op, URL: target}
	}

	fmt.Fprintf(c.out, "Response: %s\n", data)

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		if tolerant {
			fmt.Fprintln(c.out, "Success: command completed (non-JSON response)")
			return map[string]any{"status": "ok"}, nil
		}
		return nil, &APIError{Kind: ErrKindDecode, Op: op, URL: target, Err: err}
	}

	return result, nil
}
