package discover

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Candidate ports: common web ports, development server ports and the
// vendor's known gateway listener.
var defaultPorts = []int{80, 443, 8080, 8443, 8888, 9090, 9856, 3000, 5000, 8000, 8001, 9000, 9001}

// Candidate GET paths. Read-only endpoints a gateway is likely to expose.
var defaultGetPaths = []string{
	"/status",
	"/synchronize",
	"/lockers",
	"/version",
	"/info",
	"/health",
	"/api",
	"/api/status",
	"/api/lockers",
	"/locks",
	"/devices",
	"/",
}

// Candidate POST paths. Command endpoints, probed with an empty body.
var defaultPostPaths = []string{
	"/open",
	"/close",
	"/calibrate",
	"/locker_status",
	"/locker/synchronize",
	"/locker/update",
	"/update",
	"/lock",
	"/unlock",
	"/sync",
	"/api/open",
	"/api/close",
	"/api/lock",
	"/api/unlock",
}

// Plan is the set of ports and candidate paths a scan probes.
type Plan struct {
	// Ports to test for open TCP listeners
	Ports []int `yaml:"ports"`

	// Get paths probed with GET on every open port
	Get []string `yaml:"get"`

	// Post paths probed with an empty-body POST on every open port
	Post []string `yaml:"post"`
}

// DefaultPlan returns the built-in probe plan.
func DefaultPlan() Plan {
	return Plan{
		Ports: append([]int(nil), defaultPorts...),
		Get:   append([]string(nil), defaultGetPaths...),
		Post:  append([]string(nil), defaultPostPaths...),
	}
}

// LoadPlan loads a probe plan from a YAML file. Sections omitted from the
// file keep the built-in candidates.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan()

	data, err := os.ReadFile(path)
	if err != nil {
		return plan, fmt.Errorf("failed to read probe plan: %w", err)
	}

	if err := yaml.Unmarshal(data, &plan); err != nil {
		return plan, fmt.Errorf("failed to parse probe plan: %w", err)
	}

	plan.Ports = dedupePorts(plan.Ports)
	return plan, nil
}

// dedupePorts drops repeated ports while keeping the original order.
func dedupePorts(ports []int) []int {
	seen := make(map[int]bool, len(ports))
	out := ports[:0]
	for _, p := range ports {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
