// Locker gateway benchmark tool.
//
// Times the gateway's endpoints, prints latency statistics with rate limit
// recommendations and writes a timestamped JSON report.
//
// Usage:
//
//	gwbench [flags] [host] [iterations]
//
// Flags:
//
//	-config string   Path to config file (default: config.json)
//	-push string     Pushgateway base URL to publish the results to
//	-job string      Pushgateway job name (default: tkgateway_benchmark)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mmomasters/tkgateway/bench"
	"github.com/mmomasters/tkgateway/config"
	"github.com/mmomasters/tkgateway/metrics"
)

func main() {
	configPath := flag.String("config", config.DefaultFile, "Path to config file")
	pushURL := flag.String("push", "", "Pushgateway base URL to publish the results to")
	job := flag.String("job", metrics.DefaultJob, "Pushgateway job name")
	flag.Parse()

	// The benchmark works without a config file; it falls back to the
	// default gateway address and skips the locker checks.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	config.LoadConfigFromEnv(cfg)

	host := cfg.Gateway
	if flag.NArg() > 0 {
		host = flag.Arg(0)
	} else {
		fmt.Printf("No host specified, using gateway from config: %s\n", host)
	}
	host = stripScheme(host)

	iterations := bench.DefaultIterations
	if flag.NArg() > 1 {
		n, err := strconv.Atoi(flag.Arg(1))
		if err != nil || n <= 0 {
			fmt.Printf("Invalid iterations count, using default: %d\n", iterations)
		} else {
			iterations = n
		}
	}

	rc := bench.DefaultRunnerConfig(host, cfg)
	rc.Iterations = iterations

	runner := bench.NewRunner(rc)
	runner.RunSuite()

	report, _, err := runner.Report(".")
	if err != nil {
		log.Fatalf("Failed to write benchmark report: %v", err)
	}

	if *pushURL != "" && report != nil {
		if err := metrics.Push(*pushURL, *job, report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to push metrics: %v\n", err)
		} else {
			fmt.Printf("Metrics pushed to %s\n", *pushURL)
		}
	}
}

// stripScheme removes a leading scheme and trailing slash from a host
// argument, keeping any port.
func stripScheme(host string) string {
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimSuffix(host, "/")
}
