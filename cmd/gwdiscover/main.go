// Locker gateway discovery tool.
//
// Scans a host for open candidate ports, then probes each open port for the
// gateway's HTTP endpoints.
//
// Usage:
//
//	gwdiscover [flags] <host>
//
// Flags:
//
//	-workers int      Concurrent port probes (default: 10)
//	-delay duration   Pause between endpoint probes (default: none)
//	-probes string    YAML probe plan overriding the built-in ports and paths
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmomasters/tkgateway/discover"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gwdiscover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	workers := fs.Int("workers", discover.DefaultWorkers, "Concurrent port probes")
	delay := fs.Duration("delay", 0, "Pause between endpoint probes")
	probesPath := fs.String("probes", "", "YAML probe plan overriding the built-in ports and paths")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 1 {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <host>\n", name)
		fmt.Fprintf(os.Stderr, "Example: %s 192.168.0.129\n", name)
		return 1
	}

	cfg := discover.DefaultScanConfig(discover.CleanHost(fs.Arg(0)))
	cfg.Workers = *workers
	cfg.Delay = *delay
	if *probesPath != "" {
		plan, err := discover.LoadPlan(*probesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load probe plan: %v\n", err)
			return 1
		}
		cfg.Plan = plan
	}

	fmt.Println("Locker Gateway Discovery")
	fmt.Printf("Target: %s\n\n", cfg.Host)

	report, err := discover.NewScanner(cfg).Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return 1
	}

	report.WriteSummary(os.Stdout)
	fmt.Println("\nScan complete.")
	return 0
}
