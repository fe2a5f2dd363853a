// Locker gateway control tool.
//
// Usage:
//
//	lockctl [flags] <command>
//	lockctl [flags] <locker> <action>
//
// Gateway commands:
//
//	list, search   list all lockers known to the gateway
//	sync           trigger a gateway-wide synchronization
//	update         trigger a gateway-wide update check
//	status         show the gateway status
//
// Locker actions:
//
//	open, close, calibrate, status, sync, update
//
// A failed gateway call is reported on stdout but does not change the exit
// code; only usage and configuration mistakes do.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/mmomasters/tkgateway/config"
	"github.com/mmomasters/tkgateway/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lockctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(os.Stderr) }
	configPath := fs.String("config", config.DefaultFile, "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() == 0 {
		usage(os.Stderr)
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	config.LoadConfigFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	client := gateway.NewClient(cfg.ToClientConfig())

	cmd := fs.Arg(0)
	switch cmd {
	case "list", "search":
		return runSearch(client)
	case "sync":
		return report(client.Synchronize())
	case "update":
		return report(client.Update())
	case "status":
		return report(client.Status())
	}

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Need an action for the locker.")
		return 1
	}
	return runLocker(cfg, client, cmd, fs.Arg(1))
}

func runLocker(cfg *config.Config, client *gateway.Client, name, action string) int {
	locker, ok := cfg.Locker(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown locker: %s\n", name)
		return 1
	}
	if !locker.IsConfigured() {
		fmt.Fprintf(os.Stderr, "Locker %q still has placeholder credentials, edit your config\n", name)
		return 1
	}

	cred := gateway.Credentials(locker)
	switch action {
	case "open":
		return report(client.Open(cred))
	case "close":
		return report(client.Close(cred))
	case "calibrate":
		return report(client.Calibrate(cred))
	case "status":
		return report(client.LockerStatus(cred))
	case "sync":
		return report(client.SynchronizeLocker(locker.Identifier))
	case "update":
		return report(client.UpdateLocker(locker.Identifier))
	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", action)
		return 1
	}
}

// runSearch pretty-prints the locker list on top of the client's raw trace.
func runSearch(client *gateway.Client) int {
	res, err := client.Search()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 0
	}
	pretty, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return 0
	}
	fmt.Printf("Lockers: %s\n", pretty)
	return 0
}

// report prints the outcome of a gateway call. Success output comes from the
// client trace; failures get an extra Error line.
func report(_ any, err error) int {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	return 0
}

func usage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, `Usage:
  %[1]s [flags] <command>
  %[1]s [flags] <locker> <action>

Gateway commands:
  list, search   list all lockers known to the gateway
  sync           trigger a gateway-wide synchronization
  update         trigger a gateway-wide update check
  status         show the gateway status

Locker actions:
  open           open the locker
  close          close the locker
  calibrate      run the calibration routine
  status         query the locker state
  sync           re-sync this locker
  update         push pending updates to this locker

Flags:
  -config string   path to the config file (default %q)
`, name, config.DefaultFile)
}
