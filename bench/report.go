package bench

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// The stdlib-compatible config keeps full float precision in report files.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the serialized outcome of one benchmark run.
type Report struct {
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
	Summary   Summary   `json:"summary"`
}

// Summary aggregates a run.
type Summary struct {
	TotalRequests int `json:"total_requests"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`

	// AvgResponseTime is the mean over successful requests, null when the
	// run had none.
	AvgResponseTime *float64 `json:"avg_response_time"`
}

// Recommendation is the delay guidance derived from a run. The numbers are
// heuristics with floors, not guarantees.
type Recommendation struct {
	// HeavyDelay is the suggested spacing in seconds between actuating
	// operations.
	HeavyDelay float64

	// LightDelay is the suggested spacing in seconds between light
	// operations and discovery probes.
	LightDelay float64

	// MaxRate is the sustained request rate implied by HeavyDelay.
	MaxRate float64

	// Workers is the suggested discovery worker count.
	Workers int
}

// Recommend converts observed means into delay guidance. Heavy operations get
// twice the overall mean with a one second floor; light operations get half
// the gateway-endpoint mean with a 200ms floor.
func Recommend(overallMean, gatewayMean float64) Recommendation {
	heavy := math.Max(2*overallMean, 1.0)
	light := math.Max(0.5*gatewayMean, 0.2)
	return Recommendation{
		HeavyDelay: heavy,
		LightDelay: light,
		MaxRate:    1 / heavy,
		Workers:    min(int(1/light), 5),
	}
}

// SuccessTimes returns the response times of all successful requests.
func (rep *Report) SuccessTimes() []float64 {
	var times []float64
	for _, res := range rep.Results {
		if res.Success {
			times = append(times, res.ResponseTime)
		}
	}
	return times
}

// gatewayTimes returns the response times of successful gateway-wide
// requests, leaving out the per-locker checks.
func (rep *Report) gatewayTimes() []float64 {
	var times []float64
	for _, res := range rep.Results {
		if res.Success && res.Locker == "" {
			times = append(times, res.ResponseTime)
		}
	}
	return times
}

// Recommendation derives the delay guidance for this run. ok is false when
// the run had no successful requests. Light guidance is referenced to the
// gateway-wide endpoints when the run has any, the whole run otherwise.
func (rep *Report) Recommendation() (Recommendation, bool) {
	times := rep.SuccessTimes()
	if len(times) == 0 {
		return Recommendation{}, false
	}
	reference := rep.gatewayTimes()
	if len(reference) == 0 {
		reference = times
	}
	return Recommend(Mean(times), Mean(reference)), true
}

// Report aggregates the recorded results, prints the summary and
// recommendations, and writes the timestamped JSON report file into dir.
// It returns the report and the path of the written file.
func (r *Runner) Report(dir string) (*Report, string, error) {
	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(r.out, "BENCHMARK REPORT")
	fmt.Fprintln(r.out, strings.Repeat("=", 60))

	if len(r.results) == 0 {
		fmt.Fprintln(r.out, "No benchmark data available")
		return nil, "", nil
	}

	rep := &Report{
		Host:      r.host,
		Timestamp: time.Now(),
		Results:   r.results,
	}

	times := rep.SuccessTimes()
	rep.Summary = Summary{
		TotalRequests: len(r.results),
		Successful:    len(times),
		Failed:        len(r.results) - len(times),
	}
	if len(times) > 0 {
		avg := Mean(times)
		rep.Summary.AvgResponseTime = &avg
	}

	fmt.Fprintf(r.out, "Total requests: %d\n", rep.Summary.TotalRequests)
	fmt.Fprintf(r.out, "Successful: %d\n", rep.Summary.Successful)
	fmt.Fprintf(r.out, "Failed: %d\n", rep.Summary.Failed)

	if len(times) > 0 {
		fmt.Fprintln(r.out, "\nResponse times (successful requests):")
		fmt.Fprintf(r.out, "  mean:   %.3fs\n", Mean(times))
		fmt.Fprintf(r.out, "  median: %.3fs\n", Median(times))
		fmt.Fprintf(r.out, "  min:    %.3fs\n", Min(times))
		fmt.Fprintf(r.out, "  max:    %.3fs\n", Max(times))
	}

	if rec, ok := rep.Recommendation(); ok {
		fmt.Fprintln(r.out, "\nRate limit recommendations:")
		fmt.Fprintf(r.out, "  heavy operations: one per %.1fs\n", rec.HeavyDelay)
		fmt.Fprintf(r.out, "  light operations: one per %.1fs\n", rec.LightDelay)
		fmt.Fprintf(r.out, "  max sustained rate: %.2f req/s\n", rec.MaxRate)
		fmt.Fprintf(r.out, "  discovery workers: %d\n", rec.Workers)
	}

	name := fmt.Sprintf("benchmark_report_%s.json", rep.Timestamp.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return rep, "", fmt.Errorf("failed to encode benchmark report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return rep, "", fmt.Errorf("failed to write benchmark report: %w", err)
	}

	fmt.Fprintf(r.out, "\nDetailed report saved to: %s\n", path)
	return rep, path, nil
}
