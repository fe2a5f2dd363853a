// Package metrics publishes finished benchmark reports to a Prometheus
// Pushgateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mmomasters/tkgateway/bench"
)

// DefaultJob is the Pushgateway job name used when none is given.
const DefaultJob = "tkgateway_benchmark"

// ReportCollector implements prometheus.Collector over a finished benchmark
// report.
type ReportCollector struct {
	report *bench.Report

	// Request counts
	requestsDesc *prometheus.Desc

	// Latency statistics over successful requests
	responseTimeDesc *prometheus.Desc

	// Derived rate limit guidance
	recommendedDelayDesc *prometheus.Desc

	// Run completion time
	timestampDesc *prometheus.Desc
}

// NewReportCollector creates a collector for the given report.
func NewReportCollector(report *bench.Report) *ReportCollector {
	labels := []string{"host"}

	return &ReportCollector{
		report: report,

		requestsDesc: prometheus.NewDesc(
			"tkgateway_benchmark_requests",
			"Requests issued by the benchmark run, by result",
			append(labels, "result"),
			nil,
		),
		responseTimeDesc: prometheus.NewDesc(
			"tkgateway_benchmark_response_seconds",
			"Response time statistics over successful requests",
			append(labels, "stat"),
			nil,
		),
		recommendedDelayDesc: prometheus.NewDesc(
			"tkgateway_benchmark_recommended_delay_seconds",
			"Recommended spacing between gateway requests, by operation tier",
			append(labels, "tier"),
			nil,
		),
		timestampDesc: prometheus.NewDesc(
			"tkgateway_benchmark_timestamp_seconds",
			"Completion time of the benchmark run as a Unix timestamp",
			labels,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsDesc
	ch <- c.responseTimeDesc
	ch <- c.recommendedDelayDesc
	ch <- c.timestampDesc
}

// Collect implements prometheus.Collector.
func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	host := c.report.Host

	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.GaugeValue,
		float64(c.report.Summary.Successful), host, "success")
	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.GaugeValue,
		float64(c.report.Summary.Failed), host, "failure")
	ch <- prometheus.MustNewConstMetric(c.timestampDesc, prometheus.GaugeValue,
		float64(c.report.Timestamp.Unix()), host)

	times := c.report.SuccessTimes()
	if len(times) == 0 {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.responseTimeDesc, prometheus.GaugeValue, bench.Mean(times), host, "mean")
	ch <- prometheus.MustNewConstMetric(c.responseTimeDesc, prometheus.GaugeValue, bench.Median(times), host, "median")
	ch <- prometheus.MustNewConstMetric(c.responseTimeDesc, prometheus.GaugeValue, bench.Min(times), host, "min")
	ch <- prometheus.MustNewConstMetric(c.responseTimeDesc, prometheus.GaugeValue, bench.Max(times), host, "max")
	ch <- prometheus.MustNewConstMetric(c.responseTimeDesc, prometheus.GaugeValue, bench.StdDev(times), host, "stddev")

	if rec, ok := c.report.Recommendation(); ok {
		ch <- prometheus.MustNewConstMetric(c.recommendedDelayDesc, prometheus.GaugeValue, rec.HeavyDelay, host, "heavy")
		ch <- prometheus.MustNewConstMetric(c.recommendedDelayDesc, prometheus.GaugeValue, rec.LightDelay, host, "light")
	}
}

// Push publishes the report's metrics to the Pushgateway at url under the
// given job name.
func Push(url, job string, report *bench.Report) error {
	if job == "" {
		job = DefaultJob
	}
	return push.New(url, job).
		Collector(NewReportCollector(report)).
		Push()
}
