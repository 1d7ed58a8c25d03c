package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kubev2v/vsan-health/internal/report"
)

type reportCollector struct {
	report          *report.ClusterReport
	overallSeverity *prometheus.Desc
	capacityBytes   *prometheus.Desc
	findings        *prometheus.Desc
	collectorFailed *prometheus.Desc
	generatedAt     *prometheus.Desc
}

func newReportCollector(r *report.ClusterReport) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_%s", vsanHealth, name)
	}
	constLabels := prometheus.Labels{"cluster": r.Cluster}

	return &reportCollector{
		report: r,
		overallSeverity: prometheus.NewDesc(
			fqName("overall_severity"),
			"Overall severity of the last report: 0 green, 1 yellow, 2 unknown, 3 red.",
			nil,
			constLabels,
		),
		capacityBytes: prometheus.NewDesc(
			fqName("capacity_bytes"),
			"vSAN datastore capacity in bytes.",
			[]string{"kind"},
			constLabels,
		),
		findings: prometheus.NewDesc(
			fqName("findings"),
			"Number of findings in the last report.",
			[]string{"severity"},
			constLabels,
		),
		collectorFailed: prometheus.NewDesc(
			fqName("collector_failed"),
			"Whether the collector of a subsystem failed in the last report.",
			[]string{subsystemLabel},
			constLabels,
		),
		generatedAt: prometheus.NewDesc(
			fqName("report_timestamp_seconds"),
			"Unix time the last report was generated at.",
			nil,
			constLabels,
		),
	}
}

func (c *reportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.overallSeverity
	ch <- c.capacityBytes
	ch <- c.findings
	ch <- c.collectorFailed
	ch <- c.generatedAt
}

// Collect implements Collector.
func (c *reportCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.report
	ch <- prometheus.MustNewConstMetric(c.overallSeverity, prometheus.GaugeValue, severityValue(r.OverallSeverity))
	ch <- prometheus.MustNewConstMetric(c.generatedAt, prometheus.GaugeValue, float64(r.GeneratedAt.Unix()))

	if r.Capacity != nil {
		ch <- prometheus.MustNewConstMetric(c.capacityBytes, prometheus.GaugeValue, float64(r.Capacity.TotalBytes), "total")
		ch <- prometheus.MustNewConstMetric(c.capacityBytes, prometheus.GaugeValue, float64(r.Capacity.UsedBytes), "used")
		ch <- prometheus.MustNewConstMetric(c.capacityBytes, prometheus.GaugeValue, float64(r.Capacity.FreeBytes), "free")
	}

	for severity, count := range r.CountBySeverity() {
		ch <- prometheus.MustNewConstMetric(c.findings, prometheus.GaugeValue, float64(count), severity.String())
	}

	for _, subsystem := range collectorSubsystems {
		failed := 0.0
		if r.Failed(subsystem) {
			failed = 1
		}
		ch <- prometheus.MustNewConstMetric(c.collectorFailed, prometheus.GaugeValue, failed, string(subsystem))
	}
}

var collectorSubsystems = []report.Subsystem{
	report.SubsystemCapacity,
	report.SubsystemCluster,
	report.SubsystemHost,
	report.SubsystemController,
}

// severityValue follows the rollup order so that larger is worse.
func severityValue(s report.Severity) float64 {
	switch s {
	case report.SeverityGreen:
		return 0
	case report.SeverityYellow:
		return 1
	case report.SeverityRed:
		return 3
	default:
		return 2
	}
}
