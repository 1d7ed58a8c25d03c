package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kubev2v/vsan-health/internal/report"
)

// WriteTextfile writes the collector metrics of this run and the gauges derived from r
// to path in the Prometheus text format. The file is replaced atomically.
func WriteTextfile(path string, r *report.ClusterReport) error {
	reportRegistry := prometheus.NewRegistry()
	if err := reportRegistry.Register(newReportCollector(r)); err != nil {
		return fmt.Errorf("failed to register report metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.Gatherers{registry, reportRegistry}); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
