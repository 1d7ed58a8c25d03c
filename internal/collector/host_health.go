package collector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
)

const (
	connectionConnected     = "connected"
	connectionDisconnected  = "disconnected"
	connectionNotResponding = "notResponding"
)

type HostHealthCollector struct {
	api  API
	pool *Pool
}

func NewHostHealthCollector(api API, pool *Pool) *HostHealthCollector {
	if pool == nil {
		pool = NewPool(DefaultConcurrency)
	}
	return &HostHealthCollector{api: api, pool: pool}
}

func (c *HostHealthCollector) Subsystem() report.Subsystem {
	return report.SubsystemHost
}

type hostOutcome struct {
	findings []report.Finding
	err      error
}

// Collect grades every member host and its disk groups. A host that cannot be queried
// gets an Unknown finding; the collector fails only when no host could be queried.
func (c *HostHealthCollector) Collect(ctx context.Context, cluster *vsphere.ClusterHandle) report.PartialResult {
	if len(cluster.Hosts) == 0 {
		return report.NewFailedResult(report.SubsystemHost, fmt.Errorf("cluster %s has no hosts", cluster.Name))
	}

	outcomes := make([]hostOutcome, len(cluster.Hosts))
	err := c.pool.Run(ctx, len(cluster.Hosts), func(ctx context.Context, i int) error {
		outcomes[i] = c.collectHost(ctx, cluster.Hosts[i])
		return nil
	})
	if err != nil {
		return report.NewFailedResult(report.SubsystemHost, err)
	}

	var (
		findings []report.Finding
		firstErr error
		failed   int
	)
	for _, o := range outcomes {
		findings = append(findings, o.findings...)
		if o.err != nil {
			failed++
			if firstErr == nil {
				firstErr = o.err
			}
		}
	}
	if failed == len(outcomes) {
		return report.NewFailedResult(report.SubsystemHost, fmt.Errorf("all %d hosts failed: %w", failed, firstErr))
	}
	return report.NewFindingsResult(report.SubsystemHost, findings)
}

func (c *HostHealthCollector) collectHost(ctx context.Context, host vsphere.HostRef) hostOutcome {
	state, err := c.api.HostState(ctx, host.Ref)
	if err != nil {
		zap.S().Named("collector").Warnw("host query failed", "host", host.Name, "error", err)
		return hostOutcome{
			findings: []report.Finding{{
				Subsystem: report.SubsystemHost,
				EntityID:  host.Name,
				Severity:  report.SeverityUnknown,
				Message:   "host query failed: " + err.Error(),
			}},
			err: fmt.Errorf("host %s: %w", host.Name, err),
		}
	}

	findings := []report.Finding{gradeHost(host.Name, state)}
	if state.ConnectionState == connectionConnected {
		findings = append(findings, c.diskGroupFindings(ctx, host.Name, state)...)
	}
	return hostOutcome{findings: findings}
}

func gradeHost(name string, state *vsphere.HostState) report.Finding {
	severity := report.ParseSeverity(state.OverallStatus)
	notes := []string{"overall status " + statusText(state.OverallStatus)}

	switch state.ConnectionState {
	case connectionConnected:
	case connectionDisconnected, connectionNotResponding:
		severity = report.SeverityRed
		notes = append(notes, "host is "+state.ConnectionState)
	default:
		severity = report.MaxSeverity(severity, report.SeverityUnknown)
		notes = append(notes, "connection state "+statusText(state.ConnectionState))
	}

	if state.InMaintenanceMode != nil && *state.InMaintenanceMode {
		severity = report.MaxSeverity(severity, report.SeverityYellow)
		notes = append(notes, "in maintenance mode")
	}

	if state.VsanEnabled == nil || !*state.VsanEnabled {
		severity = report.MaxSeverity(severity, report.SeverityYellow)
		notes = append(notes, "vSAN not enabled on host")
	}

	return report.Finding{
		Subsystem: report.SubsystemHost,
		EntityID:  name,
		Severity:  severity,
		Message:   strings.Join(notes, ", "),
	}
}

func (c *HostHealthCollector) diskGroupFindings(ctx context.Context, host string, state *vsphere.HostState) []report.Finding {
	if len(state.DiskGroups) == 0 || state.VsanSystem == nil {
		return nil
	}

	var disks []string
	for _, g := range state.DiskGroups {
		disks = append(disks, g.Disks()...)
	}

	results, err := c.api.DiskStates(ctx, *state.VsanSystem, disks)
	if err != nil {
		zap.S().Named("collector").Warnw("disk query failed", "host", host, "error", err)
		return []report.Finding{{
			Subsystem: report.SubsystemDiskGroup,
			EntityID:  host + "/diskgroups",
			Severity:  report.SeverityUnknown,
			Message:   "disk query failed: " + err.Error(),
		}}
	}

	byName := make(map[string]vsphere.DiskState, len(results))
	for _, r := range results {
		byName[r.CanonicalName] = r
	}

	findings := make([]report.Finding, 0, len(state.DiskGroups))
	for _, g := range state.DiskGroups {
		findings = append(findings, gradeDiskGroup(host, g, byName))
	}
	return findings
}

func gradeDiskGroup(host string, g vsphere.DiskGroup, disks map[string]vsphere.DiskState) report.Finding {
	severity := report.SeverityGreen
	var notes []string

	if g.Mounted != nil && !*g.Mounted {
		severity = report.SeverityRed
		notes = append(notes, "disk group unmounted")
	}

	for _, name := range g.Disks() {
		d, ok := disks[name]
		switch {
		case !ok:
			severity = report.MaxSeverity(severity, report.SeverityUnknown)
			notes = append(notes, name+": no result")
		case d.Error != "":
			severity = report.SeverityRed
			notes = append(notes, name+": "+d.Error)
		case d.Degraded != nil && *d.Degraded:
			severity = report.MaxSeverity(severity, report.SeverityYellow)
			notes = append(notes, name+": degraded")
		}
	}

	if len(notes) == 0 {
		notes = append(notes, fmt.Sprintf("%d disks healthy", len(g.Disks())))
	}
	return report.Finding{
		Subsystem: report.SubsystemDiskGroup,
		EntityID:  host + "/" + g.CacheDisk,
		Severity:  severity,
		Message:   strings.Join(notes, ", "),
	}
}
