package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vmware/govmomi/vim25/types"
	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

const clomdAlive = "alive"

var clusterHealthFields = []string{
	vsan.FieldOverallHealth,
	vsan.FieldClusterStatus,
	vsan.FieldGroups,
	vsan.FieldClomdLiveness,
	vsan.FieldDiskBalance,
	vsan.FieldPerfsvcHealth,
	vsan.FieldTimestamp,
}

type ClusterHealthCollector struct {
	api            API
	fetchFromCache bool
}

func NewClusterHealthCollector(api API, fetchFromCache bool) *ClusterHealthCollector {
	return &ClusterHealthCollector{api: api, fetchFromCache: fetchFromCache}
}

func (c *ClusterHealthCollector) Subsystem() report.Subsystem {
	return report.SubsystemCluster
}

func (c *ClusterHealthCollector) Collect(ctx context.Context, cluster *vsphere.ClusterHandle) report.PartialResult {
	summary, err := c.api.HealthSummary(ctx, cluster.Ref, vsan.HealthSummarySpec{
		Fields:         clusterHealthFields,
		FetchFromCache: c.fetchFromCache,
	})
	if err != nil {
		return report.NewFailedResult(report.SubsystemCluster, err)
	}

	findings := clusterFindings(summary)
	if len(findings) == 0 {
		return report.NewFailedResult(report.SubsystemCluster, vsphere.NewErrPropertyMissing("clusterHealthSummary"))
	}
	return report.NewFindingsResult(report.SubsystemCluster, findings)
}

func clusterFindings(s *vsantypes.VsanClusterHealthSummary) []report.Finding {
	var findings []report.Finding
	add := func(entity string, severity report.Severity, format string, args ...any) {
		findings = append(findings, report.Finding{
			Subsystem: report.SubsystemCluster,
			EntityID:  entity,
			Severity:  severity,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	if s.OverallHealth != "" {
		msg := s.OverallHealthDescription
		if msg == "" {
			msg = s.OverallHealth
		}
		add("overall", report.ParseSeverity(s.OverallHealth), "overall health: %s", msg)
	}

	if st := s.ClusterStatus; st != nil {
		severity := report.ParseSeverity(st.Status)
		var notGreen []string
		for _, h := range st.TrackedHostsStatus {
			if report.ParseSeverity(h.Status) != report.SeverityGreen {
				notGreen = append(notGreen, h.Hostname)
			}
		}
		msg := fmt.Sprintf("cluster status %s, %d tracked hosts", statusText(st.Status), len(st.TrackedHostsStatus))
		if len(notGreen) > 0 {
			msg += fmt.Sprintf(", not green: %s", strings.Join(notGreen, ", "))
		}
		if len(st.UntrackedHosts) > 0 {
			severity = report.MaxSeverity(severity, report.SeverityYellow)
			msg += fmt.Sprintf(", untracked: %s", strings.Join(st.UntrackedHosts, ", "))
		}
		add("status", severity, "%s", msg)
	}

	for _, g := range s.Groups {
		if len(g.GroupTests) == 0 {
			add(g.GroupId, report.ParseSeverity(g.GroupHealth), "%s: %s", g.GroupName, statusText(g.GroupHealth))
			continue
		}
		for _, t := range g.GroupTests {
			add(g.GroupId+"/"+t.TestId, report.ParseSeverity(t.TestHealth), "%s: %s", g.GroupName, t.TestName)
		}
	}

	if cl := s.ClomdLiveness; cl != nil {
		for _, h := range cl.ClomdLivenessResult {
			severity, msg := clomdVerdict(h)
			add("clomd/"+h.Hostname, severity, "%s", msg)
		}
	}

	if b := s.DiskBalance; b != nil {
		for _, d := range b.Disks {
			severity, msg := diskBalanceVerdict(d, b.VarianceThreshold)
			add("diskbalance/"+d.Uuid, severity, "%s", msg)
		}
	}

	if p := s.PerfsvcHealth; p != nil {
		severity, msg := perfsvcVerdict(p)
		add("perfsvc", severity, "%s", msg)
	}

	return findings
}

func clomdVerdict(h vsantypes.VsanHostClomdLivenessResult) (report.Severity, string) {
	if h.Error != nil {
		return report.SeverityUnknown, "clomd liveness query failed: " + faultMessage(h.Error)
	}
	switch strings.ToLower(h.ClomdStat) {
	case clomdAlive:
		return report.SeverityGreen, "clomd is alive"
	case "", "unknown":
		return report.SeverityUnknown, "clomd state unknown"
	default:
		return report.SeverityRed, "clomd is " + h.ClomdStat
	}
}

// diskBalanceVerdict grades a capacity disk yellow once its variance from the cluster
// mean fullness exceeds the rebalance threshold of the endpoint.
func diskBalanceVerdict(d vsantypes.VsanClusterBalancePerDiskInfo, threshold int64) (report.Severity, string) {
	msg := fmt.Sprintf("fullness %d%%, variance %d%% (threshold %d%%)", d.Fullness, d.Variance, threshold)
	if d.Variance > threshold {
		if d.DataToMoveB > 0 {
			msg += fmt.Sprintf(", %s to move", humanize.IBytes(uint64(d.DataToMoveB)))
		}
		return report.SeverityYellow, "disk imbalanced: " + msg
	}
	return report.SeverityGreen, "disk balanced: " + msg
}

func perfsvcVerdict(p *vsantypes.VsanPerfsvcHealthResult) (report.Severity, string) {
	if p.EnoughFreeSpace == nil || p.StatsObjectConsistent == nil {
		return report.SeverityUnknown, "performance service health not reported"
	}
	var issues []string
	if !*p.EnoughFreeSpace {
		issues = append(issues, "not enough free space for the stats object")
	}
	if !*p.StatsObjectConsistent {
		issues = append(issues, "stats object inconsistent")
	}
	if len(issues) > 0 {
		return report.SeverityYellow, "performance service: " + strings.Join(issues, ", ")
	}
	return report.SeverityGreen, "performance service healthy"
}

// faultMessage falls back to the fault type when the endpoint sent no message.
func faultMessage(f types.BaseMethodFault) string {
	if mf := f.GetMethodFault(); mf != nil {
		for _, m := range mf.FaultMessage {
			if m.Message != "" {
				return m.Message
			}
		}
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", f), "*types.")
}

func statusText(status string) string {
	if status == "" {
		return "not reported"
	}
	return status
}
