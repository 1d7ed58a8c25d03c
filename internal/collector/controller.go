package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

const hclDatabaseEntity = "hcl-database"

// ControllerCollector checks the storage controllers of every host against the
// VMware compatibility guide (HCL) as evaluated by the vSAN health service.
type ControllerCollector struct {
	api            API
	fetchFromCache bool
}

func NewControllerCollector(api API, fetchFromCache bool) *ControllerCollector {
	return &ControllerCollector{api: api, fetchFromCache: fetchFromCache}
}

func (c *ControllerCollector) Subsystem() report.Subsystem {
	return report.SubsystemController
}

func (c *ControllerCollector) Collect(ctx context.Context, cluster *vsphere.ClusterHandle) report.PartialResult {
	summary, err := c.api.HealthSummary(ctx, cluster.Ref, vsan.HealthSummarySpec{
		Fields:         []string{vsan.FieldHclInfo},
		FetchFromCache: c.fetchFromCache,
	})
	if err != nil {
		return report.NewFailedResult(report.SubsystemController, err)
	}
	if summary.HclInfo == nil {
		return report.NewFailedResult(report.SubsystemController, vsphere.NewErrPropertyMissing("hclInfo"))
	}
	return report.NewFindingsResult(report.SubsystemController, controllerFindings(summary.HclInfo))
}

func controllerFindings(info *vsantypes.VsanClusterHclInfo) []report.Finding {
	findings := []report.Finding{}
	if f, ok := hclDatabaseFinding(info); ok {
		findings = append(findings, f)
	}

	for _, host := range info.HostResults {
		if host.Error != nil {
			findings = append(findings, report.Finding{
				Subsystem: report.SubsystemController,
				EntityID:  host.Hostname,
				Severity:  report.SeverityUnknown,
				Message:   "HCL check failed: " + faultMessage(host.Error),
			})
			continue
		}
		for _, ctrl := range host.Controllers {
			if ctrl.UsedByVsan != nil && !*ctrl.UsedByVsan {
				continue
			}
			findings = append(findings, gradeController(host.Hostname, ctrl))
		}
	}
	return findings
}

func hclDatabaseFinding(info *vsantypes.VsanClusterHclInfo) (report.Finding, bool) {
	if info.HclDbAgeHealth == "" && info.HclDbLastUpdate == nil {
		return report.Finding{}, false
	}
	msg := "HCL database age " + statusText(info.HclDbAgeHealth)
	if info.HclDbLastUpdate != nil {
		msg += ", last updated " + info.HclDbLastUpdate.UTC().Format(time.RFC3339)
	}
	return report.Finding{
		Subsystem: report.SubsystemController,
		EntityID:  hclDatabaseEntity,
		Severity:  report.ParseSeverity(info.HclDbAgeHealth),
		Message:   msg,
	}, true
}

// gradeController requires deviceOnHcl and driverVersionSupported. The firmware check
// is graded only when the endpoint reports it.
func gradeController(host string, ctrl vsantypes.VsanHclControllerInfo) report.Finding {
	device := ctrl.DeviceName
	if device == "" {
		device = ctrl.DeviceDisplayName
	}
	f := report.Finding{
		Subsystem: report.SubsystemController,
		EntityID:  host + "/" + device,
		Severity:  report.SeverityGreen,
	}

	var notes []string
	switch {
	case ctrl.DeviceOnHcl == nil:
		f.Severity = report.SeverityUnknown
		notes = append(notes, "HCL status not reported")
	case !*ctrl.DeviceOnHcl:
		f.Severity = report.SeverityRed
		notes = append(notes, "device not on the HCL")
	}

	switch {
	case ctrl.DriverVersionSupported == nil:
		f.Severity = report.MaxSeverity(f.Severity, report.SeverityUnknown)
		notes = append(notes, "driver support not reported")
	case !*ctrl.DriverVersionSupported:
		f.Severity = report.MaxSeverity(f.Severity, report.SeverityYellow)
		notes = append(notes, fmt.Sprintf("driver %s %s not supported%s",
			ctrl.DriverName, ctrl.DriverVersion, supportedList(ctrl.DriverVersionsOnHcl)))
	}

	if ctrl.FwVersionSupported != nil && !*ctrl.FwVersionSupported {
		f.Severity = report.MaxSeverity(f.Severity, report.SeverityYellow)
		notes = append(notes, fmt.Sprintf("firmware %s not supported%s", ctrl.FwVersion, supportedList(ctrl.FwVersionOnHcl)))
	}

	if len(notes) == 0 {
		notes = append(notes, fmt.Sprintf("on HCL, driver %s %s", ctrl.DriverName, ctrl.DriverVersion))
		if ctrl.FwVersion != "" {
			notes = append(notes, "firmware "+ctrl.FwVersion)
		}
	}
	f.Message = strings.Join(notes, ", ")
	return f
}

func supportedList(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return " (supported: " + strings.Join(versions, ", ") + ")"
}
