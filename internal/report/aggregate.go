package report

import (
	"fmt"
	"sort"
	"time"
)

const (
	DefaultCapacityWarnPercent     = 60
	DefaultCapacityCriticalPercent = 80

	capacityEntity = "vsan-datastore"
)

// CapacityThresholds grades the used-space percentage of the vSAN datastore.
// A zero threshold disables the corresponding level.
type CapacityThresholds struct {
	WarnPercent     float64
	CriticalPercent float64
}

func DefaultCapacityThresholds() CapacityThresholds {
	return CapacityThresholds{
		WarnPercent:     DefaultCapacityWarnPercent,
		CriticalPercent: DefaultCapacityCriticalPercent,
	}
}

func (t CapacityThresholds) grade(usedPct float64) Severity {
	switch {
	case t.CriticalPercent > 0 && usedPct >= t.CriticalPercent:
		return SeverityRed
	case t.WarnPercent > 0 && usedPct >= t.WarnPercent:
		return SeverityYellow
	default:
		return SeverityGreen
	}
}

// AggregateOptions carries the report metadata and the capacity grading policy.
type AggregateOptions struct {
	Cluster     string
	Server      string
	RunID       string
	GeneratedAt time.Time
	Thresholds  CapacityThresholds
}

// Aggregate merges the collector results into one ClusterReport.
//
// The overall severity is the maximum over all findings in the order
// Green < Yellow < Unknown < Red; every failed collector counts as Unknown.
// Aggregate never fails: a run where every collector failed is an Unknown report
// listing each failed subsystem. Findings are sorted by subsystem, entity and message
// so the result does not depend on the order collectors completed in.
func Aggregate(opts AggregateOptions, results ...PartialResult) *ClusterReport {
	r := &ClusterReport{
		Cluster:         opts.Cluster,
		Server:          opts.Server,
		RunID:           opts.RunID,
		GeneratedAt:     opts.GeneratedAt,
		Findings:        []Finding{},
		CollectorErrors: []Subsystem{},
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}

	failed := map[Subsystem]string{}
	succeeded := 0
	for _, res := range results {
		if res.Failed() {
			failed[res.Failure.Subsystem] = causeMessage(res.Failure)
			continue
		}
		succeeded++
		if res.Capacity != nil && r.Capacity == nil {
			r.Capacity = res.Capacity.clone()
		}
		r.Findings = append(r.Findings, res.Findings...)
	}

	if r.Capacity != nil {
		r.Findings = append(r.Findings, capacityFindings(r.Capacity, opts.Thresholds)...)
	}

	sortFindings(r.Findings)

	for subsystem := range failed {
		r.CollectorErrors = append(r.CollectorErrors, subsystem)
	}
	sort.Slice(r.CollectorErrors, func(i, j int) bool {
		return r.CollectorErrors[i].order() < r.CollectorErrors[j].order()
	})
	if len(failed) > 0 {
		r.FailureDetails = failed
	}

	r.OverallSeverity = rollup(r.Findings, len(failed), succeeded)
	return r
}

func rollup(findings []Finding, failures, successes int) Severity {
	if successes == 0 {
		return SeverityUnknown
	}
	overall := SeverityGreen
	for _, f := range findings {
		overall = MaxSeverity(overall, f.Severity)
	}
	if failures > 0 {
		overall = MaxSeverity(overall, SeverityUnknown)
	}
	return overall
}

// capacityFindings flags an inconsistent metric or grades its usage figures against
// thresholds. It sets c.Consistent.
func capacityFindings(c *CapacityMetric, thresholds CapacityThresholds) []Finding {
	c.Consistent = !c.exceedsTotal()
	if !c.Consistent {
		return []Finding{{
			Subsystem: SubsystemCapacity,
			EntityID:  capacityEntity,
			Severity:  SeverityYellow,
			Message: fmt.Sprintf("inconsistent capacity reported: used %d B + free %d B exceeds total %d B",
				c.UsedBytes, c.FreeBytes, c.TotalBytes),
		}}
	}

	pct, ok := c.UsedPercent()
	if !ok {
		return []Finding{{
			Subsystem: SubsystemCapacity,
			EntityID:  capacityEntity,
			Severity:  SeverityUnknown,
			Message:   "total capacity reported as 0 B",
		}}
	}
	findings := []Finding{{
		Subsystem: SubsystemCapacity,
		EntityID:  capacityEntity,
		Severity:  thresholds.grade(pct),
		Message:   fmt.Sprintf("%.2f%% used", pct),
	}}

	if c.UncommittedBytes != nil {
		pct := percent(*c.UncommittedBytes, c.TotalBytes)
		findings = append(findings, Finding{
			Subsystem: SubsystemCapacity,
			EntityID:  capacityEntity + "/uncommitted",
			Severity:  thresholds.grade(pct),
			Message:   fmt.Sprintf("%.2f%% of the total capacity is uncommitted", pct),
		})
	}

	// A side reported with a zero capacity is skipped.
	if de := c.DataEfficiency; de != nil {
		for _, part := range []struct {
			name        string
			used, total uint64
		}{
			{name: "logical", used: de.LogicalUsedBytes, total: de.LogicalBytes},
			{name: "physical", used: de.PhysicalUsedBytes, total: de.PhysicalBytes},
		} {
			if part.total == 0 {
				continue
			}
			pct := percent(part.used, part.total)
			findings = append(findings, Finding{
				Subsystem: SubsystemCapacity,
				EntityID:  capacityEntity + "/" + part.name,
				Severity:  thresholds.grade(pct),
				Message:   fmt.Sprintf("data efficiency: %.2f%% of the %s capacity used", pct, part.name),
			})
		}
	}
	return findings
}

// percent expects whole > 0.
func percent(part, whole uint64) float64 {
	return float64(part) / float64(whole) * 100
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Subsystem.order() != b.Subsystem.order() {
			return a.Subsystem.order() < b.Subsystem.order()
		}
		if a.Subsystem != b.Subsystem {
			return a.Subsystem < b.Subsystem
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return a.Severity.rank() < b.Severity.rank()
	})
}

func causeMessage(f *CollectorFailure) string {
	if f.Cause == nil {
		return "unknown error"
	}
	return f.Cause.Error()
}
