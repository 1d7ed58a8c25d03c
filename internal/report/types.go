package report

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the health verdict of a single finding or of a whole report.
// The zero value is SeverityUnknown: a finding nobody graded carries no verdict.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityGreen
	SeverityYellow
	SeverityRed
)

// rank orders severities for the rollup: Green < Yellow < Unknown < Red.
func (s Severity) rank() int {
	switch s {
	case SeverityGreen:
		return 0
	case SeverityYellow:
		return 1
	case SeverityRed:
		return 3
	default:
		return 2
	}
}

// Worse reports whether s ranks above o in the rollup order.
func (s Severity) Worse(o Severity) bool {
	return s.rank() > o.rank()
}

// MaxSeverity returns the most serious of the given severities.
// With no arguments it returns SeverityGreen.
func MaxSeverity(severities ...Severity) Severity {
	worst := SeverityGreen
	for _, s := range severities {
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}

func (s Severity) String() string {
	switch s {
	case SeverityGreen:
		return "green"
	case SeverityYellow:
		return "yellow"
	case SeverityRed:
		return "red"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity maps the green/yellow/red status strings used by vSAN to a Severity.
// Anything it does not recognize is SeverityUnknown, never an error, so that values
// added by newer endpoints do not break collection.
func ParseSeverity(value string) Severity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "green":
		return SeverityGreen
	case "yellow":
		return SeverityYellow
	case "red":
		return SeverityRed
	default:
		return SeverityUnknown
	}
}

// Subsystem identifies both the collector that produced a result and the kind
// of entity a finding is about.
type Subsystem string

const (
	SubsystemCapacity   Subsystem = "capacity"
	SubsystemCluster    Subsystem = "cluster"
	SubsystemHost       Subsystem = "host"
	SubsystemDiskGroup  Subsystem = "diskgroup"
	SubsystemController Subsystem = "controller"
)

var subsystemOrder = map[Subsystem]int{
	SubsystemCapacity:   0,
	SubsystemCluster:    1,
	SubsystemHost:       2,
	SubsystemDiskGroup:  3,
	SubsystemController: 4,
}

// order returns the position of the subsystem in reports. Unknown subsystems sort last.
func (s Subsystem) order() int {
	if o, ok := subsystemOrder[s]; ok {
		return o
	}
	return len(subsystemOrder)
}

// Finding is one graded observation about one entity.
type Finding struct {
	Subsystem Subsystem `json:"subsystem"`
	EntityID  string    `json:"entityId"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// CapacityMetric is the aggregate vSAN datastore space usage in bytes.
type CapacityMetric struct {
	TotalBytes uint64 `json:"totalBytes"`
	UsedBytes  uint64 `json:"usedBytes"`
	FreeBytes  uint64 `json:"freeBytes"`
	// Consistent is set by Aggregate. It is false when used + free exceeds total.
	Consistent bool `json:"consistent"`

	UncommittedBytes *uint64            `json:"uncommittedBytes,omitempty"`
	DataEfficiency   *DataEfficiency    `json:"dataEfficiency,omitempty"`
	ObjectTypes      []ObjectSpaceUsage `json:"objectTypes,omitempty"`
}

// DataEfficiency is reported only when deduplication and compression are enabled.
type DataEfficiency struct {
	MetadataBytes     uint64 `json:"metadataBytes"`
	LogicalBytes      uint64 `json:"logicalBytes"`
	LogicalUsedBytes  uint64 `json:"logicalUsedBytes"`
	PhysicalBytes     uint64 `json:"physicalBytes"`
	PhysicalUsedBytes uint64 `json:"physicalUsedBytes"`
}

// ObjectSpaceUsage is the space consumed by one vSAN object type (vmdk, namespace, ...).
type ObjectSpaceUsage struct {
	ObjectType        string `json:"objectType"`
	UsedBytes         uint64 `json:"usedBytes"`
	ReservedBytes     uint64 `json:"reservedBytes"`
	OverheadBytes     uint64 `json:"overheadBytes"`
	OverReservedBytes uint64 `json:"overReservedBytes"`
}

// exceedsTotal reports whether used + free is larger than total without overflowing.
func (c CapacityMetric) exceedsTotal() bool {
	if c.UsedBytes > c.TotalBytes {
		return true
	}
	return c.FreeBytes > c.TotalBytes-c.UsedBytes
}

// UsedPercent returns used/total as a percentage. ok is false when total is zero.
func (c CapacityMetric) UsedPercent() (pct float64, ok bool) {
	if c.TotalBytes == 0 {
		return 0, false
	}
	return float64(c.UsedBytes) / float64(c.TotalBytes) * 100, true
}

func (c CapacityMetric) clone() *CapacityMetric {
	out := c
	if c.UncommittedBytes != nil {
		v := *c.UncommittedBytes
		out.UncommittedBytes = &v
	}
	if c.DataEfficiency != nil {
		de := *c.DataEfficiency
		out.DataEfficiency = &de
	}
	if c.ObjectTypes != nil {
		out.ObjectTypes = append([]ObjectSpaceUsage(nil), c.ObjectTypes...)
	}
	return &out
}

// CollectorFailure records a collector that could not produce any result.
type CollectorFailure struct {
	Subsystem Subsystem
	Cause     error
}

func (f *CollectorFailure) Error() string {
	return fmt.Sprintf("%s collector failed: %v", f.Subsystem, f.Cause)
}

func (f *CollectorFailure) Unwrap() error {
	return f.Cause
}

// PartialResult is what a collector hands to the aggregator: a capacity metric,
// a list of findings, or a failure.
type PartialResult struct {
	Subsystem Subsystem
	Capacity  *CapacityMetric
	Findings  []Finding
	Failure   *CollectorFailure
}

func NewCapacityResult(metric CapacityMetric) PartialResult {
	return PartialResult{Subsystem: SubsystemCapacity, Capacity: &metric}
}

func NewFindingsResult(subsystem Subsystem, findings []Finding) PartialResult {
	return PartialResult{Subsystem: subsystem, Findings: findings}
}

func NewFailedResult(subsystem Subsystem, cause error) PartialResult {
	return PartialResult{
		Subsystem: subsystem,
		Failure:   &CollectorFailure{Subsystem: subsystem, Cause: cause},
	}
}

func (p PartialResult) Failed() bool {
	return p.Failure != nil
}

// ClusterReport is the consolidated point-in-time health snapshot of one cluster.
// It is built once by Aggregate and must be treated as read-only afterwards.
type ClusterReport struct {
	Cluster     string    `json:"cluster"`
	Server      string    `json:"server,omitempty"`
	RunID       string    `json:"runId,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Capacity is nil when the capacity collector failed.
	Capacity        *CapacityMetric `json:"capacity,omitempty"`
	Findings        []Finding       `json:"findings"`
	OverallSeverity Severity        `json:"overallSeverity"`
	CollectorErrors []Subsystem     `json:"collectorErrors"`
	// FailureDetails holds the cause of every failed collector, keyed by subsystem.
	FailureDetails map[Subsystem]string `json:"failureDetails,omitempty"`
}

// CountBySeverity returns the number of findings per severity.
func (r *ClusterReport) CountBySeverity() map[Severity]int {
	counts := map[Severity]int{
		SeverityGreen:   0,
		SeverityYellow:  0,
		SeverityUnknown: 0,
		SeverityRed:     0,
	}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// Failed reports whether the collector for the subsystem failed entirely.
func (r *ClusterReport) Failed(subsystem Subsystem) bool {
	for _, s := range r.CollectorErrors {
		if s == subsystem {
			return true
		}
	}
	return false
}
