package collector

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

type CapacityCollector struct {
	api API
}

func NewCapacityCollector(api API) *CapacityCollector {
	return &CapacityCollector{api: api}
}

func (c *CapacityCollector) Subsystem() report.Subsystem {
	return report.SubsystemCapacity
}

func (c *CapacityCollector) Collect(ctx context.Context, cluster *vsphere.ClusterHandle) report.PartialResult {
	usage, err := c.api.SpaceUsage(ctx, cluster.Ref)
	if err != nil {
		return report.NewFailedResult(report.SubsystemCapacity, err)
	}
	metric, err := capacityFrom(usage)
	if err != nil {
		return report.NewFailedResult(report.SubsystemCapacity, err)
	}
	return report.NewCapacityResult(*metric)
}

// capacityFrom converts the space report to bytes. Total and free capacity are required;
// used is derived from them and left at zero when free exceeds total.
func capacityFrom(usage *vsan.SpaceUsage) (*report.CapacityMetric, error) {
	total, err := requiredBytes("totalCapacityB", usage.TotalCapacityB)
	if err != nil {
		return nil, err
	}
	free, err := requiredBytes("freeCapacityB", usage.FreeCapacityB)
	if err != nil {
		return nil, err
	}

	metric := &report.CapacityMetric{TotalBytes: total, FreeBytes: free}
	if free <= total {
		metric.UsedBytes = total - free
	}

	if v, ok := optionalBytes("uncommittedB", usage.UncommittedB); ok {
		metric.UncommittedBytes = &v
	}
	metric.DataEfficiency = dataEfficiencyFrom(usage.EfficientCapacity)
	if usage.SpaceDetail != nil {
		metric.ObjectTypes = objectTypesFrom(usage.SpaceDetail.SpaceUsageByObjectType)
	}
	return metric, nil
}

func requiredBytes(path string, v *int64) (uint64, error) {
	if v == nil {
		return 0, vsphere.NewErrPropertyMissing(path)
	}
	if *v < 0 {
		return 0, fmt.Errorf("%s is negative: %d", path, *v)
	}
	return uint64(*v), nil
}

// optionalBytes drops absent and negative values. Negative ones are logged.
func optionalBytes(path string, v *int64) (uint64, bool) {
	if v == nil {
		return 0, false
	}
	if *v < 0 {
		zap.S().Named("collector").Warnw("ignoring negative capacity value", "property", path, "value", *v)
		return 0, false
	}
	return uint64(*v), true
}

// dataEfficiencyFrom returns nil unless every value of the block is usable.
func dataEfficiencyFrom(state *vsan.DataEfficiencyCapacityState) *report.DataEfficiency {
	if state == nil {
		return nil
	}
	var (
		de  report.DataEfficiency
		ok  = true
		get = func(path string, v *int64) uint64 {
			b, present := optionalBytes(path, v)
			ok = ok && present
			return b
		}
	)
	de.MetadataBytes = get("efficientCapacity.dedupMetadataSize", state.DedupMetadataSize)
	de.LogicalBytes = get("efficientCapacity.logicalCapacity", state.LogicalCapacity)
	de.LogicalUsedBytes = get("efficientCapacity.logicalCapacityUsed", state.LogicalCapacityUsed)
	de.PhysicalBytes = get("efficientCapacity.physicalCapacity", state.PhysicalCapacity)
	de.PhysicalUsedBytes = get("efficientCapacity.physicalCapacityUsed", state.PhysicalCapacityUsed)
	if !ok {
		return nil
	}
	return &de
}

func objectTypesFrom(entries []vsan.ObjectSpaceSummary) []report.ObjectSpaceUsage {
	var out []report.ObjectSpaceUsage
	for _, e := range entries {
		if e.ObjType == "" {
			continue
		}
		used, ok := optionalBytes("spaceUsageByObjectType.usedB", e.UsedB)
		if !ok {
			continue
		}
		u := report.ObjectSpaceUsage{ObjectType: e.ObjType, UsedBytes: used}
		u.ReservedBytes, _ = optionalBytes("spaceUsageByObjectType.reservedCapacityB", e.ReservedCapacityB)
		u.OverheadBytes, _ = optionalBytes("spaceUsageByObjectType.overheadB", e.OverheadB)
		u.OverReservedBytes, _ = optionalBytes("spaceUsageByObjectType.overReservedB", e.OverReservedB)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ObjectType < out[j].ObjectType
	})
	return out
}
