// Package collector queries one aspect of vSAN cluster health each and normalizes
// the answer into report findings.
package collector

import (
	"context"

	"github.com/vmware/govmomi/vim25/types"
	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

// API is the query surface collectors need from an open session.
type API interface {
	SpaceUsage(ctx context.Context, cluster types.ManagedObjectReference) (*vsan.SpaceUsage, error)
	HealthSummary(ctx context.Context, cluster types.ManagedObjectReference, spec vsan.HealthSummarySpec) (*vsantypes.VsanClusterHealthSummary, error)
	HostState(ctx context.Context, host types.ManagedObjectReference) (*vsphere.HostState, error)
	DiskStates(ctx context.Context, vsanSystem types.ManagedObjectReference, disks []string) ([]vsphere.DiskState, error)
}

var _ API = (*vsphere.Queries)(nil)

// Collector produces the partial result of one subsystem. Collect never returns an error:
// anything that prevents a result is reported as a failed PartialResult.
type Collector interface {
	Subsystem() report.Subsystem
	Collect(ctx context.Context, cluster *vsphere.ClusterHandle) report.PartialResult
}

type Options struct {
	// Concurrency bounds the per-host queries of a collector.
	Concurrency int
	// FetchFromCache lets the health service answer from its last cached run.
	FetchFromCache bool
}

// Defaults returns the four collectors of a health check.
func Defaults(api API, opts Options) []Collector {
	return []Collector{
		NewCapacityCollector(api),
		NewClusterHealthCollector(api, opts.FetchFromCache),
		NewHostHealthCollector(api, NewPool(opts.Concurrency)),
		NewControllerCollector(api, opts.FetchFromCache),
	}
}
