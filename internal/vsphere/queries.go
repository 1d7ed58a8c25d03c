package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

var hostProperties = []string{
	"name",
	"overallStatus",
	"runtime.connectionState",
	"runtime.inMaintenanceMode",
	"config.vsanHostConfig",
	"configManager.vsanSystem",
}

// DiskGroup is one vSAN disk group of a host: a cache disk and its capacity disks.
type DiskGroup struct {
	CacheDisk     string
	CapacityDisks []string
	// Mounted is nil when the endpoint does not report the mount state.
	Mounted *bool
}

func (g DiskGroup) Disks() []string {
	return append([]string{g.CacheDisk}, g.CapacityDisks...)
}

// HostState is the flattened subset of HostSystem properties graded by the host collector.
type HostState struct {
	Name              string
	ConnectionState   string
	InMaintenanceMode *bool
	OverallStatus     string
	// VsanEnabled is nil when the host has no vSAN configuration.
	VsanEnabled *bool
	DiskGroups  []DiskGroup
	VsanSystem  *types.ManagedObjectReference
}

// DiskState is the vSAN view of one disk as returned by QueryDisksForVsan.
type DiskState struct {
	CanonicalName string
	State         string
	Degraded      *bool
	// Error is empty when the disk reports no error.
	Error string
}

// Queries is the query surface of a session used by the collectors.
// Unsupported remote methods are returned as ErrCapabilityUnsupported.
type Queries struct {
	s *Session
}

func (q *Queries) SpaceUsage(ctx context.Context, cluster types.ManagedObjectReference) (*vsan.SpaceUsage, error) {
	if err := q.s.ensureOpen(); err != nil {
		return nil, err
	}
	usage, err := q.s.vsan.QuerySpaceUsage(ctx, cluster)
	if err != nil {
		return nil, classifyQueryError("vSAN space report", err)
	}
	return usage, nil
}

func (q *Queries) HealthSummary(ctx context.Context, cluster types.ManagedObjectReference, spec vsan.HealthSummarySpec) (*vsantypes.VsanClusterHealthSummary, error) {
	if err := q.s.ensureOpen(); err != nil {
		return nil, err
	}
	summary, err := q.s.vsan.QueryClusterHealthSummary(ctx, cluster, spec)
	if err != nil {
		return nil, classifyQueryError("vSAN cluster health summary", err)
	}
	return summary, nil
}

func (q *Queries) HostState(ctx context.Context, host types.ManagedObjectReference) (*HostState, error) {
	if err := q.s.ensureOpen(); err != nil {
		return nil, err
	}

	var h mo.HostSystem
	if err := property.DefaultCollector(q.s.client.Client).RetrieveOne(ctx, host, hostProperties, &h); err != nil {
		return nil, classifyQueryError("host properties", err)
	}
	return hostStateFrom(h), nil
}

func hostStateFrom(h mo.HostSystem) *HostState {
	state := &HostState{
		Name:              h.Name,
		ConnectionState:   string(h.Runtime.ConnectionState),
		InMaintenanceMode: types.NewBool(h.Runtime.InMaintenanceMode),
		OverallStatus:     string(h.OverallStatus),
		VsanSystem:        h.ConfigManager.VsanSystem,
	}
	if h.Config == nil || h.Config.VsanHostConfig == nil {
		return state
	}

	cfg := h.Config.VsanHostConfig
	state.VsanEnabled = cfg.Enabled
	if cfg.StorageInfo == nil {
		return state
	}
	for _, info := range cfg.StorageInfo.DiskMapInfo {
		state.DiskGroups = append(state.DiskGroups, diskGroupFrom(info.Mapping, types.NewBool(info.Mounted)))
	}
	// Older endpoints only fill the plain mapping without mount state.
	if len(state.DiskGroups) == 0 {
		for _, mapping := range cfg.StorageInfo.DiskMapping {
			state.DiskGroups = append(state.DiskGroups, diskGroupFrom(mapping, nil))
		}
	}
	return state
}

func diskGroupFrom(mapping types.VsanHostDiskMapping, mounted *bool) DiskGroup {
	g := DiskGroup{CacheDisk: mapping.Ssd.CanonicalName, Mounted: mounted}
	for _, d := range mapping.NonSsd {
		g.CapacityDisks = append(g.CapacityDisks, d.CanonicalName)
	}
	return g
}

func (q *Queries) DiskStates(ctx context.Context, vsanSystem types.ManagedObjectReference, disks []string) ([]DiskState, error) {
	if err := q.s.ensureOpen(); err != nil {
		return nil, err
	}

	req := types.QueryDisksForVsan{This: vsanSystem, CanonicalName: disks}
	res, err := methods.QueryDisksForVsan(ctx, q.s.client.Client, &req)
	if err != nil {
		return nil, classifyQueryError("vSAN disk query", err)
	}
	if res == nil {
		return nil, fmt.Errorf("QueryDisksForVsan: %w", ErrMissingProperty)
	}

	states := make([]DiskState, 0, len(res.Returnval))
	for _, r := range res.Returnval {
		state := DiskState{
			CanonicalName: r.Disk.CanonicalName,
			State:         r.State,
			Degraded:      r.Degraded,
		}
		if r.Error != nil {
			state.Error = r.Error.LocalizedMessage
			if state.Error == "" {
				state.Error = "unspecified error"
			}
		}
		states = append(states, state)
	}
	return states, nil
}
