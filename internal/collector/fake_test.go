package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmware/govmomi/vim25/types"
	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

var errUnavailable = errors.New("service unavailable")

func faultWith(msg string) types.BaseMethodFault {
	return &types.SystemError{RuntimeFault: types.RuntimeFault{MethodFault: types.MethodFault{
		FaultMessage: []types.LocalizableMessage{{Message: msg}},
	}}}
}

type fakeAPI struct {
	spaceUsage *vsan.SpaceUsage
	spaceErr   error

	summary    *vsantypes.VsanClusterHealthSummary
	summaryErr error

	// hosts and hostErrs are keyed by host reference value.
	hosts    map[string]*vsphere.HostState
	hostErrs map[string]error
	// disks and diskErrs are keyed by vsan system reference value.
	disks    map[string][]vsphere.DiskState
	diskErrs map[string]error

	hostDelay time.Duration

	mu          sync.Mutex
	specs       []vsan.HealthSummarySpec
	diskQueries []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeAPI) SpaceUsage(context.Context, types.ManagedObjectReference) (*vsan.SpaceUsage, error) {
	return f.spaceUsage, f.spaceErr
}

func (f *fakeAPI) HealthSummary(_ context.Context, _ types.ManagedObjectReference, spec vsan.HealthSummarySpec) (*vsantypes.VsanClusterHealthSummary, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	return f.summary, f.summaryErr
}

func (f *fakeAPI) HostState(ctx context.Context, host types.ManagedObjectReference) (*vsphere.HostState, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.hostDelay > 0 {
		select {
		case <-time.After(f.hostDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := f.hostErrs[host.Value]; ok {
		return nil, err
	}
	state, ok := f.hosts[host.Value]
	if !ok {
		return nil, errors.New("unknown host")
	}
	return state, nil
}

func (f *fakeAPI) DiskStates(_ context.Context, vsanSystem types.ManagedObjectReference, _ []string) ([]vsphere.DiskState, error) {
	f.mu.Lock()
	f.diskQueries = append(f.diskQueries, vsanSystem.Value)
	f.mu.Unlock()
	if err, ok := f.diskErrs[vsanSystem.Value]; ok {
		return nil, err
	}
	return f.disks[vsanSystem.Value], nil
}

func ptr[T any](v T) *T {
	return &v
}

func testCluster(hosts ...string) *vsphere.ClusterHandle {
	h := &vsphere.ClusterHandle{
		Name:        "Prod-A",
		Ref:         types.ManagedObjectReference{Type: "ClusterComputeResource", Value: "domain-c8"},
		Datacenter:  "dc-east",
		VsanEnabled: true,
	}
	for _, name := range hosts {
		h.Hosts = append(h.Hosts, vsphere.HostRef{
			Ref:  types.ManagedObjectReference{Type: "HostSystem", Value: name},
			Name: name,
		})
	}
	return h
}

func healthyHost(name string) *vsphere.HostState {
	return &vsphere.HostState{
		Name:              name,
		ConnectionState:   "connected",
		InMaintenanceMode: ptr(false),
		OverallStatus:     "green",
		VsanEnabled:       ptr(true),
	}
}

func severities(findings []report.Finding) map[string]report.Severity {
	out := make(map[string]report.Severity, len(findings))
	for _, f := range findings {
		out[f.EntityID] = f.Severity
	}
	return out
}
