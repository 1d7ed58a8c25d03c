package vsphere

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const clusterType = "ClusterComputeResource"

type HostRef struct {
	Ref  types.ManagedObjectReference
	Name string
}

// ClusterHandle identifies a resolved vSAN cluster and its member hosts.
type ClusterHandle struct {
	Name        string
	Ref         types.ManagedObjectReference
	Datacenter  string
	VsanEnabled bool
	// Hosts is sorted by name.
	Hosts []HostRef
}

func (h *ClusterHandle) Path() string {
	return fmt.Sprintf("/%s/host/%s", h.Datacenter, h.Name)
}

type Resolver struct {
	inv Inventory
}

func NewResolver(inv Inventory) *Resolver {
	return &Resolver{inv: inv}
}

// Resolve finds the cluster called name in the host folder of every datacenter.
// When several datacenters hold a cluster with that name the first one wins.
// It fails with ErrNotFound when no cluster matches and with
// ErrCapabilityUnsupported when vSAN is not enabled on the cluster.
func (r *Resolver) Resolve(ctx context.Context, name string) (*ClusterHandle, error) {
	if name == "" {
		return nil, NewErrClusterNotFound(name)
	}

	dcs, err := r.inv.Datacenters(ctx)
	if err != nil {
		return nil, err
	}

	var handle *ClusterHandle
	for _, dc := range dcs {
		ref, err := r.inv.FindChild(ctx, dc.HostFolder, name)
		if err != nil {
			return nil, fmt.Errorf("failed to search datacenter %s: %w", dc.Name, err)
		}
		if ref == nil || ref.Type != clusterType {
			continue
		}
		if handle != nil {
			zap.S().Named("resolver").Warnw("cluster name is not unique, using the first match",
				"cluster", name, "used", handle.Datacenter, "ignored", dc.Name)
			continue
		}
		handle = &ClusterHandle{Name: name, Ref: *ref, Datacenter: dc.Name}
	}
	if handle == nil {
		return nil, NewErrClusterNotFound(name)
	}

	info, err := r.inv.Cluster(ctx, handle.Ref)
	if err != nil {
		return nil, err
	}
	if info.VsanEnabled == nil {
		return nil, NewErrCapabilityUnsupported("vSAN", errors.New("cluster reports no vSAN configuration"))
	}
	if !*info.VsanEnabled {
		return nil, NewErrCapabilityUnsupported("vSAN", fmt.Errorf("vSAN is not enabled on cluster %s", name))
	}

	handle.VsanEnabled = true

	names, err := r.inv.HostNames(ctx, info.Hosts)
	if err != nil {
		return nil, err
	}
	handle.Hosts = make([]HostRef, 0, len(info.Hosts))
	for _, ref := range info.Hosts {
		hostName := names[ref]
		if hostName == "" {
			hostName = ref.Value
		}
		handle.Hosts = append(handle.Hosts, HostRef{Ref: ref, Name: hostName})
	}
	sort.Slice(handle.Hosts, func(i, j int) bool {
		return handle.Hosts[i].Name < handle.Hosts[j].Name
	})

	zap.S().Named("resolver").Infow("cluster resolved",
		"cluster", name, "datacenter", handle.Datacenter, "ref", handle.Ref.Value, "hosts", len(handle.Hosts))
	return handle, nil
}
