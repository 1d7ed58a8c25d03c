package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

type DatacenterRef struct {
	Name       string
	HostFolder types.ManagedObjectReference
}

type ClusterInfo struct {
	Name string
	// VsanEnabled is nil when the endpoint does not report a vSAN configuration.
	VsanEnabled *bool
	Hosts       []types.ManagedObjectReference
}

// Inventory is the part of the vSphere inventory the Resolver walks.
type Inventory interface {
	Datacenters(ctx context.Context) ([]DatacenterRef, error)
	// FindChild returns the direct child of folder with the given name, or nil.
	FindChild(ctx context.Context, folder types.ManagedObjectReference, name string) (*types.ManagedObjectReference, error)
	Cluster(ctx context.Context, ref types.ManagedObjectReference) (*ClusterInfo, error)
	HostNames(ctx context.Context, refs []types.ManagedObjectReference) (map[types.ManagedObjectReference]string, error)
}

type vimInventory struct {
	s *Session
}

func (i *vimInventory) Datacenters(ctx context.Context) ([]DatacenterRef, error) {
	if err := i.s.ensureOpen(); err != nil {
		return nil, err
	}
	c := i.s.client.Client

	v, err := view.NewManager(c).CreateContainerView(ctx, c.ServiceContent.RootFolder, []string{"Datacenter"}, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create datacenter view")
	}
	defer func() {
		_ = v.Destroy(ctx)
	}()

	var dcs []mo.Datacenter
	if err := v.Retrieve(ctx, []string{"Datacenter"}, []string{"name", "hostFolder"}, &dcs); err != nil {
		return nil, errors.Wrap(err, "failed to retrieve datacenters")
	}

	refs := make([]DatacenterRef, 0, len(dcs))
	for _, dc := range dcs {
		refs = append(refs, DatacenterRef{Name: dc.Name, HostFolder: dc.HostFolder})
	}
	return refs, nil
}

func (i *vimInventory) FindChild(ctx context.Context, folder types.ManagedObjectReference, name string) (*types.ManagedObjectReference, error) {
	if err := i.s.ensureOpen(); err != nil {
		return nil, err
	}
	c := i.s.client.Client

	found, err := object.NewSearchIndex(c).FindChild(ctx, object.NewFolder(c, folder), name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}
	ref := found.Reference()
	return &ref, nil
}

func (i *vimInventory) Cluster(ctx context.Context, ref types.ManagedObjectReference) (*ClusterInfo, error) {
	if err := i.s.ensureOpen(); err != nil {
		return nil, err
	}

	var cc mo.ClusterComputeResource
	if err := property.DefaultCollector(i.s.client.Client).RetrieveOne(ctx, ref, []string{"name", "configurationEx", "host"}, &cc); err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve cluster %s", ref.Value)
	}

	info := &ClusterInfo{Name: cc.Name, Hosts: cc.Host}
	if cfg, ok := cc.ConfigurationEx.(*types.ClusterConfigInfoEx); ok && cfg.VsanConfigInfo != nil {
		info.VsanEnabled = cfg.VsanConfigInfo.Enabled
	}
	return info, nil
}

func (i *vimInventory) HostNames(ctx context.Context, refs []types.ManagedObjectReference) (map[types.ManagedObjectReference]string, error) {
	if err := i.s.ensureOpen(); err != nil {
		return nil, err
	}
	names := make(map[types.ManagedObjectReference]string, len(refs))
	if len(refs) == 0 {
		return names, nil
	}

	var hosts []mo.HostSystem
	if err := property.DefaultCollector(i.s.client.Client).Retrieve(ctx, refs, []string{"name"}, &hosts); err != nil {
		return nil, errors.Wrap(err, "failed to retrieve host names")
	}
	for _, h := range hosts {
		names[h.Self] = h.Name
	}
	return names, nil
}
