// Package vsan issues the vSAN management API calls that are not part of the vim25 schema.
package vsan

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
	"github.com/vmware/govmomi/vsan/methods"
	vsantypes "github.com/vmware/govmomi/vsan/types"
)

const (
	Namespace = "vsan"
	Path      = "/vsanHealth"
)

var (
	SpaceReportSystem = types.ManagedObjectReference{
		Type:  "VsanSpaceReportSystem",
		Value: "vsan-cluster-space-report-system",
	}
	VcClusterHealthSystem = types.ManagedObjectReference{
		Type:  "VsanVcClusterHealthSystem",
		Value: "vsan-cluster-health-system",
	}
)

// Client talks to the vSAN health endpoint of a vCenter. It shares the session
// of the vim25 client it was created from, so it must be created after login.
type Client struct {
	rt soap.RoundTripper
}

func NewClient(c *vim25.Client) *Client {
	sc := c.Client.NewServiceClient(Path, Namespace)
	// vSAN management versions follow the vSphere API release they ship with.
	sc.Version = c.ServiceContent.About.ApiVersion
	return &Client{rt: sc}
}

// NewClientWithRoundTripper is used by tests to capture or fake the SOAP exchange.
func NewClientWithRoundTripper(rt soap.RoundTripper) *Client {
	return &Client{rt: rt}
}

func (c *Client) QuerySpaceUsage(ctx context.Context, cluster types.ManagedObjectReference) (*SpaceUsage, error) {
	req := querySpaceUsageRequest{This: SpaceReportSystem, Cluster: cluster}
	body := querySpaceUsageBody{Req: &req}
	if err := c.rt.RoundTrip(ctx, &body, &body); err != nil {
		return nil, err
	}
	if body.Res == nil {
		return nil, errEmptyResponse("VsanQuerySpaceUsage")
	}
	return &body.Res.Returnval, nil
}

func (c *Client) QueryClusterHealthSummary(ctx context.Context, cluster types.ManagedObjectReference, spec HealthSummarySpec) (*vsantypes.VsanClusterHealthSummary, error) {
	req := vsantypes.VsanQueryVcClusterHealthSummary{
		This:            VcClusterHealthSystem,
		Cluster:         &cluster,
		IncludeObjUuids: types.NewBool(spec.IncludeObjUuids),
		Fields:          spec.Fields,
		FetchFromCache:  types.NewBool(spec.FetchFromCache),
	}
	res, err := methods.VsanQueryVcClusterHealthSummary(ctx, c.rt, &req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errEmptyResponse("VsanQueryVcClusterHealthSummary")
	}
	return &res.Returnval, nil
}

func errEmptyResponse(method string) error {
	return fmt.Errorf("%s: empty response body", method)
}

type querySpaceUsageBody struct {
	Req    *querySpaceUsageRequest  `xml:"urn:vsan VsanQuerySpaceUsage,omitempty"`
	Res    *querySpaceUsageResponse `xml:"VsanQuerySpaceUsageResponse,omitempty"`
	Fault_ *soap.Fault              `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body>Fault,omitempty"`
}

func (b *querySpaceUsageBody) Fault() *soap.Fault { return b.Fault_ }
