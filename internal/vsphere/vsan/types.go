package vsan

import (
	"github.com/vmware/govmomi/vim25/types"
)

// SpaceUsage is the result of VsanSpaceReportSystem.VsanQuerySpaceUsage. Capacity
// elements are pointers so that an element the endpoint left out stays nil instead
// of reading as zero bytes.
type SpaceUsage struct {
	TotalCapacityB    *int64                       `xml:"totalCapacityB"`
	FreeCapacityB     *int64                       `xml:"freeCapacityB"`
	UncommittedB      *int64                       `xml:"uncommittedB"`
	SpaceOverview     *ObjectSpaceSummary          `xml:"spaceOverview"`
	SpaceDetail       *SpaceUsageDetailResult      `xml:"spaceDetail"`
	EfficientCapacity *DataEfficiencyCapacityState `xml:"efficientCapacity"`
}

type SpaceUsageDetailResult struct {
	SpaceUsageByObjectType []ObjectSpaceSummary `xml:"spaceUsageByObjectType"`
}

type ObjectSpaceSummary struct {
	ObjType           string `xml:"objType"`
	OverheadB         *int64 `xml:"overheadB"`
	ReservedCapacityB *int64 `xml:"reservedCapacityB"`
	OverReservedB     *int64 `xml:"overReservedB"`
	PhysicalUsedB     *int64 `xml:"physicalUsedB"`
	UsedB             *int64 `xml:"usedB"`
}

type DataEfficiencyCapacityState struct {
	LogicalCapacity      *int64 `xml:"logicalCapacity"`
	LogicalCapacityUsed  *int64 `xml:"logicalCapacityUsed"`
	PhysicalCapacity     *int64 `xml:"physicalCapacity"`
	PhysicalCapacityUsed *int64 `xml:"physicalCapacityUsed"`
	DedupMetadataSize    *int64 `xml:"dedupMetadataSize"`
}

// HealthSummarySpec selects what VsanQueryVcClusterHealthSummary returns.
type HealthSummarySpec struct {
	Fields          []string
	FetchFromCache  bool
	IncludeObjUuids bool
}

// Health summary sections.
const (
	FieldTimestamp     = "timestamp"
	FieldOverallHealth = "overallHealth"
	FieldClusterStatus = "clusterStatus"
	FieldGroups        = "groups"
	FieldClomdLiveness = "clomdLiveness"
	FieldDiskBalance   = "diskBalance"
	FieldPerfsvcHealth = "perfsvcHealth"
	FieldHclInfo       = "hclInfo"
)

type querySpaceUsageRequest struct {
	This    types.ManagedObjectReference `xml:"_this"`
	Cluster types.ManagedObjectReference `xml:"cluster"`
}

type querySpaceUsageResponse struct {
	Returnval SpaceUsage `xml:"returnval"`
}
