package report_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/vsan-health/internal/report"
)

const tib = uint64(1) << 40

func green(subsystem report.Subsystem, entity string) report.Finding {
	return report.Finding{Subsystem: subsystem, EntityID: entity, Severity: report.SeverityGreen, Message: "ok"}
}

func capacity(total, free uint64) report.PartialResult {
	return report.NewCapacityResult(report.CapacityMetric{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  total - free,
	})
}

func healthyResults() []report.PartialResult {
	return []report.PartialResult{
		capacity(10*tib, 8*tib),
		report.NewFindingsResult(report.SubsystemCluster, []report.Finding{
			green(report.SubsystemCluster, "overall"),
			green(report.SubsystemCluster, "network/hostdisconnected"),
		}),
		report.NewFindingsResult(report.SubsystemHost, []report.Finding{
			green(report.SubsystemHost, "esx-01"),
			green(report.SubsystemHost, "esx-02"),
			green(report.SubsystemDiskGroup, "esx-01/naa.01"),
		}),
		report.NewFindingsResult(report.SubsystemController, []report.Finding{
			green(report.SubsystemController, "esx-01/vmhba0"),
		}),
	}
}

var opts = report.AggregateOptions{
	Cluster:     "Prod-A",
	Server:      "vcenter.example.com",
	RunID:       "run-1",
	GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Thresholds:  report.DefaultCapacityThresholds(),
}

var _ = Describe("Aggregate", func() {
	Context("all collectors succeed with green findings", func() {
		It("reports green with capacity present", func() {
			r := report.Aggregate(opts, healthyResults()...)

			Expect(r.OverallSeverity).To(Equal(report.SeverityGreen))
			Expect(r.Capacity).NotTo(BeNil())
			Expect(r.Capacity.TotalBytes).To(Equal(10 * tib))
			Expect(r.Capacity.Consistent).To(BeTrue())
			Expect(r.CollectorErrors).To(BeEmpty())
			Expect(r.FailureDetails).To(BeNil())
			Expect(r.Cluster).To(Equal("Prod-A"))
			Expect(r.RunID).To(Equal("run-1"))
			Expect(r.GeneratedAt).To(Equal(opts.GeneratedAt))
		})
	})

	Context("the controller collector is unsupported", func() {
		It("reports unknown, lists the controller subsystem and keeps capacity", func() {
			results := healthyResults()
			results[3] = report.NewFailedResult(report.SubsystemController, errors.New("method not found"))

			r := report.Aggregate(opts, results...)

			Expect(r.OverallSeverity).To(Equal(report.SeverityUnknown))
			Expect(r.CollectorErrors).To(Equal([]report.Subsystem{report.SubsystemController}))
			Expect(r.FailureDetails).To(HaveKeyWithValue(report.SubsystemController, "method not found"))
			Expect(r.Capacity).NotTo(BeNil())
			Expect(r.Failed(report.SubsystemController)).To(BeTrue())
			Expect(r.Failed(report.SubsystemHost)).To(BeFalse())
		})
	})

	Context("every collector fails", func() {
		It("reports unknown with four collector errors and no capacity", func() {
			cause := errors.New("boom")
			r := report.Aggregate(opts,
				report.NewFailedResult(report.SubsystemController, cause),
				report.NewFailedResult(report.SubsystemHost, cause),
				report.NewFailedResult(report.SubsystemCapacity, cause),
				report.NewFailedResult(report.SubsystemCluster, cause),
			)

			Expect(r.OverallSeverity).To(Equal(report.SeverityUnknown))
			Expect(r.CollectorErrors).To(Equal([]report.Subsystem{
				report.SubsystemCapacity,
				report.SubsystemCluster,
				report.SubsystemHost,
				report.SubsystemController,
			}))
			Expect(r.Capacity).To(BeNil())
			Expect(r.Findings).To(BeEmpty())
		})

		It("reports unknown when there are no results at all", func() {
			r := report.Aggregate(opts)
			Expect(r.OverallSeverity).To(Equal(report.SeverityUnknown))
			Expect(r.Findings).NotTo(BeNil())
			Expect(r.CollectorErrors).NotTo(BeNil())
		})
	})

	Context("severity rollup", func() {
		It("is monotonic when a more severe finding is added", func() {
			base := healthyResults()
			previous := report.Aggregate(opts, base...).OverallSeverity

			for _, s := range []report.Severity{report.SeverityYellow, report.SeverityUnknown, report.SeverityRed, report.SeverityGreen} {
				base = append(base, report.NewFindingsResult(report.SubsystemHost, []report.Finding{
					{Subsystem: report.SubsystemHost, EntityID: "esx-09", Severity: s, Message: s.String()},
				}))
				current := report.Aggregate(opts, base...).OverallSeverity
				Expect(previous.Worse(current)).To(BeFalse())
				previous = current
			}
			Expect(previous).To(Equal(report.SeverityRed))
		})

		It("ranks a confirmed yellow below an unknown verdict", func() {
			results := healthyResults()
			results = append(results, report.NewFindingsResult(report.SubsystemCluster, []report.Finding{
				{Subsystem: report.SubsystemCluster, EntityID: "a", Severity: report.SeverityYellow},
				{Subsystem: report.SubsystemCluster, EntityID: "b", Severity: report.SeverityUnknown},
			}))
			Expect(report.Aggregate(opts, results...).OverallSeverity).To(Equal(report.SeverityUnknown))
		})

		It("lets red win over a failed collector", func() {
			results := []report.PartialResult{
				report.NewFailedResult(report.SubsystemCapacity, errors.New("x")),
				report.NewFindingsResult(report.SubsystemHost, []report.Finding{
					{Subsystem: report.SubsystemHost, EntityID: "esx-01", Severity: report.SeverityRed},
				}),
			}
			Expect(report.Aggregate(opts, results...).OverallSeverity).To(Equal(report.SeverityRed))
		})
	})

	Context("capacity", func() {
		It("flags used + free above total instead of failing", func() {
			r := report.Aggregate(opts, report.NewCapacityResult(report.CapacityMetric{
				TotalBytes: 100,
				UsedBytes:  0,
				FreeBytes:  120,
			}))

			Expect(r.Capacity.Consistent).To(BeFalse())
			Expect(r.Findings).To(HaveLen(1))
			Expect(r.Findings[0].Subsystem).To(Equal(report.SubsystemCapacity))
			Expect(r.Findings[0].Severity).To(Equal(report.SeverityYellow))
			Expect(r.Findings[0].Message).To(ContainSubstring("inconsistent"))
		})

		It("does not overflow when values are near the uint64 limit", func() {
			limit := ^uint64(0)
			r := report.Aggregate(opts, report.NewCapacityResult(report.CapacityMetric{
				TotalBytes: limit,
				UsedBytes:  limit,
				FreeBytes:  limit,
			}))
			Expect(r.Capacity.Consistent).To(BeFalse())
		})

		DescribeTable("grades the used percentage",
			func(total, free uint64, expected report.Severity) {
				r := report.Aggregate(opts, capacity(total, free))
				Expect(r.Findings).To(HaveLen(1))
				Expect(r.Findings[0].Severity).To(Equal(expected))
				Expect(r.OverallSeverity).To(Equal(expected))
			},
			Entry("below the warning threshold", uint64(100), uint64(41), report.SeverityGreen),
			Entry("at the warning threshold", uint64(100), uint64(40), report.SeverityYellow),
			Entry("at the critical threshold", uint64(100), uint64(20), report.SeverityRed),
			Entry("zero total", uint64(0), uint64(0), report.SeverityUnknown),
		)

		DescribeTable("grades the uncommitted share of the total",
			func(uncommitted uint64, expected report.Severity) {
				metric := report.CapacityMetric{TotalBytes: 100, FreeBytes: 90, UsedBytes: 10, UncommittedBytes: &uncommitted}
				r := report.Aggregate(opts, report.NewCapacityResult(metric))

				Expect(r.Findings).To(HaveLen(2))
				Expect(r.Findings[1].EntityID).To(Equal("vsan-datastore/uncommitted"))
				Expect(r.Findings[1].Severity).To(Equal(expected))
				Expect(r.OverallSeverity).To(Equal(expected))
			},
			Entry("below the warning threshold", uint64(59), report.SeverityGreen),
			Entry("at the warning threshold", uint64(60), report.SeverityYellow),
			Entry("at the critical threshold", uint64(80), report.SeverityRed),
			Entry("overcommitted", uint64(250), report.SeverityRed),
		)

		DescribeTable("grades the data efficiency usage",
			func(efficiency report.DataEfficiency, expected map[string]report.Severity) {
				metric := report.CapacityMetric{TotalBytes: 100, FreeBytes: 90, UsedBytes: 10, DataEfficiency: &efficiency}
				r := report.Aggregate(opts, report.NewCapacityResult(metric))

				got := map[string]report.Severity{}
				for _, f := range r.Findings {
					got[f.EntityID] = f.Severity
				}
				Expect(got).To(Equal(expected))
			},
			Entry("both sides healthy",
				report.DataEfficiency{LogicalBytes: 1000, LogicalUsedBytes: 200, PhysicalBytes: 500, PhysicalUsedBytes: 100},
				map[string]report.Severity{
					"vsan-datastore":          report.SeverityGreen,
					"vsan-datastore/logical":  report.SeverityGreen,
					"vsan-datastore/physical": report.SeverityGreen,
				}),
			Entry("physical side full",
				report.DataEfficiency{LogicalBytes: 1000, LogicalUsedBytes: 650, PhysicalBytes: 500, PhysicalUsedBytes: 450},
				map[string]report.Severity{
					"vsan-datastore":          report.SeverityGreen,
					"vsan-datastore/logical":  report.SeverityYellow,
					"vsan-datastore/physical": report.SeverityRed,
				}),
			Entry("zero logical capacity is skipped",
				report.DataEfficiency{PhysicalBytes: 500, PhysicalUsedBytes: 100},
				map[string]report.Severity{
					"vsan-datastore":          report.SeverityGreen,
					"vsan-datastore/physical": report.SeverityGreen,
				}),
		)

		It("does not grade uncommitted or efficiency on an inconsistent metric", func() {
			uncommitted := uint64(90)
			r := report.Aggregate(opts, report.NewCapacityResult(report.CapacityMetric{
				TotalBytes:       100,
				FreeBytes:        120,
				UncommittedBytes: &uncommitted,
				DataEfficiency:   &report.DataEfficiency{LogicalBytes: 10, LogicalUsedBytes: 9},
			}))
			Expect(r.Findings).To(HaveLen(1))
			Expect(r.Findings[0].Message).To(ContainSubstring("inconsistent"))
		})

		It("does not share memory with the collector result", func() {
			uncommitted := uint64(5)
			res := report.NewCapacityResult(report.CapacityMetric{
				TotalBytes:       10,
				FreeBytes:        8,
				UsedBytes:        2,
				UncommittedBytes: &uncommitted,
				ObjectTypes:      []report.ObjectSpaceUsage{{ObjectType: "vdisk", UsedBytes: 1}},
			})
			r := report.Aggregate(opts, res)

			res.Capacity.TotalBytes = 1
			res.Capacity.ObjectTypes[0].UsedBytes = 99
			*res.Capacity.UncommittedBytes = 0

			Expect(r.Capacity.TotalBytes).To(Equal(uint64(10)))
			Expect(r.Capacity.ObjectTypes[0].UsedBytes).To(Equal(uint64(1)))
			Expect(*r.Capacity.UncommittedBytes).To(Equal(uint64(5)))
		})
	})

	Context("ordering", func() {
		It("is identical whatever order the collectors completed in", func() {
			results := healthyResults()
			reversed := make([]report.PartialResult, len(results))
			for i := range results {
				reversed[len(results)-1-i] = results[i]
			}

			a := report.Aggregate(opts, results...)
			b := report.Aggregate(opts, reversed...)
			Expect(a.Findings).To(Equal(b.Findings))
		})

		It("orders by subsystem then entity", func() {
			r := report.Aggregate(opts, healthyResults()...)

			var got []string
			for _, f := range r.Findings {
				got = append(got, string(f.Subsystem)+":"+f.EntityID)
			}
			Expect(got).To(Equal([]string{
				"capacity:vsan-datastore",
				"cluster:network/hostdisconnected",
				"cluster:overall",
				"host:esx-01",
				"host:esx-02",
				"diskgroup:esx-01/naa.01",
				"controller:esx-01/vmhba0",
			}))
		})
	})

	It("counts findings per severity", func() {
		r := report.Aggregate(opts, report.NewFindingsResult(report.SubsystemHost, []report.Finding{
			{Subsystem: report.SubsystemHost, EntityID: "a", Severity: report.SeverityRed},
			{Subsystem: report.SubsystemHost, EntityID: "b", Severity: report.SeverityRed},
			{Subsystem: report.SubsystemHost, EntityID: "c", Severity: report.SeverityGreen},
		}))
		counts := r.CountBySeverity()
		Expect(counts[report.SeverityRed]).To(Equal(2))
		Expect(counts[report.SeverityGreen]).To(Equal(1))
		Expect(counts[report.SeverityYellow]).To(Equal(0))
	})
})
