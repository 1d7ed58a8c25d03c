package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"sigs.k8s.io/yaml"

	"github.com/kubev2v/vsan-health/internal/report"
)

const (
	tableFormat = "table"
	jsonFormat  = "json"
	yamlFormat  = "yaml"
)

var (
	legalOutputTypes = []string{tableFormat, jsonFormat, yamlFormat}
)

func printReport(w io.Writer, output string, r *report.ClusterReport) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", marshalled)
		return err
	case yamlFormat:
		marshalled, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshalling report: %w", err)
		}
		_, err = fmt.Fprint(w, string(marshalled))
		return err
	default:
		return printTable(w, r)
	}
}

func printTable(w io.Writer, r *report.ClusterReport) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)

	fmt.Fprintf(tw, "CLUSTER:\t%s\n", r.Cluster)
	if r.Server != "" {
		fmt.Fprintf(tw, "SERVER:\t%s\n", r.Server)
	}
	fmt.Fprintf(tw, "GENERATED:\t%s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "OVERALL:\t%s\n", strings.ToUpper(r.OverallSeverity.String()))
	fmt.Fprintln(tw)

	printCapacity(tw, r)

	if len(r.Findings) > 0 {
		fmt.Fprintln(tw, "SUBSYSTEM\tENTITY\tSEVERITY\tMESSAGE")
		for _, f := range r.Findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Subsystem, f.EntityID, f.Severity, f.Message)
		}
		fmt.Fprintln(tw)
	}

	counts := r.CountBySeverity()
	fmt.Fprintf(tw, "SUMMARY:\t%d green, %d yellow, %d unknown, %d red\n",
		counts[report.SeverityGreen], counts[report.SeverityYellow], counts[report.SeverityUnknown], counts[report.SeverityRed])

	for _, s := range r.CollectorErrors {
		fmt.Fprintf(tw, "FAILED:\t%s\t%s\n", s, r.FailureDetails[s])
	}
	return tw.Flush()
}

func printCapacity(tw *tabwriter.Writer, r *report.ClusterReport) {
	c := r.Capacity
	if c == nil {
		if r.Failed(report.SubsystemCapacity) {
			fmt.Fprintf(tw, "CAPACITY:\tunavailable\n\n")
		}
		return
	}

	usage := "n/a"
	if pct, ok := c.UsedPercent(); ok {
		usage = fmt.Sprintf("%.1f%%", pct)
	}
	fmt.Fprintln(tw, "CAPACITY\tTOTAL\tUSED\tFREE\tUSAGE")
	fmt.Fprintf(tw, "vsan-datastore\t%s\t%s\t%s\t%s\n",
		humanize.IBytes(c.TotalBytes), humanize.IBytes(c.UsedBytes), humanize.IBytes(c.FreeBytes), usage)
	if c.UncommittedBytes != nil {
		fmt.Fprintf(tw, "uncommitted\t\t%s\t\t\n", humanize.IBytes(*c.UncommittedBytes))
	}
	if de := c.DataEfficiency; de != nil {
		fmt.Fprintf(tw, "logical\t%s\t%s\t\t\n", humanize.IBytes(de.LogicalBytes), humanize.IBytes(de.LogicalUsedBytes))
		fmt.Fprintf(tw, "physical\t%s\t%s\t\t\n", humanize.IBytes(de.PhysicalBytes), humanize.IBytes(de.PhysicalUsedBytes))
		fmt.Fprintf(tw, "dedup metadata\t\t%s\t\t\n", humanize.IBytes(de.MetadataBytes))
	}
	fmt.Fprintln(tw)

	if len(c.ObjectTypes) == 0 {
		return
	}
	fmt.Fprintln(tw, "OBJECT TYPE\tUSED\tRESERVED\tOVERHEAD\tOVER-RESERVED")
	for _, o := range c.ObjectTypes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ObjectType,
			humanize.IBytes(o.UsedBytes), humanize.IBytes(o.ReservedBytes),
			humanize.IBytes(o.OverheadBytes), humanize.IBytes(o.OverReservedBytes))
	}
	fmt.Fprintln(tw)
}
