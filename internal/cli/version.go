package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"

	"github.com/kubev2v/vsan-health/pkg/version"
)

type VersionOptions struct {
	Output string

	out io.Writer
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print vsan-health version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.Output) > 0 && !funk.Contains([]string{jsonFormat}, o.Output) {
				return fmt.Errorf("output format must be one of %s", jsonFormat)
			}
			o.out = cmd.OutOrStdout()
			return o.Run(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json).")
	return cmd
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	if strings.EqualFold(o.Output, jsonFormat) {
		marshalled, err := json.Marshal(versionInfo)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(o.out, "%s\n", marshalled)
		return err
	}
	_, err := fmt.Fprintf(o.out, "vsan-health Version: %s\n", versionInfo.String())
	return err
}
