package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/vsan-health/internal/collector"
	"github.com/kubev2v/vsan-health/internal/config"
	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/service"
	"github.com/kubev2v/vsan-health/internal/validator"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/pkg/log"
	"github.com/kubev2v/vsan-health/pkg/metrics"
)

type CheckOptions struct {
	Server          string        `validate:"required,server"`
	Username        string        `validate:"required"`
	Password        string        `validate:"required"`
	Cluster         string        `validate:"required"`
	Thumbprint      string        `validate:"thumbprint"`
	Timeout         time.Duration `validate:"min=0"`
	Concurrency     int           `validate:"min=1,max=64"`
	Output          string        `validate:"oneof=table json yaml"`
	LogLevel        string        `validate:"log_level"`
	WarnPercent     float64       `validate:"min=0,max=100"`
	CriticalPercent float64       `validate:"min=0,max=100"`

	Insecure       bool
	FetchFromCache bool
	MetricsFile    string

	envErr error
	open   service.OpenFunc
	out    io.Writer
}

// DefaultCheckOptions seeds the options from the VSAN_HEALTH_* environment. Flags override.
func DefaultCheckOptions() *CheckOptions {
	cfg, err := config.New()
	if err != nil {
		return &CheckOptions{envErr: fmt.Errorf("reading environment: %w", err)}
	}
	return &CheckOptions{
		Server:          cfg.VCenter.Server,
		Username:        cfg.VCenter.Username,
		Password:        cfg.VCenter.Password,
		Cluster:         cfg.Check.Cluster,
		Thumbprint:      cfg.VCenter.Thumbprint,
		Timeout:         cfg.Check.Timeout,
		Concurrency:     cfg.Check.Concurrency,
		Output:          cfg.Check.Output,
		LogLevel:        cfg.Log.Level,
		WarnPercent:     cfg.Check.CapacityWarnPercent,
		CriticalPercent: cfg.Check.CapacityCriticalPercent,
		Insecure:        cfg.VCenter.Insecure,
		FetchFromCache:  cfg.Check.FetchFromCache,
		MetricsFile:     cfg.Check.MetricsFile,
	}
}

func NewCmdCheck() *cobra.Command {
	o := DefaultCheckOptions()
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the health and capacity of a vSAN cluster.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *CheckOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Server, "server", "s", o.Server, "vCenter host name or address, optionally with a port")
	fs.StringVarP(&o.Username, "username", "u", o.Username, "vCenter user name")
	fs.StringVarP(&o.Password, "password", "p", o.Password, "vCenter password")
	fs.StringVar(&o.Cluster, "cluster", o.Cluster, "Name of the vSAN cluster to check")
	fs.BoolVar(&o.Insecure, "insecure", o.Insecure, "Skip verification of the vCenter certificate")
	fs.StringVar(&o.Thumbprint, "thumbprint", o.Thumbprint, "Expected SHA-1 or SHA-256 thumbprint of the vCenter certificate")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Deadline of the whole check")
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Maximum number of hosts queried at the same time")
	fs.BoolVar(&o.FetchFromCache, "fetch-from-cache", o.FetchFromCache, "Let the vSAN health service answer from its last cached run")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVar(&o.MetricsFile, "metrics-file", o.MetricsFile, "Write Prometheus metrics of the run to this file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
	fs.Float64Var(&o.WarnPercent, "capacity-warn-pct", o.WarnPercent, "Used capacity percentage graded yellow, 0 disables")
	fs.Float64Var(&o.CriticalPercent, "capacity-critical-pct", o.CriticalPercent, "Used capacity percentage graded red, 0 disables")
}

func (o *CheckOptions) Complete(cmd *cobra.Command, args []string) error {
	if o.envErr != nil {
		return o.envErr
	}
	o.Output = strings.ToLower(o.Output)
	if o.Output == "" {
		o.Output = tableFormat
	}
	if o.open == nil {
		o.open = service.OpenVsphere
	}
	if o.out == nil {
		o.out = cmd.OutOrStdout()
	}
	return nil
}

func (o *CheckOptions) Validate(args []string) error {
	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}

	v := validator.NewValidator()
	v.Register(validator.NewCheckValidationRules()...)
	if err := v.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	if o.WarnPercent > 0 && o.CriticalPercent > 0 && o.WarnPercent > o.CriticalPercent {
		return fmt.Errorf("capacity warn percentage %.1f is above the critical percentage %.1f", o.WarnPercent, o.CriticalPercent)
	}
	return nil
}

func (o *CheckOptions) Run(ctx context.Context, args []string) error {
	logLvl, err := zap.ParseAtomicLevel(o.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger := log.InitLog(logLvl)
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	r, err := service.NewChecker(o.open).Run(ctx, service.CheckOptions{
		Credentials: vsphere.Credentials{Host: o.Server, Username: o.Username, Password: o.Password},
		Session:     vsphere.Options{Insecure: o.Insecure, Thumbprint: o.Thumbprint},
		Cluster:     o.Cluster,
		Timeout:     o.Timeout,
		Collector:   collector.Options{Concurrency: o.Concurrency, FetchFromCache: o.FetchFromCache},
		Thresholds:  report.CapacityThresholds{WarnPercent: o.WarnPercent, CriticalPercent: o.CriticalPercent},
	})
	if err != nil {
		return err
	}

	if err := printReport(o.out, o.Output, r); err != nil {
		return fmt.Errorf("printing report: %w", err)
	}

	if o.MetricsFile != "" {
		if err := metrics.WriteTextfile(o.MetricsFile, r); err != nil {
			zap.S().Named("check").Warnw("failed to write metrics file", "path", o.MetricsFile, "error", err)
		}
	}
	return nil
}
