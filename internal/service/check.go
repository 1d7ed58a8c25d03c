package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/vsan-health/internal/collector"
	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/pkg/runid"
)

const closeTimeout = 10 * time.Second

// Session is what a health check needs from an open vCenter session.
type Session interface {
	Host() string
	Inventory() vsphere.Inventory
	Queries() collector.API
	Close(ctx context.Context) error
}

type OpenFunc func(ctx context.Context, creds vsphere.Credentials, opts vsphere.Options) (Session, error)

type vsphereSession struct {
	*vsphere.Session
}

func (s vsphereSession) Queries() collector.API {
	return s.Session.Queries()
}

// OpenVsphere opens a govmomi session.
func OpenVsphere(ctx context.Context, creds vsphere.Credentials, opts vsphere.Options) (Session, error) {
	s, err := vsphere.Open(ctx, creds, opts)
	if err != nil {
		return nil, err
	}
	return vsphereSession{s}, nil
}

type CheckOptions struct {
	Credentials vsphere.Credentials
	Session     vsphere.Options
	Cluster     string
	// Timeout bounds the whole run. Zero means no timeout besides the one of ctx.
	Timeout    time.Duration
	Collector  collector.Options
	Thresholds report.CapacityThresholds
}

type Checker struct {
	open OpenFunc
	now  func() time.Time
}

func NewChecker(open OpenFunc) *Checker {
	if open == nil {
		open = OpenVsphere
	}
	return &Checker{open: open, now: time.Now}
}

// Run opens a session, resolves the cluster, runs the collectors and aggregates their
// results. Authentication, resolution and endpoint capability errors are returned as is;
// a run cut short by the timeout or by cancellation of ctx returns ErrTimeout. The session is closed on every path.
func (c *Checker) Run(ctx context.Context, opts CheckOptions) (*report.ClusterReport, error) {
	runID := runid.New()
	ctx = runid.ToContext(ctx, runID)
	log := zap.S().Named("check").With("run_id", runID, "cluster", opts.Cluster)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	sess, err := c.open(ctx, opts.Credentials, opts.Session)
	if err != nil {
		return nil, c.wrapTimeout(ctx, opts.Timeout, err)
	}
	defer closeSession(ctx, sess)

	handle, err := vsphere.NewResolver(sess.Inventory()).Resolve(ctx, opts.Cluster)
	if err != nil {
		return nil, c.wrapTimeout(ctx, opts.Timeout, err)
	}

	runner := collector.NewRunner(collector.Defaults(sess.Queries(), opts.Collector)...)
	results, err := runner.Run(ctx, handle)
	if err != nil {
		return nil, NewErrTimeout(opts.Timeout, err)
	}

	r := report.Aggregate(report.AggregateOptions{
		Cluster:     handle.Name,
		Server:      sess.Host(),
		RunID:       runID,
		GeneratedAt: c.now().UTC(),
		Thresholds:  opts.Thresholds,
	}, results...)

	log.Infow("health check finished",
		"overall_severity", r.OverallSeverity,
		"findings", len(r.Findings),
		"collector_errors", r.CollectorErrors)
	return r, nil
}

// wrapTimeout turns err into ErrTimeout when ctx is done or err carries a deadline.
func (c *Checker) wrapTimeout(ctx context.Context, timeout time.Duration, err error) error {
	cause := ctx.Err()
	if cause == nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if cause != nil && !errors.Is(err, cause) {
		err = fmt.Errorf("%w: %w", cause, err)
	}
	return NewErrTimeout(timeout, err)
}

// closeSession logs out with a context of its own so that a cancelled run still
// releases its vCenter session.
func closeSession(ctx context.Context, sess Session) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		zap.S().Named("check").Warnw("failed to close session", "host", sess.Host(), "error", err)
	}
}
