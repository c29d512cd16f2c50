// Package uptime computes SQL engine and Windows host uptime for a batch of
// instances. The engine start time comes from tempdb's creation timestamp
// (tempdb is rebuilt at every engine start); host boot time is attempted
// first over the established SQL session and then over the Windows
// remote-administration transport.
package uptime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Session is the slice of the server surface the reporter consumes.
type Session interface {
	Name() string
	ComputerName(ctx context.Context) (string, error)
	InstanceName(ctx context.Context) (string, error)
	TempdbCreateDate(ctx context.Context) (time.Time, error)
	ServerMsTicks(ctx context.Context) (int64, error)
	HostFQDN(ctx context.Context) (string, error)
	Close() error
}

// Connector opens sessions to target instances.
type Connector interface {
	Connect(ctx context.Context, target models.Target) (Session, error)
}

// BootTimeFunc queries a host's last boot time over the remote-administration
// transport. It is the fallback when the in-session query fails.
type BootTimeFunc func(ctx context.Context, host string, cred models.Credential) (time.Time, error)

// Runner executes uptime batches. Connection and boot-time failures are
// recoverable per instance unless Strict is set.
type Runner struct {
	Connector         Connector
	Log               *zap.Logger
	Strict            bool
	BootTime          BootTimeFunc
	WindowsCredential models.Credential
}

func (r *Runner) report(err error) error {
	if r.Strict {
		return err
	}
	r.Log.Warn(err.Error())
	return nil
}

// Run produces one report per reachable instance. All durations in one batch
// are measured against a single reference timestamp captured up front.
func (r *Runner) Run(ctx context.Context, targets []models.Target) ([]models.UptimeReport, error) {
	now := time.Now().UTC()

	var reports []models.UptimeReport
	for _, target := range targets {
		rep, err := r.reportFor(ctx, target, now)
		if err != nil {
			if rerr := r.report(err); rerr != nil {
				return reports, rerr
			}
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (r *Runner) reportFor(ctx context.Context, target models.Target, now time.Time) (models.UptimeReport, error) {
	rep := models.UptimeReport{SqlServer: target.Name()}

	sess, err := r.Connector.Connect(ctx, target)
	if err != nil {
		return rep, err
	}
	defer sess.Close()

	rep.ComputerName = target.Host
	if computer, err := sess.ComputerName(ctx); err == nil {
		rep.ComputerName = computer
	}
	rep.InstanceName = "MSSQLSERVER"
	if instance, err := sess.InstanceName(ctx); err == nil {
		rep.InstanceName = instance
	}

	start, err := sess.TempdbCreateDate(ctx)
	if err != nil {
		return rep, err
	}
	rep.SqlStartTime = start.UTC()
	rep.SqlUptime = clampDuration(now.Sub(rep.SqlStartTime))
	rep.SqlUptimeString = FormatUptime(rep.SqlUptime)

	boot, err := r.bootTime(ctx, sess, now)
	if err != nil {
		// SQL-only report: the Windows-side fields stay unset.
		if rerr := r.report(fmt.Errorf("could not determine Windows boot time for %s: %w", sess.Name(), err)); rerr != nil {
			return rep, rerr
		}
		return rep, nil
	}

	bootUTC := boot.UTC()
	windowsUptime := clampDuration(now.Sub(bootUTC))
	rep.WindowsBootTime = &bootUTC
	rep.WindowsUptime = &windowsUptime
	rep.WindowsUptimeStr = FormatUptime(windowsUptime)
	return rep, nil
}

// bootTime applies the two-tier fallback: the DMV on the open SQL session
// first, then the remote-administration transport against the resolved host.
func (r *Runner) bootTime(ctx context.Context, sess Session, now time.Time) (time.Time, error) {
	ticks, primaryErr := sess.ServerMsTicks(ctx)
	if primaryErr == nil {
		return now.Add(-time.Duration(ticks) * time.Millisecond), nil
	}

	host, err := sess.HostFQDN(ctx)
	if err != nil {
		return time.Time{}, errors.Join(primaryErr, err)
	}
	if r.BootTime == nil {
		return time.Time{}, primaryErr
	}
	boot, err := r.BootTime(ctx, host, r.WindowsCredential)
	if err != nil {
		return time.Time{}, errors.Join(primaryErr, err)
	}
	return boot, nil
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// FormatUptime renders a duration as "{days} days {hours} hours {minutes}
// minutes {seconds} seconds".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	return fmt.Sprintf("%d days %d hours %d minutes %d seconds", days, hours, minutes, seconds)
}
