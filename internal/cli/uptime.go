package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/internal/hostinfo"
	"github.com/sqlops-dev/sqlops/internal/logging"
	"github.com/sqlops-dev/sqlops/internal/uptime"
	"github.com/sqlops-dev/sqlops/pkg/models"
	"github.com/sqlops-dev/sqlops/pkg/printer"
)

var (
	uptimeInstances []string
	uptimeWMIUser   string
	uptimeWMIPass   string
	uptimeOutput    string
)

var UptimeCmd = &cobra.Command{
	Use:   "uptime [instance...]",
	Short: "Report SQL Server and Windows host uptime",
	Long: `Reports how long each SQL engine and its hosting Windows server have
been up. Engine start time is tempdb's creation timestamp; host boot time is
read through the SQL session first and over the Windows remote-administration
transport when that fails. Instances whose boot time cannot be determined
are reported SQL-only.`,
	RunE: runUptime,
}

func init() {
	f := UptimeCmd.Flags()
	f.StringSliceVarP(&uptimeInstances, "instance", "i", nil, "target instance (repeatable)")
	f.StringVar(&uptimeWMIUser, "wmi-user", "", "Windows account for remote-administration queries")
	f.StringVar(&uptimeWMIPass, "wmi-password", "", "password for the Windows account")
	f.StringVarP(&uptimeOutput, "output", "o", "table", "Output format (table, json)")
}

func runUptime(cmd *cobra.Command, args []string) error {
	designators := append(append([]string(nil), uptimeInstances...), args...)
	if len(designators) == 0 {
		return fmt.Errorf("at least one instance must be supplied")
	}

	connOpts, cfg, err := connectOptions()
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cfg, designators)
	if err != nil {
		return err
	}

	wmiCred := cfg.WMICredential()
	if uptimeWMIUser != "" {
		wmiCred = models.Credential{User: uptimeWMIUser, Password: uptimeWMIPass}
	}

	log := logging.New("uptime")
	defer log.Sync()

	runner := &uptime.Runner{
		Connector:         uptimeConnectorFor(connOpts),
		Log:               log,
		Strict:            strictErrors,
		BootTime:          hostinfo.BootTime,
		WindowsCredential: wmiCred,
	}
	reports, err := runner.Run(cmd.Context(), targets)
	if err != nil {
		return err
	}

	return printUptimeReports(cmd.OutOrStdout(), reports, uptimeOutput)
}

func printUptimeReports(w io.Writer, reports []models.UptimeReport, format string) error {
	if format == "json" {
		return printer.PrintJSON(w, reports)
	}

	if len(reports) == 0 {
		fmt.Fprintln(w, "No instances could be reached")
		return nil
	}

	t := printer.NewTablePrinter(w)
	t.SetHeaders("SqlServer", "SqlStartTime", "SqlUptime", "WindowsBootTime", "WindowsUptime")
	for _, r := range reports {
		bootTime, windowsUptime := "", ""
		if r.WindowsBootTime != nil {
			bootTime = r.WindowsBootTime.Format(time.RFC3339)
			windowsUptime = r.WindowsUptimeStr
		}
		t.AddRow(r.SqlServer, r.SqlStartTime.Format(time.RFC3339), r.SqlUptimeString, bootTime, windowsUptime)
	}
	return t.Render()
}
