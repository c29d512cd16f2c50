package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/internal/logging"
	"github.com/sqlops-dev/sqlops/internal/mssql"
	"github.com/sqlops-dev/sqlops/pkg/models"
	"github.com/sqlops-dev/sqlops/pkg/printer"
)

var (
	loginListInstances []string
	loginListOutput    string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Server login administration",
}

var loginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List server logins",
	Long: `Lists server logins on the target instances. JSON output feeds
'sqlctl ag grant --logins-from -' so grants can be applied to a pre-fetched
set of logins.`,
	RunE: runLoginList,
}

func init() {
	f := loginListCmd.Flags()
	f.StringSliceVarP(&loginListInstances, "instance", "i", nil, "target instance (repeatable)")
	f.StringVarP(&loginListOutput, "output", "o", "table", "Output format (table, json)")

	LoginCmd.AddCommand(loginListCmd)
}

// loginLister is the slice of the session surface login listing consumes.
type loginLister interface {
	AllLogins(ctx context.Context) ([]models.Login, error)
	Close() error
}

// Seam overridable in tests.
var loginListConnect = func(ctx context.Context, target models.Target, opts mssql.Options) (loginLister, error) {
	sess, err := mssql.NewConnector(opts).Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func runLoginList(cmd *cobra.Command, args []string) error {
	designators := append(append([]string(nil), loginListInstances...), args...)
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

	log := logging.New("login-list")
	defer log.Sync()

	var logins []models.Login
	for _, target := range targets {
		sess, err := loginListConnect(cmd.Context(), target, connOpts)
		if err != nil {
			if strictErrors {
				return err
			}
			log.Warn(err.Error())
			continue
		}
		found, err := sess.AllLogins(cmd.Context())
		sess.Close()
		if err != nil {
			if strictErrors {
				return err
			}
			log.Warn(err.Error())
			continue
		}
		logins = append(logins, found...)
	}

	return printLogins(cmd.OutOrStdout(), logins, loginListOutput)
}

func printLogins(w io.Writer, logins []models.Login, format string) error {
	if format == "json" {
		return printer.PrintJSON(w, logins)
	}

	if len(logins) == 0 {
		fmt.Fprintln(w, "No logins found")
		return nil
	}

	t := printer.NewTablePrinter(w)
	t.SetHeaders("Name", "Type", "Instance", "Created")
	for _, l := range logins {
		created := ""
		if !l.CreateDate.IsZero() {
			created = l.CreateDate.Format("2006-01-02")
		}
		t.AddRow(printer.TruncateString(l.Name, 50), l.Type, l.Instance, created)
	}
	return t.Render()
}
