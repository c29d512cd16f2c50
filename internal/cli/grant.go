package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/internal/grant"
	"github.com/sqlops-dev/sqlops/internal/logging"
	"github.com/sqlops-dev/sqlops/pkg/models"
	"github.com/sqlops-dev/sqlops/pkg/printer"
)

var (
	agGrantInstances   []string
	agGrantLogins      []string
	agGrantGroups      []string
	agGrantTypes       []string
	agGrantPermissions []string
	agGrantLoginsFrom  string
	agGrantDryRun      bool
	agGrantOutput      string
)

var AgCmd = &cobra.Command{
	Use:   "ag",
	Short: "Availability-group administration",
}

var agGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant endpoint and availability-group permissions to logins",
	Long: `Grants permissions on the database-mirroring endpoint and/or named
availability groups to server logins. Missing Windows logins are created
before the grant is attempted.

Login records produced by 'sqlctl login list -o json' can be piped in via
--logins-from - instead of (or in addition to) naming instances.`,
	RunE: runAgGrant,
}

func init() {
	f := agGrantCmd.Flags()
	f.StringSliceVarP(&agGrantInstances, "instance", "i", nil, "target instance (repeatable)")
	f.StringSliceVarP(&agGrantLogins, "login", "l", nil, "login name to grant to (repeatable)")
	f.StringSliceVarP(&agGrantGroups, "ag", "g", nil, "availability group name (repeatable)")
	f.StringSliceVarP(&agGrantTypes, "type", "t", nil, "grant target type: endpoint or ag (repeatable)")
	f.StringSliceVar(&agGrantPermissions, "permission", []string{"connect"}, "permission to grant (repeatable)")
	f.StringVar(&agGrantLoginsFrom, "logins-from", "", "read login records as JSON from FILE (- for stdin)")
	f.BoolVar(&agGrantDryRun, "dry-run", false, "show intended grants without executing them")
	f.StringVarP(&agGrantOutput, "output", "o", "table", "Output format (table, json)")
	agGrantCmd.MarkFlagRequired("type")

	AgCmd.AddCommand(agGrantCmd)
}

func runAgGrant(cmd *cobra.Command, args []string) error {
	connOpts, cfg, err := connectOptions()
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cfg, agGrantInstances)
	if err != nil {
		return err
	}

	types := make([]grant.TargetType, 0, len(agGrantTypes))
	for _, t := range agGrantTypes {
		tt, err := grant.ParseTargetType(t)
		if err != nil {
			return err
		}
		types = append(types, tt)
	}
	perms := make([]grant.Permission, 0, len(agGrantPermissions))
	for _, p := range agGrantPermissions {
		perm, err := grant.ParsePermission(p)
		if err != nil {
			return err
		}
		perms = append(perms, perm)
	}

	var inputLogins []models.Login
	if agGrantLoginsFrom != "" {
		inputLogins, err = readLoginRecords(cmd, agGrantLoginsFrom)
		if err != nil {
			return err
		}
	}

	log := logging.New("ag-grant")
	defer log.Sync()

	runner := &grant.Runner{
		Connector: grantConnectorFor(connOpts),
		Log:       log,
		Strict:    strictErrors,
		DryRun:    agGrantDryRun,
	}
	results, err := runner.Run(cmd.Context(), grant.Options{
		Targets:            targets,
		InputLogins:        inputLogins,
		Types:              types,
		Logins:             agGrantLogins,
		AvailabilityGroups: agGrantGroups,
		Permissions:        perms,
	})
	if err != nil {
		return err
	}

	return printGrantResults(cmd.OutOrStdout(), results, agGrantOutput)
}

// readLoginRecords decodes login records from a file or stdin. Both a JSON
// array and a stream of JSON objects are accepted.
func readLoginRecords(cmd *cobra.Command, source string) ([]models.Login, error) {
	var r io.Reader
	if source == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open login records %s: %w", source, err)
		}
		defer f.Close()
		r = f
	}
	return decodeLoginRecords(r)
}

func decodeLoginRecords(r io.Reader) ([]models.Login, error) {
	dec := json.NewDecoder(r)
	var logins []models.Login
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode login records: %w", err)
		}
		if len(raw) > 0 && raw[0] == '[' {
			var batch []models.Login
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("failed to decode login records: %w", err)
			}
			logins = append(logins, batch...)
			continue
		}
		var l models.Login
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("failed to decode login record: %w", err)
		}
		logins = append(logins, l)
	}
	return logins, nil
}

func printGrantResults(w io.Writer, results []models.GrantResult, format string) error {
	if format == "json" {
		return printer.PrintJSON(w, results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No grants were applied")
		return nil
	}

	t := printer.NewTablePrinter(w)
	t.SetHeaders("Computer", "Instance", "SqlInstance", "Login", "Permission", "Type", "Status")
	for _, r := range results {
		t.AddRow(r.ComputerName, r.InstanceName, r.SqlInstance, r.Login, r.Permission, r.Type, r.Status)
	}
	return t.Render()
}
