// Package cli wires the sqlctl command tree.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/internal/config"
	"github.com/sqlops-dev/sqlops/internal/grant"
	"github.com/sqlops-dev/sqlops/internal/inventory"
	"github.com/sqlops-dev/sqlops/internal/mssql"
	"github.com/sqlops-dev/sqlops/internal/uptime"
	"github.com/sqlops-dev/sqlops/pkg/models"
)

var (
	sqlUser      string
	sqlPassword  string
	strictErrors bool
)

// Root builds the sqlctl command tree.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlctl",
		Short: "SQL Server administration toolkit",
		Long: `sqlctl automates administrative tasks across SQL Server instances:
granting availability-group and mirroring-endpoint permissions to logins,
and reporting SQL engine and Windows host uptime.

Instances are addressed by registered name (see 'sqlctl instance list') or
directly as host, host:port or host\instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&sqlUser, "user", "u", "", "SQL login for authentication (default: integrated or SQLOPS_SQL_USER)")
	root.PersistentFlags().StringVarP(&sqlPassword, "password", "p", "", "password for SQL authentication (default: SQLOPS_SQL_PASSWORD)")
	root.PersistentFlags().BoolVar(&strictErrors, "strict", false, "surface failures as errors instead of warnings")

	root.AddCommand(AgCmd)
	root.AddCommand(UptimeCmd)
	root.AddCommand(LoginCmd)
	root.AddCommand(InstanceCmd)
	root.AddCommand(VersionCmd)
	return root
}

// connectOptions merges environment defaults with the credential flags.
func connectOptions() (mssql.Options, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return mssql.Options{}, nil, err
	}

	cred := cfg.SQLCredential()
	if sqlUser != "" {
		cred.User = sqlUser
	}
	if sqlPassword != "" {
		cred.Password = sqlPassword
	}

	return mssql.Options{
		Credential:             cred,
		ConnectTimeout:         time.Duration(cfg.ConnectTimeout) * time.Second,
		Encrypt:                cfg.Encrypt,
		TrustServerCertificate: cfg.TrustServerCertificate,
	}, cfg, nil
}

// loadInventory reads the registered-instance inventory from the configured
// or default location.
func loadInventory(cfg *config.Config) (*inventory.File, error) {
	path := cfg.Inventory
	if path == "" {
		if p, err := inventory.DefaultPath(); err == nil {
			path = p
		}
	}
	return inventory.Load(path)
}

// resolveTargets maps instance designators (registered names or raw
// host[\instance][:port] forms) to connection targets.
func resolveTargets(cfg *config.Config, designators []string) ([]models.Target, error) {
	inv, err := loadInventory(cfg)
	if err != nil {
		return nil, err
	}
	return inv.ResolveTargets(designators)
}

// Connector seams, overridable in tests.
var (
	grantConnectorFor = func(opts mssql.Options) grant.Connector {
		return grantConnector{c: mssql.NewConnector(opts)}
	}
	uptimeConnectorFor = func(opts mssql.Options) uptime.Connector {
		return uptimeConnector{c: mssql.NewConnector(opts)}
	}
)

type grantConnector struct{ c *mssql.Connector }

func (g grantConnector) Connect(ctx context.Context, target models.Target) (grant.Accessor, error) {
	sess, err := g.c.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type uptimeConnector struct{ c *mssql.Connector }

func (u uptimeConnector) Connect(ctx context.Context, target models.Target) (uptime.Session, error) {
	sess, err := u.c.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
