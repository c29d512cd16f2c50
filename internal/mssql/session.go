package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Session is an open connection to one instance. It exposes the consumed
// slice of the server-management surface: logins, the mirroring endpoint,
// availability groups, and the metadata the uptime reporter reads.
type Session struct {
	db   *sql.DB
	name string
}

// Name returns the display name the session was opened under.
func (s *Session) Name() string { return s.name }

func (s *Session) Close() error { return s.db.Close() }

// QuoteName brackets a SQL Server identifier, escaping closing brackets.
func QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// permissionSQL maps a permission name to its T-SQL keyword form.
func permissionSQL(permission string) (string, error) {
	switch permission {
	case "Connect":
		return "CONNECT", nil
	case "Alter":
		return "ALTER", nil
	case "Control":
		return "CONTROL", nil
	case "TakeOwnership":
		return "TAKE OWNERSHIP", nil
	case "ViewDefinition":
		return "VIEW DEFINITION", nil
	}
	return "", fmt.Errorf("permission %q has no grantable T-SQL form", permission)
}

func placeholders(n int, offset int) []string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("@p%d", offset+i+1)
	}
	return ph
}

// Logins looks up server logins by name. Names not present on the instance
// are simply absent from the result.
func (s *Session) Logins(ctx context.Context, names []string) ([]models.Login, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := fmt.Sprintf(
		`SELECT name, type_desc, create_date FROM sys.server_principals
		 WHERE type IN ('S', 'U', 'G') AND name IN (%s)`,
		strings.Join(placeholders(len(names), 0), ", "))

	return s.queryLogins(ctx, query, args...)
}

// AllLogins enumerates every user-visible server login.
func (s *Session) AllLogins(ctx context.Context) ([]models.Login, error) {
	query := `SELECT name, type_desc, create_date FROM sys.server_principals
		 WHERE type IN ('S', 'U', 'G') AND name NOT LIKE '##%' ORDER BY name`
	return s.queryLogins(ctx, query)
}

func (s *Session) queryLogins(ctx context.Context, query string, args ...any) ([]models.Login, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logins on %s: %w", s.name, err)
	}
	defer rows.Close()

	var logins []models.Login
	for rows.Next() {
		var l models.Login
		var created sql.NullTime
		if err := rows.Scan(&l.Name, &l.Type, &created); err != nil {
			return nil, fmt.Errorf("failed to scan login row on %s: %w", s.name, err)
		}
		if created.Valid {
			l.CreateDate = created.Time
		}
		l.Instance = s.name
		logins = append(logins, l)
	}
	return logins, rows.Err()
}

// CreateWindowsLogin provisions a Windows login on the instance.
func (s *Session) CreateWindowsLogin(ctx context.Context, name string) (models.Login, error) {
	stmt := fmt.Sprintf("CREATE LOGIN %s FROM WINDOWS", QuoteName(name))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return models.Login{}, fmt.Errorf("failed to create login %s on %s: %w", name, s.name, err)
	}

	created, err := s.Logins(ctx, []string{name})
	if err == nil && len(created) == 1 {
		return created[0], nil
	}
	return models.Login{Name: name, Type: "WINDOWS_LOGIN", Instance: s.name, CreateDate: time.Now()}, nil
}

// MirroringEndpoint returns the name of the database-mirroring endpoint, or
// an empty string when the instance has none.
func (s *Session) MirroringEndpoint(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sys.endpoints WHERE type = 4").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to locate mirroring endpoint on %s: %w", s.name, err)
	}
	return name, nil
}

// GrantEndpointPermission grants one permission on the endpoint to a login.
func (s *Session) GrantEndpointPermission(ctx context.Context, endpoint, login, permission string) error {
	kw, err := permissionSQL(permission)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("GRANT %s ON ENDPOINT::%s TO %s", kw, QuoteName(endpoint), QuoteName(login))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to grant %s on endpoint %s to %s on %s: %w",
			permission, endpoint, login, s.name, err)
	}
	return nil
}

// AvailabilityGroups resolves the named availability groups that exist on
// the instance.
func (s *Session) AvailabilityGroups(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := fmt.Sprintf(
		"SELECT name FROM sys.availability_groups WHERE name IN (%s) ORDER BY name",
		strings.Join(placeholders(len(names), 0), ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability groups on %s: %w", s.name, err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan availability group row on %s: %w", s.name, err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GrantAGPermission grants one permission on an availability group to a login.
func (s *Session) GrantAGPermission(ctx context.Context, group, login, permission string) error {
	kw, err := permissionSQL(permission)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("GRANT %s ON AVAILABILITY GROUP::%s TO %s", kw, QuoteName(group), QuoteName(login))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to grant %s on availability group %s to %s on %s: %w",
			permission, group, login, s.name, err)
	}
	return nil
}

// GrantCreateAnyDatabase grants the server-level CREATE ANY DATABASE
// privilege for an availability group. This is an instance-level alter, not
// an object grant to a login.
func (s *Session) GrantCreateAnyDatabase(ctx context.Context, group string) error {
	stmt := fmt.Sprintf("ALTER AVAILABILITY GROUP %s GRANT CREATE ANY DATABASE", QuoteName(group))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to grant CreateAnyDatabase for availability group %s on %s: %w",
			group, s.name, err)
	}
	return nil
}

// TempdbCreateDate reads the creation timestamp of tempdb. tempdb is rebuilt
// at every engine start, so its creation time is the engine start time.
func (s *Session) TempdbCreateDate(ctx context.Context) (time.Time, error) {
	var created time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT create_date FROM sys.databases WHERE name = 'tempdb'").Scan(&created)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read tempdb creation time on %s: %w", s.name, err)
	}
	return created, nil
}

// ServerMsTicks reads milliseconds elapsed since the host started. Requires
// VIEW SERVER STATE.
func (s *Session) ServerMsTicks(ctx context.Context) (int64, error) {
	var ticks int64
	err := s.db.QueryRowContext(ctx,
		"SELECT ms_ticks FROM sys.dm_os_sys_info").Scan(&ticks)
	if err != nil {
		return 0, fmt.Errorf("failed to read ms_ticks on %s: %w", s.name, err)
	}
	return ticks, nil
}

// ComputerName returns the NetBIOS name of the hosting machine.
func (s *Session) ComputerName(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT CAST(SERVERPROPERTY('MachineName') AS nvarchar(128))").Scan(&name)
	if err != nil {
		return "", fmt.Errorf("failed to read machine name on %s: %w", s.name, err)
	}
	return name, nil
}

// InstanceName returns the instance name, MSSQLSERVER for the default one.
func (s *Session) InstanceName(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT CAST(ISNULL(SERVERPROPERTY('InstanceName'), 'MSSQLSERVER') AS nvarchar(128))").Scan(&name)
	if err != nil {
		return "", fmt.Errorf("failed to read instance name on %s: %w", s.name, err)
	}
	return name, nil
}

// HostFQDN resolves the fully-qualified name of the hosting machine from the
// machine name and the server's default domain.
func (s *Session) HostFQDN(ctx context.Context) (string, error) {
	var machine, domain string
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(SERVERPROPERTY('MachineName') AS nvarchar(128)),
		        ISNULL(DEFAULT_DOMAIN(), '')`).Scan(&machine, &domain)
	if err != nil {
		return "", fmt.Errorf("failed to resolve host name on %s: %w", s.name, err)
	}
	fqdn := strings.ToLower(machine)
	if domain != "" {
		fqdn = fqdn + "." + strings.ToLower(domain)
	}
	return fqdn, nil
}
