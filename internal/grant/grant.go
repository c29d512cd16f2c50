// Package grant implements the availability-group and mirroring-endpoint
// permission grant handler. It talks to instances through the Connector and
// Accessor seams so the whole flow is testable against fakes.
package grant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Permission is one grantable permission from the enumerated set.
type Permission string

const (
	Connect           Permission = "Connect"
	Alter             Permission = "Alter"
	Control           Permission = "Control"
	TakeOwnership     Permission = "TakeOwnership"
	ViewDefinition    Permission = "ViewDefinition"
	CreateAnyDatabase Permission = "CreateAnyDatabase"
)

var allPermissions = []Permission{Connect, Alter, Control, TakeOwnership, ViewDefinition, CreateAnyDatabase}

// agGrantable is the set of permissions valid as object grants on an
// availability group.
var agGrantable = map[Permission]bool{
	Alter:          true,
	Control:        true,
	TakeOwnership:  true,
	ViewDefinition: true,
}

// ParsePermission matches a permission name case-insensitively.
func ParsePermission(s string) (Permission, error) {
	for _, p := range allPermissions {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown permission %q", s)
}

// TargetType selects which securable the grants apply to.
type TargetType string

const (
	Endpoint          TargetType = "Endpoint"
	AvailabilityGroup TargetType = "AvailabilityGroup"
)

// ParseTargetType accepts "endpoint", "ag" or "availabilitygroup".
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(s) {
	case "endpoint":
		return Endpoint, nil
	case "ag", "availabilitygroup":
		return AvailabilityGroup, nil
	}
	return "", fmt.Errorf("unknown grant type %q", s)
}

// Accessor is the slice of the server-management surface the handler
// consumes on one instance.
type Accessor interface {
	Name() string
	ComputerName(ctx context.Context) (string, error)
	InstanceName(ctx context.Context) (string, error)
	Logins(ctx context.Context, names []string) ([]models.Login, error)
	CreateWindowsLogin(ctx context.Context, name string) (models.Login, error)
	MirroringEndpoint(ctx context.Context) (string, error)
	GrantEndpointPermission(ctx context.Context, endpoint, login, permission string) error
	AvailabilityGroups(ctx context.Context, names []string) ([]string, error)
	GrantAGPermission(ctx context.Context, group, login, permission string) error
	GrantCreateAnyDatabase(ctx context.Context, group string) error
	Close() error
}

// Connector opens sessions to target instances.
type Connector interface {
	Connect(ctx context.Context, target models.Target) (Accessor, error)
}

// Options describe one grant invocation.
type Options struct {
	Targets            []models.Target
	InputLogins        []models.Login
	Types              []TargetType
	Logins             []string
	AvailabilityGroups []string
	Permissions        []Permission
}

// HasType reports whether the invocation includes the given securable type.
func (o *Options) HasType(t TargetType) bool {
	for _, tt := range o.Types {
		if tt == t {
			return true
		}
	}
	return false
}

// Validate enforces the fail-fast parameter rules. No server work happens
// before these pass.
func (o *Options) Validate() error {
	if len(o.Targets) == 0 && len(o.InputLogins) == 0 {
		return fmt.Errorf("either an instance or pre-fetched login records must be supplied")
	}
	if len(o.Types) == 0 {
		return fmt.Errorf("at least one grant type (endpoint, ag) must be supplied")
	}
	if o.HasType(Endpoint) && len(o.Targets) > 0 && len(o.Logins) == 0 {
		return fmt.Errorf("endpoint grants require login names when instances are supplied directly")
	}
	if o.HasType(AvailabilityGroup) && len(o.AvailabilityGroups) == 0 {
		return fmt.Errorf("availability-group grants require at least one availability group name")
	}
	return nil
}

// Runner executes grant invocations. Recoverable failures are logged as
// warnings and skipped unless Strict is set, in which case the first failure
// is returned together with the results accumulated so far. DryRun surfaces
// every intended action without executing grants or emitting records.
type Runner struct {
	Connector Connector
	Log       *zap.Logger
	Strict    bool
	DryRun    bool
}

// report handles a recoverable failure: in strict mode it is returned for
// propagation, otherwise logged as a warning and swallowed.
func (r *Runner) report(err error) error {
	if r.Strict {
		return err
	}
	r.Log.Warn(err.Error())
	return nil
}

type identity struct {
	computer string
	instance string
}

// Run resolves logins across the target instances and applies the requested
// grants, emitting one result record per successful grant.
func (r *Runner) Run(ctx context.Context, opts Options) ([]models.GrantResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	perms := opts.Permissions
	if len(perms) == 0 {
		perms = []Permission{Connect}
	}

	sessions := make(map[string]Accessor)
	defer func() {
		for _, acc := range sessions {
			acc.Close()
		}
	}()

	var results []models.GrantResult
	logins := append([]models.Login(nil), opts.InputLogins...)

	for _, target := range opts.Targets {
		acc, err := r.Connector.Connect(ctx, target)
		if err != nil {
			if rerr := r.report(err); rerr != nil {
				return results, rerr
			}
			continue
		}
		sessions[acc.Name()] = acc

		resolved, err := r.prepareInstance(ctx, acc, opts, perms)
		logins = append(logins, resolved...)
		if err != nil {
			if rerr := r.report(err); rerr != nil {
				return results, rerr
			}
		}
	}

	for _, login := range logins {
		acc, err := r.sessionFor(ctx, sessions, login)
		if err != nil {
			if rerr := r.report(err); rerr != nil {
				return results, rerr
			}
			continue
		}

		granted, err := r.grantToLogin(ctx, acc, login, opts, perms)
		results = append(results, granted...)
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// prepareInstance runs the per-instance phase: the instance-level
// CreateAnyDatabase privilege and login resolution/creation. A returned
// error aborts the remaining work for this instance only.
func (r *Runner) prepareInstance(ctx context.Context, acc Accessor, opts Options, perms []Permission) ([]models.Login, error) {
	if hasPermission(perms, CreateAnyDatabase) {
		for _, group := range opts.AvailabilityGroups {
			if r.DryRun {
				r.Log.Info("dry run: would grant CreateAnyDatabase",
					zap.String("instance", acc.Name()), zap.String("availability_group", group))
				continue
			}
			if err := acc.GrantCreateAnyDatabase(ctx, group); err != nil {
				return nil, err
			}
		}
	}

	if len(opts.Logins) == 0 {
		return nil, nil
	}

	existing, err := acc.Logins(ctx, opts.Logins)
	if err != nil {
		return nil, err
	}
	logins := existing

	known := make(map[string]bool, len(existing)+len(opts.InputLogins))
	for _, l := range existing {
		known[l.Name] = true
	}
	for _, l := range opts.InputLogins {
		known[l.Name] = true
	}

	for _, name := range opts.Logins {
		if known[name] {
			continue
		}
		if !models.IsWindowsName(name) {
			if rerr := r.report(fmt.Errorf("login %s does not exist on %s and only Windows logins are auto-created", name, acc.Name())); rerr != nil {
				return logins, rerr
			}
			continue
		}
		if r.DryRun {
			r.Log.Info("dry run: would create Windows login",
				zap.String("instance", acc.Name()), zap.String("login", name))
			continue
		}
		created, err := acc.CreateWindowsLogin(ctx, name)
		if err != nil {
			return logins, err
		}
		logins = append(logins, created)
	}

	return logins, nil
}

// sessionFor recovers the owning instance of a login, connecting on demand
// for piped-in logins whose instance was not among the targets.
func (r *Runner) sessionFor(ctx context.Context, sessions map[string]Accessor, login models.Login) (Accessor, error) {
	if acc, ok := sessions[login.Instance]; ok {
		return acc, nil
	}
	target, err := models.ParseTarget(login.Instance)
	if err != nil {
		return nil, fmt.Errorf("login %s has an unusable instance reference %q: %w", login.Name, login.Instance, err)
	}
	acc, err := r.Connector.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	sessions[login.Instance] = acc
	return acc, nil
}

// grantToLogin applies the endpoint and availability-group grants for one
// login. The returned error is non-nil only in strict mode.
func (r *Runner) grantToLogin(ctx context.Context, acc Accessor, login models.Login, opts Options, perms []Permission) ([]models.GrantResult, error) {
	var results []models.GrantResult
	id := r.identityFor(ctx, acc)

	if opts.HasType(Endpoint) {
		endpoint, err := acc.MirroringEndpoint(ctx)
		if err == nil && endpoint == "" {
			err = fmt.Errorf("no database mirroring endpoint found on %s", acc.Name())
		}
		if err != nil {
			// Without an endpoint there is nothing to grant for this login.
			return results, r.report(err)
		}

		for _, perm := range perms {
			if perm == CreateAnyDatabase {
				if rerr := r.report(fmt.Errorf("permission CreateAnyDatabase is not supported for endpoint grants on %s", acc.Name())); rerr != nil {
					return results, rerr
				}
				continue
			}
			if r.DryRun {
				r.Log.Info("dry run: would grant endpoint permission",
					zap.String("instance", acc.Name()), zap.String("endpoint", endpoint),
					zap.String("login", login.Name), zap.String("permission", string(perm)))
				continue
			}
			if err := acc.GrantEndpointPermission(ctx, endpoint, login.Name, string(perm)); err != nil {
				if rerr := r.report(err); rerr != nil {
					return results, rerr
				}
				continue
			}
			results = append(results, r.result(id, acc, login, perm, Endpoint))
		}
	}

	if opts.HasType(AvailabilityGroup) {
		groups, err := acc.AvailabilityGroups(ctx, opts.AvailabilityGroups)
		if err != nil {
			return results, r.report(err)
		}
		found := make(map[string]bool, len(groups))
		for _, g := range groups {
			found[g] = true
		}
		for _, name := range opts.AvailabilityGroups {
			if !found[name] {
				if rerr := r.report(fmt.Errorf("availability group %s not found on %s", name, acc.Name())); rerr != nil {
					return results, rerr
				}
			}
		}

		for _, group := range groups {
			for _, perm := range perms {
				if !agGrantable[perm] {
					if rerr := r.report(fmt.Errorf("permission %s is not supported for availability-group grants on %s", perm, acc.Name())); rerr != nil {
						return results, rerr
					}
					continue
				}
				if r.DryRun {
					r.Log.Info("dry run: would grant availability-group permission",
						zap.String("instance", acc.Name()), zap.String("availability_group", group),
						zap.String("login", login.Name), zap.String("permission", string(perm)))
					continue
				}
				if err := acc.GrantAGPermission(ctx, group, login.Name, string(perm)); err != nil {
					if rerr := r.report(err); rerr != nil {
						return results, rerr
					}
					continue
				}
				results = append(results, r.result(id, acc, login, perm, AvailabilityGroup))
			}
		}
	}

	return results, nil
}

// identityFor resolves the computer and instance names behind a session,
// falling back to the display name when the lookup fails.
func (r *Runner) identityFor(ctx context.Context, acc Accessor) identity {
	id := identity{computer: acc.Name(), instance: "MSSQLSERVER"}
	if computer, err := acc.ComputerName(ctx); err == nil {
		id.computer = computer
	}
	if instance, err := acc.InstanceName(ctx); err == nil {
		id.instance = instance
	}
	return id
}

func (r *Runner) result(id identity, acc Accessor, login models.Login, perm Permission, t TargetType) models.GrantResult {
	return models.GrantResult{
		ComputerName: id.computer,
		InstanceName: id.instance,
		SqlInstance:  acc.Name(),
		Login:        login.Name,
		Permission:   string(perm),
		Type:         string(t),
		Operation:    "Grant",
		Status:       "Success",
	}
}

func hasPermission(perms []Permission, p Permission) bool {
	for _, perm := range perms {
		if perm == p {
			return true
		}
	}
	return false
}
