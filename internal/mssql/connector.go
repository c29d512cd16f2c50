// Package mssql implements instance connections and the narrow
// server-management surface sqlctl consumes, over the go-mssqldb driver.
// Everything the command handlers need from a server goes through a
// Session so tests can substitute fakes.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // register the sqlserver driver

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Options control how connections are established.
type Options struct {
	Credential             models.Credential
	ConnectTimeout         time.Duration
	Encrypt                bool
	TrustServerCertificate bool
}

// Connector opens authenticated sessions to SQL Server instances.
type Connector struct {
	opts Options
}

func NewConnector(opts Options) *Connector {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &Connector{opts: opts}
}

// Connect opens a session to the target and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context, target models.Target) (*Session, error) {
	db, err := sql.Open("sqlserver", BuildConnectionString(target, c.opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", target.Name(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", target.Name(), err)
	}

	return &Session{db: db, name: target.Name()}, nil
}

// BuildConnectionString assembles a go-mssqldb keyword connection string.
func BuildConnectionString(t models.Target, o Options) string {
	parts := []string{fmt.Sprintf("server=%s", t.Host)}

	if t.Instance != "" {
		parts = append(parts, fmt.Sprintf("instance=%s", t.Instance))
	}
	// Named instances without an explicit port resolve it via the browser
	// service, so no port is emitted for them.
	switch {
	case t.Port > 0:
		parts = append(parts, fmt.Sprintf("port=%d", t.Port))
	case t.Instance == "":
		parts = append(parts, "port=1433")
	}

	if o.Credential.User != "" {
		parts = append(parts, fmt.Sprintf("user id=%s", o.Credential.User))
		parts = append(parts, fmt.Sprintf("password=%s", o.Credential.Password))
	}

	if o.Encrypt {
		parts = append(parts, "encrypt=true")
	} else {
		parts = append(parts, "encrypt=false")
	}
	if o.TrustServerCertificate {
		parts = append(parts, "TrustServerCertificate=true")
	}

	if o.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connection timeout=%d", int(o.ConnectTimeout.Seconds())))
	}
	parts = append(parts, "app name=sqlctl")

	return strings.Join(parts, ";")
}
