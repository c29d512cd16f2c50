// Package models defines the flat record types emitted by sqlctl commands.
// Records are shaped for both table display and JSON pipeline consumption.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Target identifies a SQL Server endpoint to connect to.
type Target struct {
	Host     string `json:"host"`
	Instance string `json:"instance,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Credential carries a user/password pair for SQL or Windows authentication.
// An empty User means integrated authentication.
type Credential struct {
	User     string `json:"user,omitempty"`
	Password string `json:"-"`
}

// ParseTarget parses an instance designator of the form
// "host", "host:port", "host,port", `host\instance` or `host\instance:port`.
func ParseTarget(s string) (Target, error) {
	t := Target{}
	s = strings.TrimSpace(s)
	if s == "" {
		return t, fmt.Errorf("empty instance designator")
	}

	// SQL Server convention allows "host,port" as well as "host:port".
	host := s
	if i := strings.LastIndexAny(s, ":,"); i >= 0 {
		port, err := strconv.Atoi(s[i+1:])
		if err != nil || port <= 0 || port > 65535 {
			return t, fmt.Errorf("invalid port in instance designator %q", s)
		}
		t.Port = port
		host = s[:i]
	}

	if i := strings.IndexByte(host, '\\'); i >= 0 {
		t.Instance = host[i+1:]
		host = host[:i]
	}
	if host == "" {
		return t, fmt.Errorf("missing host in instance designator %q", s)
	}
	t.Host = host
	return t, nil
}

// Name returns the display form of the target, e.g. "sqlhost" or
// `sqlhost\myinstance`.
func (t Target) Name() string {
	if t.Instance != "" {
		return t.Host + `\` + t.Instance
	}
	return t.Host
}

// Login is a server-level security principal together with the instance it
// was fetched from. Instance uses the same display form Target.Name produces,
// so a login record round-trips back into a connectable target.
type Login struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Instance   string    `json:"instance"`
	CreateDate time.Time `json:"create_date,omitzero"`
}

// IsWindowsName reports whether a login name looks like a Windows account
// (DOMAIN\user). Only such names are auto-provisioned when missing.
func IsWindowsName(name string) bool {
	return strings.Contains(name, `\`)
}

// GrantResult records one attempted permission grant.
type GrantResult struct {
	ComputerName string `json:"computer_name"`
	InstanceName string `json:"instance_name"`
	SqlInstance  string `json:"sql_instance"`
	Login        string `json:"login"`
	Permission   string `json:"permission"`
	Type         string `json:"type"`
	Operation    string `json:"operation"`
	Status       string `json:"status"`
}

// UptimeReport summarises engine and host uptime for one instance. The
// Windows-side fields are pointers so a SQL-only report omits them from JSON
// output entirely instead of rendering zero values.
type UptimeReport struct {
	ComputerName     string         `json:"computer_name"`
	InstanceName     string         `json:"instance_name"`
	SqlServer        string         `json:"sql_server"`
	SqlStartTime     time.Time      `json:"sql_start_time"`
	SqlUptime        time.Duration  `json:"sql_uptime_ns"`
	SqlUptimeString  string         `json:"sql_uptime"`
	WindowsBootTime  *time.Time     `json:"windows_boot_time,omitempty"`
	WindowsUptime    *time.Duration `json:"windows_uptime_ns,omitempty"`
	WindowsUptimeStr string         `json:"windows_uptime,omitempty"`
}
