package uptime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

type fakeSession struct {
	name         string
	computer     string
	instance     string
	tempdbCreate time.Time
	msTicks      int64
	msTicksErr   error
	fqdn         string
	closed       bool
}

func (f *fakeSession) Name() string { return f.name }

func (f *fakeSession) ComputerName(context.Context) (string, error) { return f.computer, nil }

func (f *fakeSession) InstanceName(context.Context) (string, error) { return f.instance, nil }

func (f *fakeSession) TempdbCreateDate(context.Context) (time.Time, error) {
	return f.tempdbCreate, nil
}

func (f *fakeSession) ServerMsTicks(context.Context) (int64, error) {
	return f.msTicks, f.msTicksErr
}

func (f *fakeSession) HostFQDN(context.Context) (string, error) { return f.fqdn, nil }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeConnector struct {
	sessions   map[string]*fakeSession
	connectErr map[string]error
}

func (c *fakeConnector) Connect(_ context.Context, target models.Target) (Session, error) {
	if err := c.connectErr[target.Name()]; err != nil {
		return nil, err
	}
	sess, ok := c.sessions[target.Name()]
	if !ok {
		return nil, fmt.Errorf("failed to connect to %s: no such instance", target.Name())
	}
	return sess, nil
}

func newRunner(c *fakeConnector) (*Runner, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return &Runner{Connector: c, Log: zap.New(core)}, logs
}

func target(s string) models.Target {
	t, err := models.ParseTarget(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSqlUptimeFromTempdbCreation(t *testing.T) {
	started := time.Now().UTC().Add(-(73*time.Hour + 15*time.Minute + 9*time.Second))
	sess := &fakeSession{
		name:         "sql1",
		computer:     "HOST1",
		instance:     "MSSQLSERVER",
		tempdbCreate: started,
		msTicksErr:   errors.New("VIEW SERVER STATE permission denied"),
		fqdn:         "host1.corp.local",
	}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"sql1": sess}}
	r, _ := newRunner(conn)

	reports, err := r.Run(context.Background(), []models.Target{target("sql1")})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	assert.Equal(t, "HOST1", rep.ComputerName)
	assert.Equal(t, "MSSQLSERVER", rep.InstanceName)
	assert.Equal(t, "sql1", rep.SqlServer)
	assert.Equal(t, started, rep.SqlStartTime)

	// The batch reference time is captured after `started`, so the uptime
	// must land in a tight window around 73h15m9s.
	assert.GreaterOrEqual(t, rep.SqlUptime, 73*time.Hour+15*time.Minute+9*time.Second)
	assert.Less(t, rep.SqlUptime, 73*time.Hour+15*time.Minute+11*time.Second)
	assert.Equal(t, FormatUptime(rep.SqlUptime), rep.SqlUptimeString)
	assert.True(t, sess.closed)
}

func TestWindowsUptimeFromMsTicks(t *testing.T) {
	sess := &fakeSession{
		name:         "sql1",
		computer:     "HOST1",
		instance:     "MSSQLSERVER",
		tempdbCreate: time.Now().UTC().Add(-time.Hour),
		msTicks:      (48 * time.Hour).Milliseconds(),
	}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"sql1": sess}}
	r, _ := newRunner(conn)

	reports, err := r.Run(context.Background(), []models.Target{target("sql1")})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	require.NotNil(t, rep.WindowsBootTime)
	require.NotNil(t, rep.WindowsUptime)
	assert.Equal(t, 48*time.Hour, *rep.WindowsUptime)
	assert.Equal(t, "2 days 0 hours 0 minutes 0 seconds", rep.WindowsUptimeStr)
}

func TestFallbackToRemoteTransport(t *testing.T) {
	boot := time.Now().UTC().Add(-30 * time.Hour).Truncate(time.Second)
	sess := &fakeSession{
		name:         "sql1",
		computer:     "HOST1",
		instance:     "MSSQLSERVER",
		tempdbCreate: time.Now().UTC().Add(-time.Hour),
		msTicksErr:   errors.New("permission denied"),
		fqdn:         "host1.corp.local",
	}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"sql1": sess}}
	r, _ := newRunner(conn)

	var queriedHost string
	r.WindowsCredential = models.Credential{User: `CORP\admin`, Password: "pw"}
	r.BootTime = func(_ context.Context, host string, cred models.Credential) (time.Time, error) {
		queriedHost = host
		assert.Equal(t, `CORP\admin`, cred.User)
		return boot, nil
	}

	reports, err := r.Run(context.Background(), []models.Target{target("sql1")})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, "host1.corp.local", queriedHost)
	require.NotNil(t, reports[0].WindowsBootTime)
	assert.Equal(t, boot, *reports[0].WindowsBootTime)
}

func TestDegradedInstancesEmitSqlOnlyRecords(t *testing.T) {
	good := &fakeSession{
		name: "sql1", computer: "HOST1", instance: "MSSQLSERVER",
		tempdbCreate: time.Now().UTC().Add(-time.Hour),
		msTicks:      (2 * time.Hour).Milliseconds(),
	}
	degraded := &fakeSession{
		name: "sql2", computer: "HOST2", instance: "MSSQLSERVER",
		tempdbCreate: time.Now().UTC().Add(-time.Hour),
		msTicksErr:   errors.New("permission denied"),
		fqdn:         "host2.corp.local",
	}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"sql1": good, "sql2": degraded}}
	r, logs := newRunner(conn)
	r.BootTime = func(context.Context, string, models.Credential) (time.Time, error) {
		return time.Time{}, errors.New("RPC server unavailable")
	}

	reports, err := r.Run(context.Background(), []models.Target{target("sql1"), target("sql2")})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.NotNil(t, reports[0].WindowsBootTime)
	assert.Nil(t, reports[1].WindowsBootTime)
	assert.Nil(t, reports[1].WindowsUptime)
	assert.Empty(t, reports[1].WindowsUptimeStr)
	assert.NotZero(t, reports[1].SqlUptime)
	assert.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "boot time")

	for _, rep := range reports {
		assert.GreaterOrEqual(t, rep.SqlUptime, time.Duration(0))
	}
}

func TestConnectionFailureSkipsInstance(t *testing.T) {
	good := &fakeSession{
		name: "sql2", computer: "HOST2", instance: "MSSQLSERVER",
		tempdbCreate: time.Now().UTC().Add(-time.Hour),
		msTicks:      (2 * time.Hour).Milliseconds(),
	}
	conn := &fakeConnector{
		sessions:   map[string]*fakeSession{"sql2": good},
		connectErr: map[string]error{"sql1": errors.New("failed to connect to sql1")},
	}
	r, logs := newRunner(conn)

	reports, err := r.Run(context.Background(), []models.Target{target("sql1"), target("sql2")})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "sql2", reports[0].SqlServer)
	assert.Equal(t, 1, logs.Len())
}

func TestStrictModePropagatesConnectionErrors(t *testing.T) {
	conn := &fakeConnector{connectErr: map[string]error{"sql1": errors.New("failed to connect to sql1")}}
	r, _ := newRunner(conn)
	r.Strict = true

	_, err := r.Run(context.Background(), []models.Target{target("sql1")})
	assert.ErrorContains(t, err, "failed to connect to sql1")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0 days 0 hours 0 minutes 0 seconds"},
		{59 * time.Second, "0 days 0 hours 0 minutes 59 seconds"},
		{61 * time.Minute, "0 days 1 hours 1 minutes 0 seconds"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 days 2 hours 3 minutes 4 seconds"},
		{-time.Hour, "0 days 0 hours 0 minutes 0 seconds"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatUptime(tt.d))
	}
}
