package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlops-dev/sqlops/internal/mssql"
	"github.com/sqlops-dev/sqlops/internal/uptime"
	"github.com/sqlops-dev/sqlops/pkg/models"
)

type stubUptimeSession struct {
	name         string
	tempdbCreate time.Time
	msTicks      int64
}

func (s stubUptimeSession) Name() string { return s.name }

func (s stubUptimeSession) ComputerName(context.Context) (string, error) { return "HOST1", nil }

func (s stubUptimeSession) InstanceName(context.Context) (string, error) {
	return "MSSQLSERVER", nil
}

func (s stubUptimeSession) TempdbCreateDate(context.Context) (time.Time, error) {
	return s.tempdbCreate, nil
}

func (s stubUptimeSession) ServerMsTicks(context.Context) (int64, error) { return s.msTicks, nil }

func (s stubUptimeSession) HostFQDN(context.Context) (string, error) { return "host1", nil }

func (s stubUptimeSession) Close() error { return nil }

type stubUptimeConnector struct{ sess stubUptimeSession }

func (c stubUptimeConnector) Connect(context.Context, models.Target) (uptime.Session, error) {
	return c.sess, nil
}

func TestRunUptimeJSONOutput(t *testing.T) {
	oldConnector := uptimeConnectorFor
	defer func() { uptimeConnectorFor = oldConnector }()
	uptimeConnectorFor = func(mssql.Options) uptime.Connector {
		return stubUptimeConnector{sess: stubUptimeSession{
			name:         "sql1",
			tempdbCreate: time.Now().UTC().Add(-time.Hour),
			msTicks:      (24 * time.Hour).Milliseconds(),
		}}
	}

	oldInstances, oldOutput := uptimeInstances, uptimeOutput
	defer func() { uptimeInstances, uptimeOutput = oldInstances, oldOutput }()
	uptimeInstances = []string{"sql1"}
	uptimeOutput = "json"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	require.NoError(t, runUptime(cmd, nil))

	var reports []models.UptimeReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "sql1", reports[0].SqlServer)
	assert.NotNil(t, reports[0].WindowsBootTime)
	assert.Contains(t, reports[0].SqlUptimeString, "hours")
}

func TestRunUptimeRequiresAnInstance(t *testing.T) {
	oldInstances := uptimeInstances
	defer func() { uptimeInstances = oldInstances }()
	uptimeInstances = nil

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	assert.Error(t, runUptime(cmd, nil))
}
