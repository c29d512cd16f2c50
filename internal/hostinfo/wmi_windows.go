//go:build windows

package hostinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufpapurcu/wmi"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Win32_OperatingSystem carries the last boot timestamp; the struct name
// must match the CIM class for query generation.
type Win32_OperatingSystem struct {
	LastBootUpTime time.Time
}

// remoteBootTime opens an explicit SWbemServices session over DCOM and reads
// the operating-system object on the target host. The session is released on
// every exit path.
func remoteBootTime(_ context.Context, hostname string, cred models.Credential) (time.Time, error) {
	svc, err := wmi.InitializeSWbemServices(wmi.DefaultClient)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to initialize WMI services: %w", err)
	}
	defer svc.Close()

	var dst []Win32_OperatingSystem
	query := wmi.CreateQuery(&dst, "")

	args := []interface{}{hostname, `root\cimv2`}
	if cred.User != "" {
		args = append(args, cred.User, cred.Password)
	}
	if err := svc.Query(query, &dst, args...); err != nil {
		return time.Time{}, fmt.Errorf("DCOM query against %s failed: %w", hostname, err)
	}
	if len(dst) == 0 {
		return time.Time{}, fmt.Errorf("no operating-system object returned from %s", hostname)
	}
	return dst[0].LastBootUpTime.UTC(), nil
}
