// Package hostinfo reads host-level facts, currently the last boot time.
// The local machine is read directly; remote hosts are queried over the
// Windows remote-administration transport (DCOM), which is only available
// when sqlctl itself runs on Windows.
package hostinfo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// BootTime returns the last boot time of a host in UTC.
func BootTime(ctx context.Context, hostname string, cred models.Credential) (time.Time, error) {
	if isLocal(hostname) {
		secs, err := host.BootTimeWithContext(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to read local boot time: %w", err)
		}
		return time.Unix(int64(secs), 0).UTC(), nil
	}
	return remoteBootTime(ctx, hostname, cred)
}

func isLocal(hostname string) bool {
	switch strings.ToLower(hostname) {
	case "localhost", "127.0.0.1", "::1", ".":
		return true
	}
	me, err := os.Hostname()
	if err != nil {
		return false
	}
	return strings.EqualFold(shortName(hostname), shortName(me))
}

// shortName strips any domain suffix so FQDN and NetBIOS forms compare equal.
func shortName(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		return hostname[:i]
	}
	return hostname
}
