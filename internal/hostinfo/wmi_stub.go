//go:build !windows

package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

func remoteBootTime(_ context.Context, hostname string, _ models.Credential) (time.Time, error) {
	return time.Time{}, fmt.Errorf("remote boot time query for %s requires a Windows client: %w",
		hostname, errors.ErrUnsupported)
}
