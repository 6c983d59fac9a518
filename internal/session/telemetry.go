package session

import (
	"os"
	"runtime"
	"time"

	"github.com/parley-ai/parley/pkg/types"
)

// captureTelemetry snapshots ambient host details attached to each user
// turn. Individual lookups fail soft; the snapshot is advisory context.
func captureTelemetry() *types.Telemetry {
	t := &types.Telemetry{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		CapturedAt: time.Now().UnixMilli(),
	}
	if hostname, err := os.Hostname(); err == nil {
		t.Hostname = hostname
	}
	if wd, err := os.Getwd(); err == nil {
		t.WorkingDir = wd
	}
	return t
}
