package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	i := Get()
	assert.Equal(t, i.Version, Short())
	assert.Equal(t, runtime.Version(), i.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, i.Platform)

	info := Info()
	assert.Contains(t, info, "nostack "+i.Version)
	assert.Contains(t, info, i.Commit)
	assert.Contains(t, info, runtime.Version())
}

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2025-06-01T12:00:00Z"},
		},
	}

	info := BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
	fillFromBuildInfo(&info, bi)
	assert.Equal(t, "v0.3.1", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "2025-06-01T12:00:00Z", info.BuildTime)

	// Values injected with -ldflags win.
	info = BuildInfo{Version: "v1.0.0", Commit: "def456", BuildTime: "yesterday"}
	fillFromBuildInfo(&info, bi)
	assert.Equal(t, "v1.0.0", info.Version)
	assert.Equal(t, "def456", info.Commit)
	assert.Equal(t, "yesterday", info.BuildTime)

	info = BuildInfo{Version: "dev"}
	fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", info.Version)
}
