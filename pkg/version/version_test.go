package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	// Given: a binary built with or without ldflags
	if Version == "dev" {
		return
	}

	// Then: the injected version is semver, optionally v-prefixed
	semver := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_ContainsBuildInfo(t *testing.T) {
	// When: formatting the version line
	s := String()

	// Then: program name, version and platform are present
	assert.Contains(t, s, "tfrag")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, "commit: "+Commit)
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestShort_ReturnsVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_JSONFieldNames(t *testing.T) {
	// Given: the build info
	info := GetInfo()
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)

	// When: encoding it
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: fields use snake_case keys
	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, Version, m["version"])
	assert.Equal(t, GoVersion, m["go_version"])
	assert.Contains(t, m, "commit")
	assert.Contains(t, m, "date")
}
