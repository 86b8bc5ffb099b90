package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionDefaultsToDev(t *testing.T) {
	output := Version()
	require.Equal(t, DevelopmentVersion, output.Version)
	require.Empty(t, output.CommitHash)
	require.Empty(t, output.BuildTime)
}

func TestVersionParsesUnixBuildTimestamp(t *testing.T) {
	BuildTimestamp = "1700000000"
	defer func() { BuildTimestamp = "" }()

	output := Version()
	require.Equal(t, "2023-11-14T22:13:20Z", output.BuildTime)
}

func TestVersionParsesRFC3339BuildTimestamp(t *testing.T) {
	BuildTimestamp = "2024-05-01T12:00:00Z"
	defer func() { BuildTimestamp = "" }()

	output := Version()
	require.Equal(t, "2024-05-01T12:00:00Z", output.BuildTime)
}
