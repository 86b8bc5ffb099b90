// Package version exposes build-time version information.
// The variables are meant to be set via -ldflags at build time.
package version

import (
	"strconv"
	"time"
)

const DevelopmentVersion = "dev"

var (
	ProductVersion = DevelopmentVersion
	CommitHash     = ""
	BuildTimestamp = ""
)

type VersionOutput struct {
	Version    string `json:"version"`
	CommitHash string `json:"commitHash,omitempty"`
	BuildTime  string `json:"buildTimestamp,omitempty"`
}

func Version() VersionOutput {
	var buildTime string
	if BuildTimestamp != "" {
		// The timestamp is injected either as Unix seconds or as RFC 3339.
		if unixSeconds, err := strconv.ParseInt(BuildTimestamp, 10, 64); err == nil {
			buildTime = time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
		} else if parsed, timeErr := time.Parse(time.RFC3339, BuildTimestamp); timeErr == nil {
			buildTime = parsed.UTC().Format(time.RFC3339)
		}
	}

	productVersion := ProductVersion
	if productVersion == "" {
		productVersion = DevelopmentVersion
	}

	return VersionOutput{
		Version:    productVersion,
		CommitHash: CommitHash,
		BuildTime:  buildTime,
	}
}
