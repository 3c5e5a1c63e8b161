// Package version reports the release identifier embedded in the taskgraph binary.
package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionValue     = "(devel)"
	revisionSettingKeyConstant     = "vcs.revision"
	modifiedSettingKeyConstant     = "vcs.modified"
	modifiedSuffixConstant         = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector. A nil provider reads the running binary's build info.
func NewDetector(provider BuildInfoProvider) *Detector {
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect returns the module version, then the VCS revision, then "unknown".
func (detector *Detector) Detect() string {
	info, available := detector.buildInfoProvider.Read()
	if !available || info == nil {
		return unknownVersionFallbackConstant
	}

	moduleVersion := strings.TrimSpace(info.Main.Version)
	if len(moduleVersion) > 0 && moduleVersion != buildInfoDevelVersionValue {
		return moduleVersion
	}

	revision := ""
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case revisionSettingKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case modifiedSettingKeyConstant:
			modified = setting.Value == "true"
		}
	}
	if len(revision) == 0 {
		return unknownVersionFallbackConstant
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	if modified {
		revision += modifiedSuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
