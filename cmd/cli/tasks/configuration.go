package tasks

import (
	"strings"
	"time"

	rootutils "github.com/tyemirov/taskgraph/internal/utils/roots"
)

const (
	defaultConcurrencyConstant     = 1
	defaultMaxExportLengthConstant = 80
)

// CommandConfiguration captures configuration values shared by the task commands.
type CommandConfiguration struct {
	ModuleDirectories   []string
	RegisterBuiltins    bool
	Concurrency         int
	CacheMaxEntries     int
	MaxExportLength     int
	TranscriptDirectory string
	Timeout             time.Duration
}

// DefaultCommandConfiguration provides default task command settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RegisterBuiltins: true,
		Concurrency:      defaultConcurrencyConstant,
		MaxExportLength:  defaultMaxExportLengthConstant,
	}
}

// Sanitize normalizes configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.ModuleDirectories = rootutils.Sanitize(configuration.ModuleDirectories)
	sanitized.TranscriptDirectory = strings.TrimSpace(configuration.TranscriptDirectory)
	if sanitized.Concurrency < defaultConcurrencyConstant {
		sanitized.Concurrency = defaultConcurrencyConstant
	}
	if sanitized.MaxExportLength <= 0 {
		sanitized.MaxExportLength = defaultMaxExportLengthConstant
	}
	if sanitized.CacheMaxEntries < 0 {
		sanitized.CacheMaxEntries = 0
	}
	if sanitized.Timeout < 0 {
		sanitized.Timeout = 0
	}
	return sanitized
}
