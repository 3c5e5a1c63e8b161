// Package roots resolves the directories task definitions are loaded from.
package roots

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
)

const homeDirectoryPrefix = "~"

// Resolve returns the directories given with the module directory flag, or the configured ones when
// the flag was not used. An empty result is valid: only builtin tasks are available then.
func Resolve(command *cobra.Command, configured []string) ([]string, error) {
	flagDirectories, flagChanged, flagError := FlagValues(command)
	if flagError != nil {
		return nil, flagError
	}
	if flagChanged {
		return flagDirectories, nil
	}
	return Sanitize(configured), nil
}

// FlagValues returns sanitized directories from the command flag set and whether the flag was used.
func FlagValues(command *cobra.Command) ([]string, bool, error) {
	if command == nil {
		return nil, false, nil
	}
	values, changed, err := flagutils.StringSliceFlag(command, flagutils.ModuleDirectoryFlagName)
	if err != nil {
		if errors.Is(err, flagutils.ErrFlagNotDefined) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return Sanitize(values), changed, nil
}

// Sanitize trims entries, expands a leading ~ to the home directory, cleans the paths and drops
// blanks and duplicates while keeping the first occurrence order.
func Sanitize(directories []string) []string {
	sanitized := make([]string, 0, len(directories))
	seen := make(map[string]struct{}, len(directories))
	for _, directory := range directories {
		trimmed := strings.TrimSpace(directory)
		if len(trimmed) == 0 {
			continue
		}
		expanded := expandHomeDirectory(trimmed)
		cleaned := filepath.Clean(expanded)
		if _, duplicate := seen[cleaned]; duplicate {
			continue
		}
		seen[cleaned] = struct{}{}
		sanitized = append(sanitized, cleaned)
	}
	return sanitized
}

func expandHomeDirectory(directory string) string {
	if directory != homeDirectoryPrefix && !strings.HasPrefix(directory, homeDirectoryPrefix+string(filepath.Separator)) {
		return directory
	}
	homeDirectory, homeDirectoryError := os.UserHomeDir()
	if homeDirectoryError != nil || len(homeDirectory) == 0 {
		return directory
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(directory, homeDirectoryPrefix))
}
