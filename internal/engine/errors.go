package engine

import (
	"errors"
	"fmt"
	"strings"
)

const (
	registryNotConfiguredMessageConstant = "engine registry not configured"
	cacheNotConfiguredMessageConstant    = "engine cache not configured"
	cycleDetectedMessageConstant         = "task dependency cycle detected"
	cyclePathSeparatorConstant           = " -> "
	stagePlanningErrorTemplateConstant   = "plan for %q could not be layered: %d of %d invocations depend on each other"
)

var (
	// ErrRegistryNotConfigured indicates the resolver was built without a registry.
	ErrRegistryNotConfigured = errors.New(registryNotConfiguredMessageConstant)
	// ErrCacheNotConfigured indicates the engine was built without a cache.
	ErrCacheNotConfigured = errors.New(cacheNotConfiguredMessageConstant)
	// ErrCycleDetected is matched by every CycleDetectedError.
	ErrCycleDetected = errors.New(cycleDetectedMessageConstant)
)

// CycleDetectedError reports a task that requires itself through its inputs.
type CycleDetectedError struct {
	Path []string
}

// Error renders the cycle as a path.
func (cycleError CycleDetectedError) Error() string {
	if len(cycleError.Path) == 0 {
		return cycleDetectedMessageConstant
	}
	return fmt.Sprintf("%s: %s", cycleDetectedMessageConstant, strings.Join(cycleError.Path, cyclePathSeparatorConstant))
}

// Unwrap allows errors.Is(err, ErrCycleDetected).
func (cycleError CycleDetectedError) Unwrap() error {
	return ErrCycleDetected
}
