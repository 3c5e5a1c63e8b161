package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceConstant = "taskgraph"

	// OutcomeExecuted labels invocations that ran their invokable.
	OutcomeExecuted = "executed"
	// OutcomeCached labels invocations answered from the result cache.
	OutcomeCached = "cached"
	// OutcomeSkipped labels invocations skipped for missing inputs.
	OutcomeSkipped = "skipped"
	// OutcomeFailed labels invocations that failed.
	OutcomeFailed = "failed"

	// LookupHit labels cache lookups that found an entry.
	LookupHit = "hit"
	// LookupMiss labels cache lookups that did not find an entry.
	LookupMiss = "miss"

	// CommandSucceeded labels shell lines that exited with zero.
	CommandSucceeded = "success"
	// CommandFailed labels shell lines that exited non-zero or could not run.
	CommandFailed = "failure"
)

// Metrics groups the Prometheus collectors reported by the engine and the process runner.
// A nil *Metrics records nothing.
type Metrics struct {
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	commands           *prometheus.CounterVec
}

// New registers the collectors on registerer. Collectors already registered with the same
// descriptor are reused so several engines may share one registry.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	invocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceConstant,
			Name:      "invocations_total",
			Help:      "Task invocations by outcome.",
		},
		[]string{"task", "outcome"},
	)
	invocationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceConstant,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of executed task invocations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceConstant,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		},
		[]string{"result"},
	)
	commands := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceConstant,
			Name:      "commands_total",
			Help:      "Shell command lines run by status.",
		},
		[]string{"status"},
	)

	var registrationError error
	invocations, registrationError = registerCounterVec(registerer, invocations)
	if registrationError != nil {
		return nil, registrationError
	}
	cacheLookups, registrationError = registerCounterVec(registerer, cacheLookups)
	if registrationError != nil {
		return nil, registrationError
	}
	commands, registrationError = registerCounterVec(registerer, commands)
	if registrationError != nil {
		return nil, registrationError
	}
	if registerError := registerer.Register(invocationDuration); registerError != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(registerError, &alreadyRegistered) {
			return nil, registerError
		}
		existing, matches := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
		if !matches {
			return nil, registerError
		}
		invocationDuration = existing
	}

	return &Metrics{
		invocations:        invocations,
		invocationDuration: invocationDuration,
		cacheLookups:       cacheLookups,
		commands:           commands,
	}, nil
}

func registerCounterVec(registerer prometheus.Registerer, collector *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	registerError := registerer.Register(collector)
	if registerError == nil {
		return collector, nil
	}
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if !errors.As(registerError, &alreadyRegistered) {
		return nil, registerError
	}
	existing, matches := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
	if !matches {
		return nil, registerError
	}
	return existing, nil
}

// ObserveInvocation counts an invocation outcome and, for executed invocations, its duration.
func (metrics *Metrics) ObserveInvocation(taskName string, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.invocations.WithLabelValues(taskName, outcome).Inc()
	if outcome == OutcomeExecuted {
		metrics.invocationDuration.WithLabelValues(taskName).Observe(duration.Seconds())
	}
}

// ObserveCacheLookup counts a cache hit or miss.
func (metrics *Metrics) ObserveCacheLookup(hit bool) {
	if metrics == nil {
		return
	}
	result := LookupMiss
	if hit {
		result = LookupHit
	}
	metrics.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCommand counts a shell line by exit status.
func (metrics *Metrics) ObserveCommand(succeeded bool) {
	if metrics == nil {
		return
	}
	status := CommandFailed
	if succeeded {
		status = CommandSucceeded
	}
	metrics.commands.WithLabelValues(status).Inc()
}
