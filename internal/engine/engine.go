package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/taskgraph/internal/metrics"
	"github.com/tyemirov/taskgraph/internal/results"
	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	invocationStateResolvingChildrenConstant = "resolving-children"
	invocationStateCacheCheckConstant        = "cache-check"
	invocationStateExecutingConstant         = "executing"
	invocationStateDoneConstant              = "done"
	invocationStateFailedConstant            = "failed"
	invocationStateSkippedConstant           = "skipped"

	invocationStateMessageConstant         = "invocation state changed"
	invocationStateHumanTemplateConstant   = "%s: %s"
	invocationCachedHumanTemplateConstant  = "%s: done (cached)"
	invocationFailedHumanTemplateConstant  = "%s: failed: %v"
	invocationSkippedHumanTemplateConstant = "%s: skipped, missing %s"
	taskFieldNameConstant                  = "task"
	nodeFieldNameConstant                  = "node"
	stateFieldNameConstant                 = "state"
	cachedFieldNameConstant                = "cached"
	durationFieldNameConstant              = "duration"
	missingInputsFieldNameConstant         = "missing_inputs"
	defaultConcurrencyConstant             = 1
)

// Options configures an Engine.
type Options struct {
	Logger               *zap.Logger
	Metrics              *metrics.Metrics
	Concurrency          int
	HumanReadableLogging bool
}

// Engine runs plans depth first and memoizes every invocation in the cache.
type Engine struct {
	cache                *results.Cache
	logger               *zap.Logger
	metrics              *metrics.Metrics
	concurrency          int
	humanReadableLogging bool
}

// NewEngine builds an engine storing results in cache.
func NewEngine(cache *results.Cache, options Options) (*Engine, error) {
	if cache == nil {
		return nil, ErrCacheNotConfigured
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := options.Concurrency
	if concurrency < defaultConcurrencyConstant {
		concurrency = defaultConcurrencyConstant
	}
	return &Engine{
		cache:                cache,
		logger:               logger,
		metrics:              options.Metrics,
		concurrency:          concurrency,
		humanReadableLogging: options.HumanReadableLogging,
	}, nil
}

// Run executes the plan and returns the outcome of its root invocation. Children run before their
// parent; a failing child fails the parent. Each distinct task and value combination invokes its
// task at most once for the lifetime of the cache.
func (engine *Engine) Run(ctx context.Context, plan Plan) (taskgraph.Outcome, error) {
	if len(plan.Nodes) == 0 || plan.Root < 0 || plan.Root >= len(plan.Nodes) {
		return taskgraph.Outcome{}, nil
	}
	return engine.runNode(ctx, plan, plan.Root)
}

func (engine *Engine) runNode(ctx context.Context, plan Plan, node int) (taskgraph.Outcome, error) {
	invocation := plan.Nodes[node]
	task := invocation.Task

	engine.logState(task.Name(), node, invocationStateResolvingChildrenConstant)
	values, childError := engine.runChildren(ctx, plan, node)
	if childError != nil {
		engine.logFailure(task.Name(), node, childError)
		engine.metrics.ObserveInvocation(task.Name(), metrics.OutcomeFailed, 0)
		return taskgraph.Outcome{}, childError
	}

	if contextError := ctx.Err(); contextError != nil {
		engine.logFailure(task.Name(), node, contextError)
		return taskgraph.Outcome{}, contextError
	}

	if _, missingInputs := task.Bind(values); len(missingInputs) > 0 {
		skipError := taskgraph.MissingInputError{TaskName: task.Name(), InputName: missingInputs[0]}
		engine.logSkipped(task.Name(), node, missingInputs)
		engine.metrics.ObserveInvocation(task.Name(), metrics.OutcomeSkipped, 0)
		return taskgraph.Outcome{Skipped: true, MissingInputs: missingInputs}, skipError
	}

	engine.logState(task.Name(), node, invocationStateCacheCheckConstant)
	startTime := time.Now()
	entry, cached, runError := engine.cache.Do(task, values, func() (any, error) {
		engine.logState(task.Name(), node, invocationStateExecutingConstant)
		outcome, taskError := task.Run(ctx, values)
		return outcome.Value, taskError
	})
	duration := time.Since(startTime)

	if runError != nil {
		engine.logFailure(task.Name(), node, runError)
		engine.metrics.ObserveInvocation(task.Name(), metrics.OutcomeFailed, duration)
		return taskgraph.Outcome{}, runError
	}

	engine.metrics.ObserveCacheLookup(cached)
	if cached {
		engine.metrics.ObserveInvocation(task.Name(), metrics.OutcomeCached, duration)
	} else {
		engine.metrics.ObserveInvocation(task.Name(), metrics.OutcomeExecuted, duration)
	}
	engine.logDone(task.Name(), node, cached, duration)
	return taskgraph.Outcome{Value: entry.Result, Cached: cached}, nil
}

// runChildren runs every pending binding of node and returns the values to bind.
func (engine *Engine) runChildren(ctx context.Context, plan Plan, node int) (map[string]any, error) {
	invocation := plan.Nodes[node]
	values := make(map[string]any, len(invocation.Bindings))
	pendingInputs := make([]string, 0, len(invocation.Bindings))
	for _, inputName := range invocation.Task.Inputs() {
		binding, bound := invocation.Bindings[inputName]
		if !bound {
			continue
		}
		if binding.Kind == BindingLiteral {
			values[inputName] = binding.Literal
			continue
		}
		pendingInputs = append(pendingInputs, inputName)
	}

	if engine.concurrency <= defaultConcurrencyConstant || len(pendingInputs) < 2 {
		for _, inputName := range pendingInputs {
			childValue, childError := engine.runChild(ctx, plan, node, inputName)
			if childError != nil {
				return nil, childError
			}
			values[inputName] = childValue
		}
		return values, nil
	}

	childValues := make([]any, len(pendingInputs))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(engine.concurrency)
	for pendingIndex := range pendingInputs {
		inputName := pendingInputs[pendingIndex]
		group.Go(func() error {
			childValue, childError := engine.runChild(groupContext, plan, node, inputName)
			if childError != nil {
				return childError
			}
			childValues[pendingIndex] = childValue
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	for pendingIndex, inputName := range pendingInputs {
		values[inputName] = childValues[pendingIndex]
	}
	return values, nil
}

func (engine *Engine) runChild(ctx context.Context, plan Plan, parent int, inputName string) (any, error) {
	child := plan.Nodes[parent].Bindings[inputName].Node
	outcome, childError := engine.runNode(ctx, plan, child)
	if childError != nil {
		return nil, childError
	}
	return outcome.Value, nil
}

func (engine *Engine) logState(taskName string, node int, state string) {
	if !engine.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	if engine.humanReadableLogging {
		engine.logger.Debug(fmt.Sprintf(invocationStateHumanTemplateConstant, taskName, state))
		return
	}
	engine.logger.Debug(invocationStateMessageConstant,
		zap.String(taskFieldNameConstant, taskName),
		zap.Int(nodeFieldNameConstant, node),
		zap.String(stateFieldNameConstant, state),
	)
}

func (engine *Engine) logDone(taskName string, node int, cached bool, duration time.Duration) {
	if !engine.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	if engine.humanReadableLogging {
		if cached {
			engine.logger.Debug(fmt.Sprintf(invocationCachedHumanTemplateConstant, taskName))
			return
		}
		engine.logger.Debug(fmt.Sprintf(invocationStateHumanTemplateConstant, taskName, invocationStateDoneConstant))
		return
	}
	engine.logger.Debug(invocationStateMessageConstant,
		zap.String(taskFieldNameConstant, taskName),
		zap.Int(nodeFieldNameConstant, node),
		zap.String(stateFieldNameConstant, invocationStateDoneConstant),
		zap.Bool(cachedFieldNameConstant, cached),
		zap.Duration(durationFieldNameConstant, duration),
	)
}

func (engine *Engine) logFailure(taskName string, node int, failure error) {
	if !engine.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	if engine.humanReadableLogging {
		engine.logger.Debug(fmt.Sprintf(invocationFailedHumanTemplateConstant, taskName, failure))
		return
	}
	engine.logger.Debug(invocationStateMessageConstant,
		zap.String(taskFieldNameConstant, taskName),
		zap.Int(nodeFieldNameConstant, node),
		zap.String(stateFieldNameConstant, invocationStateFailedConstant),
		zap.Error(failure),
	)
}

func (engine *Engine) logSkipped(taskName string, node int, missingInputs []string) {
	if !engine.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	if engine.humanReadableLogging {
		engine.logger.Debug(fmt.Sprintf(invocationSkippedHumanTemplateConstant, taskName, strings.Join(missingInputs, ", ")))
		return
	}
	engine.logger.Debug(invocationStateMessageConstant,
		zap.String(taskFieldNameConstant, taskName),
		zap.Int(nodeFieldNameConstant, node),
		zap.String(stateFieldNameConstant, invocationStateSkippedConstant),
		zap.Strings(missingInputsFieldNameConstant, missingInputs),
	)
}
