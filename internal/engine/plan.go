package engine

import (
	"fmt"
	"strings"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

// BindingKind distinguishes literal values from nested invocations.
type BindingKind int

const (
	// BindingLiteral carries a value supplied by the caller.
	BindingLiteral BindingKind = iota
	// BindingPending refers to another invocation in the same plan.
	BindingPending
)

// Binding is the value bound to one task input.
type Binding struct {
	Kind    BindingKind
	Literal any
	Node    int
}

// Literal binds a caller supplied value.
func Literal(value any) Binding {
	return Binding{Kind: BindingLiteral, Literal: value}
}

// Pending binds the result of the invocation stored at node.
func Pending(node int) Binding {
	return Binding{Kind: BindingPending, Node: node}
}

// Invocation pairs a task with the bindings of its inputs.
type Invocation struct {
	Task     *taskgraph.Task
	Bindings map[string]Binding
}

// Plan is an arena of invocations. Pending bindings refer to other nodes by index.
type Plan struct {
	Nodes []Invocation
	Root  int
}

// Target returns the name of the task at the root of the plan.
func (plan Plan) Target() string {
	if plan.Root < 0 || plan.Root >= len(plan.Nodes) {
		return ""
	}
	return plan.Nodes[plan.Root].Task.Name()
}

// Children returns the node indices bound to the inputs of node, in canonical input order.
func (plan Plan) Children(node int) []int {
	invocation := plan.Nodes[node]
	children := make([]int, 0, len(invocation.Bindings))
	for _, inputName := range invocation.Task.Inputs() {
		binding, bound := invocation.Bindings[inputName]
		if !bound || binding.Kind != BindingPending {
			continue
		}
		children = append(children, binding.Node)
	}
	return children
}

// Describe renders the plan as an indented tree.
func (plan Plan) Describe() string {
	if len(plan.Nodes) == 0 {
		return ""
	}
	var builder strings.Builder
	plan.describeNode(&builder, plan.Root, 0)
	return builder.String()
}

func (plan Plan) describeNode(builder *strings.Builder, node int, depth int) {
	invocation := plan.Nodes[node]
	indentation := strings.Repeat("  ", depth)
	fmt.Fprintf(builder, "%s%s\n", indentation, invocation.Task.Name())
	for _, inputName := range invocation.Task.Inputs() {
		binding, bound := invocation.Bindings[inputName]
		if !bound {
			continue
		}
		if binding.Kind == BindingLiteral {
			fmt.Fprintf(builder, "%s  %s=%s\n", indentation, inputName, taskgraph.FormatValue(binding.Literal))
			continue
		}
		fmt.Fprintf(builder, "%s  %s <-\n", indentation, inputName)
		plan.describeNode(builder, binding.Node, depth+2)
	}
}
