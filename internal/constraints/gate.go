package constraints

import "context"

// Gate decides whether jobs with a given constraint set may start now.
// The reason is a short human-readable explanation when not satisfied.
type Gate interface {
	Satisfied(ctx context.Context, set Set) (bool, string)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, set Set) (bool, string)

// Satisfied calls f.
func (f GateFunc) Satisfied(ctx context.Context, set Set) (bool, string) {
	return f(ctx, set)
}

// Always is a Gate that never holds jobs.
var Always Gate = GateFunc(func(context.Context, Set) (bool, string) { return true, "" })
