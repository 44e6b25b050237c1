package pipeline

import "context"

// Step is one named unit of the pipeline
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

type funcStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Run(ctx context.Context) error { return s.fn(ctx) }

// NewStep adapts a function into a Step
func NewStep(name string, fn func(ctx context.Context) error) Step {
	return funcStep{name: name, fn: fn}
}
