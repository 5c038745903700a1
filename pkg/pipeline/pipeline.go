// Package pipeline applies ordered batch transforms and terminal sinks to
// the records a completed run produced. It consumes the scheduler's output
// and is not part of the concurrent core.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Step transforms the full record batch and passes it on.
type Step func(records []any) []any

// FinalStep consumes the fully transformed batch, typically writing it to
// a sink. Final steps all receive the same batch.
type FinalStep func(records []any) error

// Pipeline is an ordered list of transform steps followed by terminal
// sinks.
type Pipeline struct {
	steps  []Step
	finals []FinalStep
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// AddStep appends a transform step. Returns the pipeline for chaining.
func (p *Pipeline) AddStep(step Step) *Pipeline {
	p.steps = append(p.steps, step)
	return p
}

// AddFinalStep appends terminal sink steps. Returns the pipeline for
// chaining.
func (p *Pipeline) AddFinalStep(finals ...FinalStep) *Pipeline {
	p.finals = append(p.finals, finals...)
	return p
}

// Run threads the records through each step in order, then hands the
// result to every final step concurrently. The transformed batch is
// returned alongside any sink error.
func (p *Pipeline) Run(ctx context.Context, records []any) ([]any, error) {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		records = step(records)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, final := range p.finals {
		final := final
		g.Go(func() error {
			return final(records)
		})
	}
	return records, g.Wait()
}
