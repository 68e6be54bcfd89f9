// Package saga coordinates multi-step business operations where later
// steps can fail after earlier ones have already committed. Each step
// carries a compensation that undoes its effect; on failure the completed
// steps are compensated in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Step is one unit of work. Compensate may be nil for steps with no
// durable effect.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga executes steps in order and unwinds on failure.
type Saga struct {
	logger *slog.Logger
	steps  []Step
}

func New(logger *slog.Logger, steps ...Step) *Saga {
	return &Saga{logger: logger, steps: steps}
}

// AddStep appends a step; useful when the step list depends on runtime
// state.
func (s *Saga) AddStep(step Step) {
	s.steps = append(s.steps, step)
}

// Execute runs every step. On the first failure it compensates all
// previously completed steps in reverse order and returns the step error,
// joined with any compensation errors. Compensation failures do not stop
// the unwind; every completed step gets its chance to roll back.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if step.Run == nil {
			return fmt.Errorf("saga: step %q has no run function", step.Name)
		}
		err := step.Run(ctx)
		if err == nil {
			continue
		}
		stepErr := fmt.Errorf("saga: step %q: %w", step.Name, err)
		return errors.Join(stepErr, s.unwind(ctx, i))
	}
	return nil
}

func (s *Saga) unwind(ctx context.Context, failedAt int) error {
	var errs []error
	for i := failedAt - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			if s.logger != nil {
				s.logger.Error("saga compensation failed",
					slog.String("step", step.Name),
					slog.Any("error", err))
			}
			errs = append(errs, fmt.Errorf("saga: compensate %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
