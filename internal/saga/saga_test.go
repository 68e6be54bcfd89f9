package saga

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var order []string
	step := func(name string) Step {
		return Step{
			Name: name,
			Run: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			},
		}
	}
	s := New(slog.Default(), step("debit"), step("credit"), step("notify"))
	require.NoError(t, s.Execute(context.Background()))
	require.Equal(t, []string{"debit", "credit", "notify"}, order)
}

func TestExecuteCompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	boom := errors.New("charge declined")

	ok := func(name string) Step {
		return Step{
			Name: name,
			Run:  func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = append(compensated, name)
				return nil
			},
		}
	}
	s := New(slog.Default(),
		ok("reserve-stock"),
		ok("post-entry"),
		Step{Name: "charge-card", Run: func(ctx context.Context) error { return boom }},
	)

	err := s.Execute(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"post-entry", "reserve-stock"}, compensated)
}

func TestExecuteJoinsCompensationFailures(t *testing.T) {
	boom := errors.New("step failed")
	compBoom := errors.New("compensation failed")
	var secondCompensated bool

	s := New(slog.Default(),
		Step{
			Name:       "first",
			Run:        func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { secondCompensated = true; return nil },
		},
		Step{
			Name:       "second",
			Run:        func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return compBoom },
		},
		Step{Name: "third", Run: func(ctx context.Context) error { return boom }},
	)

	err := s.Execute(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, compBoom)
	// A failing compensation does not stop earlier steps from unwinding.
	require.True(t, secondCompensated)
}

func TestExecuteSkipsNilCompensations(t *testing.T) {
	boom := errors.New("fail")
	s := New(nil,
		Step{Name: "read-only", Run: func(ctx context.Context) error { return nil }},
		Step{Name: "fails", Run: func(ctx context.Context) error { return boom }},
	)
	require.ErrorIs(t, s.Execute(context.Background()), boom)
}

func TestExecuteRejectsStepWithoutRun(t *testing.T) {
	s := New(nil, Step{Name: "empty"})
	require.Error(t, s.Execute(context.Background()))
}
