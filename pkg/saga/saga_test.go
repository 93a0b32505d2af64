package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllStepsSucceed(t *testing.T) {
	var calls []string
	err := Run(context.Background(),
		Step{Name: "a", Do: func(context.Context) error { calls = append(calls, "a"); return nil }},
		Step{Name: "b", Do: func(context.Context) error { calls = append(calls, "b"); return nil }},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRun_CompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var undone []string

	err := Run(context.Background(),
		Step{
			Name:       "first",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "first"); return nil },
		},
		Step{
			Name:       "second",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "second"); return nil },
		},
		Step{
			Name:       "third",
			Do:         func(context.Context) error { return boom },
			Compensate: func(context.Context) error { undone = append(undone, "third"); return nil },
		},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, undone)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "third", stepErr.Step)

	_, failed := CompensationFailed(err)
	assert.False(t, failed)
}

func TestRun_ReportsFailedCompensation(t *testing.T) {
	insertErr := errors.New("insert failed")
	deleteErr := errors.New("delete failed")

	err := Run(context.Background(),
		Step{
			Name:       "upload",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return deleteErr },
		},
		Step{Name: "insert", Do: func(context.Context) error { return insertErr }},
	)

	assert.ErrorIs(t, err, insertErr)
	undo, failed := CompensationFailed(err)
	require.True(t, failed)
	assert.ErrorIs(t, undo["upload"], deleteErr)
}

func TestRun_CompensationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var undoCtxErr error

	err := Run(ctx,
		Step{
			Name: "upload",
			Do:   func(context.Context) error { return nil },
			Compensate: func(c context.Context) error {
				undoCtxErr = c.Err()
				return nil
			},
		},
		Step{Name: "insert", Do: func(context.Context) error { cancel(); return context.Canceled }},
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, undoCtxErr)
}
