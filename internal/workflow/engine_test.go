package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
)

func TestStep_CommitsAndReplays(t *testing.T) {
	st := store.NewMemoryStore()
	run := NewRun("run-1", st)

	calls := 0
	fn := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	out, err := Step(context.Background(), run, "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	out, err = Step(context.Background(), run, "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 1, calls)
}

func TestStep_DistinctRunsDoNotShareResults(t *testing.T) {
	st := store.NewMemoryStore()

	calls := 0
	fn := func(ctx context.Context) (string, error) {
		calls++
		return "x", nil
	}

	_, err := Step(context.Background(), NewRun("run-a", st), "compute", fn)
	require.NoError(t, err)
	_, err = Step(context.Background(), NewRun("run-b", st), "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStep_FailureIsNotCommitted(t *testing.T) {
	st := store.NewMemoryStore()
	run := NewRun("run-1", st)

	calls := 0
	boom := errors.New("boom")
	fn := func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 7, nil
	}

	_, err := Step(context.Background(), run, "flaky", fn)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "flaky", stepErr.Step)
	assert.ErrorIs(t, err, boom)

	out, err := Step(context.Background(), run, "flaky", fn)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, 2, calls)
}

func TestErrorKeyForStep(t *testing.T) {
	assert.Equal(t, models.JobTranscript, errorKeyForStep(stepTranscribe))
	assert.Equal(t, models.JobSummary, errorKeyForStep(stepGenerateSummary))
	assert.Equal(t, models.JobKeyMoments, errorKeyForStep(stepGenerateKeyMoments))
	assert.Equal(t, models.JobGeneral, errorKeyForStep(stepSetStatusCompleted))
	assert.Equal(t, models.JobGeneral, errorKeyForStep("no-such-step"))
}
