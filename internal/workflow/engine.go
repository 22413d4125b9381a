package workflow

import (
	"context"
	"encoding/json"
	"fmt"
)

// StepLog persists committed step results keyed (runID, stepName) so a
// replayed run skips work that already happened.
type StepLog interface {
	CompletedStep(ctx context.Context, runID, stepName string) (json.RawMessage, bool, error)
	RecordStep(ctx context.Context, runID, stepName string, result json.RawMessage) error
}

// Run is one durable execution of a workflow. Steps run at most once
// per run id; a re-invoked run replays committed results from the log.
type Run struct {
	ID  string
	log StepLog
}

func NewRun(id string, log StepLog) *Run {
	return &Run{ID: id, log: log}
}

// StepError tags a failure with the step that was active, so the
// top-level handler can attribute it to the right job-error key.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step executes fn once for this run. A result committed by an earlier
// attempt is decoded and returned without re-executing, which is what
// makes each step idempotent under replay.
func Step[T any](ctx context.Context, r *Run, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	cached, ok, err := r.log.CompletedStep(ctx, r.ID, name)
	if err != nil {
		return zero, &StepError{Step: name, Err: fmt.Errorf("read step log: %w", err)}
	}
	if ok {
		var out T
		if err := json.Unmarshal(cached, &out); err != nil {
			return zero, &StepError{Step: name, Err: fmt.Errorf("decode committed result: %w", err)}
		}
		return out, nil
	}

	out, err := fn(ctx)
	if err != nil {
		return zero, &StepError{Step: name, Err: err}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return zero, &StepError{Step: name, Err: fmt.Errorf("encode result: %w", err)}
	}
	if err := r.log.RecordStep(ctx, r.ID, name, data); err != nil {
		return zero, &StepError{Step: name, Err: fmt.Errorf("commit result: %w", err)}
	}
	return out, nil
}

// Do runs a step that produces no result value.
func Do(ctx context.Context, r *Run, name string, fn func(context.Context) error) error {
	_, err := Step(ctx, r, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
