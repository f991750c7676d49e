package work_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/work"
)

func TestJobWaitPropagatesSuccess(t *testing.T) {
	job := work.NewJob(context.Background(), "noop")
	job.Run(func(ctx context.Context) error { return nil })
	if err := job.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestJobWaitPropagatesOrdinaryError(t *testing.T) {
	job := work.NewJob(context.Background(), "fails")
	wantErr := errors.New("boom")
	job.Run(func(ctx context.Context) error { return wantErr })
	if err := job.Wait(); err != wantErr {
		t.Errorf("Wait() = %v, want %v", err, wantErr)
	}
}

func TestJobWaitTranslatesCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	job := work.NewJob(parent, "cancelled")
	started := make(chan struct{})
	job.Run(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	var cancelled *lledit.CancelledError
	if err := job.Wait(); !errors.As(err, &cancelled) {
		t.Errorf("Wait() = %v, want a *lledit.CancelledError", err)
	}
}
