// Package work runs long-lived datastore operations (reads, writes, exports)
// one goroutine at a time, cancellable the way spec.md §5 describes the
// shell cancelling a running command: a context cancellation, not a thread
// kill. It is the Go-native stand-in for the original's dedicated
// thread-per-operation queue (lledit_threads.py).
package work

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
)

// ProgressFunc reports incremental progress on a long read or write: bytesDone
// and bytesTotal describe overall completion (bytesTotal is -1 when unknown,
// e.g. reading an open-ended range), and chunk is the slice of bytes just
// produced or consumed. Returning a non-nil error aborts the operation; the
// original cancelled by raising an exception from the progress callback, so
// a ProgressFunc that wants to cancel returns (or wraps) lledit.CancelledError.
type ProgressFunc func(bytesDone, bytesTotal int64, chunk []byte) error

// noopProgress is used wherever a caller has no ProgressFunc of their own.
func noopProgress(int64, int64, []byte) error { return nil }

// Job runs a single named long operation under its own goroutine, wired to
// lledit.InterruptibleContext so a SIGINT/SIGTERM during a run cancels it in
// place of the original's per-operation thread being killed.
type Job struct {
	Name string

	eg  *errgroup.Group
	ctx context.Context
}

// NewJob derives a job from parent, itself usually the context returned by
// lledit.InterruptibleContext. A Job runs exactly one operation; start
// another Job for the next one.
func NewJob(parent context.Context, name string) *Job {
	eg, ctx := errgroup.WithContext(parent)
	return &Job{Name: name, eg: eg, ctx: ctx}
}

// Run starts fn on its own goroutine and returns immediately. Calling Run
// more than once on the same Job is a bug: errgroup.Group only reports the
// first error, which would silently swallow a second operation's failure.
func (j *Job) Run(fn func(ctx context.Context) error) {
	j.eg.Go(func() error {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		return fn(j.ctx)
	})
}

// Wait blocks until the job's goroutine returns, propagating a context
// cancellation (SIGINT/SIGTERM, or a ProgressFunc-initiated cancel) as
// lledit.CancelledError so callers can dispatch on it with errors.As.
func (j *Job) Wait() error {
	err := j.eg.Wait()
	if err == nil {
		return nil
	}
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		return &lledit.CancelledError{}
	}
	return err
}

// Context returns the job's context, cancelled once Wait's underlying
// errgroup sees any goroutine return an error, or once parent is cancelled.
func (j *Job) Context() context.Context { return j.ctx }
