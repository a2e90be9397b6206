package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

/*
 * This package provides utilities for running and waiting on background tasks.
 * A Job wraps a context and a done channel so that scheduled ingestion runs can
 * be canceled and shut down gracefully.
 */

// A Job is used to handle and track the completion of an asynchronous or
// background task.
type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Sends a cancel signal to the Job, indicating that it should finish its work
// and shut down. Internally, this cancels the Job's context.
func (j *Job) Cancel() {
	j.cancel()
}

// Returns a channel that is closed once Cancel has been called.
func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Marks the Job as finished. Expected to be called internally by the job code
// when the work is complete.
func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

// Returns a channel that is closed once Finish has been called.
func (j *Job) Finished() <-chan struct{} {
	return j.done
}

/*
Schedule starts a Job that calls run on the given cron spec (standard five-field
syntax or descriptors like "@every 15m") until the job is canceled. A run that
is still going when the next tick arrives causes that tick to be skipped, and a
panicking run is logged rather than taking the process down.

If runNow is true, run is also called once immediately.
*/
func Schedule(name string, spec string, runNow bool, run func(ctx context.Context)) (*Job, error) {
	job := New(name)

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{&job.Logger}),
	))
	_, err := c.AddFunc(spec, func() {
		job.runOnce(run)
	})
	if err != nil {
		job.Cancel()
		return nil, oops.New(err, "invalid schedule %q for job %s", spec, name)
	}

	go func() {
		defer job.Finish()

		if runNow {
			job.runOnce(run)
		}

		c.Start()
		job.Logger.Info().Str("schedule", spec).Msg("job scheduled")

		<-job.Canceled()
		job.Logger.Info().Msg("shutting down job")
		<-c.Stop().Done()
	}()

	return job, nil
}

func (j *Job) runOnce(run func(ctx context.Context)) {
	defer logging.LogPanics(&j.Logger)
	if j.Ctx.Err() != nil {
		return
	}
	run(j.Ctx)
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// A utility for running and canceling multiple jobs at once. Because this type
// is simply a slice of Jobs, you can construct it using normal slice syntax.
type Jobs []*Job

// Cancels all tracked jobs, giving them a chance to finish gracefully. Will
// return when all jobs finish or when the timeout expires, whichever comes
// first. Returns a list of all jobs that did not finish on time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDoneChan := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDoneChan)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDoneChan:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
