// Package rollexec implements the bounded worker pool that evaluates roll
// expressions off the caller's scheduler goroutine, cooperatively
// interruptible on a per-job timeout.
package rollexec

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mrwong99/rollbot/internal/diceeval"
	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/rng"
)

// Result is the outcome of one roll job: either a list of (total, rolls)
// pairs or an evaluation error, alongside the rendered expression text and
// optional label carried from the request.
type Result struct {
	Outcome []diceeval.Result
	Err     error
	Text    string
	Label   *string
}

type job struct {
	expr  diceexpr.LabeledExpression
	seed  rng.Seed
	reply chan Result
}

// Executor is a fixed-size pool of worker goroutines, each pulling jobs
// from a shared channel. It never blocks the caller's own goroutine beyond
// the channel send/receive needed to submit a job and await its result.
type Executor struct {
	jobs     chan job
	timeout  time.Duration
	provider *rng.Provider
	workersN int
}

// New starts workers goroutines, each ready to evaluate submitted roll
// jobs under the given per-job timeout.
func New(ctx context.Context, workers int, timeout time.Duration, provider *rng.Provider) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		jobs:     make(chan job),
		timeout:  timeout,
		provider: provider,
		workersN: workers,
	}
	for i := 0; i < workers; i++ {
		go e.worker(ctx)
	}
	return e
}

func (e *Executor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			e.runJob(j)
		}
	}
}

func (e *Executor) runJob(j job) {
	var timedOut atomic.Bool
	startCh := make(chan time.Time, 1)

	go func() {
		start := <-startCh
		timer := time.NewTimer(time.Until(start.Add(e.timeout)))
		defer timer.Stop()
		<-timer.C
		timedOut.Store(true)
	}()

	startCh <- time.Now()

	fast := rng.NewFastRNG(j.seed)
	outcome, err := diceeval.Evaluate(j.expr.Expression, timedOut.Load, fast)
	j.reply <- Result{
		Outcome: outcome,
		Err:     err,
		Text:    j.expr.String(),
		Label:   j.expr.Label,
	}
}

// Roll renders expr, obtains a fresh seed from the RNG provider, submits
// the job to the pool, and returns the first (and only) result produced.
// Cancellation of ctx after submission does not abort the worker — the job
// always runs to completion or its own per-job timeout, per the
// cooperative-timeout model; ctx only bounds the wait on the caller side.
func (e *Executor) Roll(ctx context.Context, expr diceexpr.LabeledExpression) (Result, error) {
	seed, err := e.provider.GetSeed(ctx)
	if err != nil {
		return Result{}, err
	}
	reply := make(chan Result, 1)
	j := job{expr: expr, seed: seed, reply: reply}
	select {
	case e.jobs <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
