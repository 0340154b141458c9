package attempt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aedificium/mapper/internal/decoder"
	"github.com/aedificium/mapper/internal/encoder"
	"github.com/aedificium/mapper/internal/solver"
	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/gate"
	"github.com/aedificium/mapper/pkg/aedificium/plan"
)

// Outcome is how an attempt that ran to completion ended.
type Outcome int

const (
	Solved Outcome = iota
	// Rejected means the gate aborted the attempt before solving.
	Rejected
	TimedOut
	// Incorrect means the judge did not accept the guess.
	Incorrect
)

func (o Outcome) String() string {
	switch o {
	case Solved:
		return "solved"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed-out"
	case Incorrect:
		return "incorrect"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes one finished attempt.
type Result struct {
	ID      ID
	Index   int
	Rooms   int
	Outcome Outcome
	Plan    aedificium.RoutePlan
	Trace   aedificium.LabelTrace
	Verdict gate.Verdict
	Guess   *aedificium.Guess
	Elapsed time.Duration

	err error
}

// Err returns nil for solved attempts and the recoverable error that ended
// the attempt otherwise.
func (r *Result) Err() error {
	return r.err
}

type queryCounter interface {
	QueryCount() int
}

// Attempt is a single plan, explore, gate, encode, solve, decode and guess
// round against one judge session.
type Attempt struct {
	ID    ID
	Index int

	plans   *plan.Generator
	gate    *gate.Gate
	solver  solver.Solver
	opts    encoder.Options
	log     logrus.FieldLogger
	metrics *Metrics
}

// Run executes the attempt. It returns a Result whenever the attempt ran to
// an operational outcome, and an error when it could not: transport
// failures, cancellation, malformed observations and internal defects.
func (a *Attempt) Run(ctx context.Context, judge aedificium.Judge) (*Result, error) {
	began := time.Now()
	n := judge.NumRooms()
	rooms := strconv.Itoa(n)
	log := a.log.WithFields(logrus.Fields{"attempt": a.ID, "rooms": n})

	p, err := a.plans.Generate(n, a.Index)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: a.ID, Index: a.Index, Rooms: n, Plan: p}

	results, err := judge.Explore(ctx, []string{p.String()})
	if err != nil {
		return nil, fmt.Errorf("explore: %w", err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("explore returned %d traces for one plan", len(results))
	}
	if qc, ok := judge.(queryCounter); ok {
		a.metrics.setQueryCount(qc.QueryCount())
	}
	trace, err := aedificium.TraceFromInts(results[0])
	if err != nil {
		return nil, err
	}
	if err := trace.Validate(p); err != nil {
		return nil, err
	}
	res.Trace = trace

	finish := func(o Outcome, err error) (*Result, error) {
		res.Outcome = o
		res.err = err
		res.Elapsed = time.Since(began)
		a.metrics.observeOutcome(o, rooms)
		entry := log.WithFields(logrus.Fields{"outcome": o, "elapsed": res.Elapsed})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("attempt finished")
		return res, nil
	}

	res.Verdict = a.gate.Classify(p, trace, n)
	log.WithFields(logrus.Fields{
		"missingTransitions": res.Verdict.Stats.MissingTransitions,
		"chi2":               res.Verdict.Stats.LabelDoorChi2,
		"favorable":          res.Verdict.Favorable,
	}).Debug("classified trace")
	if !res.Verdict.Favorable {
		return finish(Rejected, res.Verdict.Err())
	}

	enc, err := encoder.Encode(p, trace, n, a.opts)
	if err != nil {
		return nil, err
	}
	a.metrics.observeClauses(enc.Formula.NumClauses())
	log.WithFields(logrus.Fields{
		"vars":    enc.Formula.NumVars(),
		"clauses": enc.Formula.NumClauses(),
	}).Debug("encoded")

	solveBegan := time.Now()
	model, err := a.solver.Solve(ctx, enc.Formula)
	a.metrics.observeSolve(time.Since(solveBegan), rooms)
	switch {
	case err == nil:
	case errors.Is(err, aedificium.ErrSolverTimeout):
		return finish(TimedOut, err)
	case errors.Is(err, solver.ErrUnsatisfiable):
		return nil, fmt.Errorf("%w: %w", aedificium.ErrEncodingContradiction, err)
	default:
		return nil, err
	}

	guess, err := decoder.Decode(enc, model)
	if err != nil {
		return nil, err
	}
	res.Guess = guess

	correct, err := judge.Guess(ctx, *guess)
	if err != nil {
		return nil, fmt.Errorf("guess: %w", err)
	}
	if !correct {
		return finish(Incorrect, aedificium.ErrIncorrectGuess)
	}
	return finish(Solved, nil)
}
