package solver

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is how one worker's search ended.
type Outcome int

const (
	Running Outcome = iota
	Satisfiable
	Unsatisfiable
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Satisfiable:
		return "sat"
	case Unsatisfiable:
		return "unsat"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Event describes one worker at the start or end of its search.
type Event struct {
	Worker  int
	Seed    int64
	Outcome Outcome
	Elapsed time.Duration
	Winner  bool
}

type Tracer interface {
	Trace(e Event)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(_ Event) {
}

type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(e Event) {
	if e.Outcome == Running {
		fmt.Fprintf(t.Writer, "worker %d: started (seed %d)\n", e.Worker, e.Seed)
		return
	}
	fmt.Fprintf(t.Writer, "worker %d: %s after %s", e.Worker, e.Outcome, e.Elapsed.Round(time.Millisecond))
	if e.Winner {
		fmt.Fprint(t.Writer, " (winner)")
	}
	fmt.Fprintln(t.Writer)
}

// LogrusTracer reports worker events as structured debug entries.
type LogrusTracer struct {
	Logger logrus.FieldLogger
}

func (t LogrusTracer) Trace(e Event) {
	t.Logger.WithFields(logrus.Fields{
		"worker":  e.Worker,
		"seed":    e.Seed,
		"outcome": e.Outcome.String(),
		"elapsed": e.Elapsed,
		"winner":  e.Winner,
	}).Debug("solver worker")
}
