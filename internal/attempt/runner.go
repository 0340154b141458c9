package attempt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/aedificium/mapper/internal/encoder"
	"github.com/aedificium/mapper/internal/solver"
	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/gate"
	"github.com/aedificium/mapper/pkg/aedificium/plan"
)

// ErrAttemptsExhausted is returned when every attempt ended without a
// correct guess.
var ErrAttemptsExhausted = errors.New("no attempt produced a correct guess")

// SessionFactory opens a fresh judge session with a new hidden map.
type SessionFactory func(ctx context.Context) (aedificium.Judge, error)

// Runner drives attempts until one is solved. Attempts share nothing but
// their configuration; each gets its own session, plan and formula.
type Runner struct {
	sessions    SessionFactory
	maxAttempts int
	plans       *plan.Generator
	gate        *gate.Gate
	solver      solver.Solver
	opts        encoder.Options
	ids         IDProvider
	log         logrus.FieldLogger
	metrics     *Metrics
}

func NewRunner(sessions SessionFactory, options ...Option) (*Runner, error) {
	if sessions == nil {
		return nil, errors.New("session factory is required")
	}
	r := Runner{sessions: sessions}
	for _, option := range append(options, defaults...) {
		if err := option(&r); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// Run returns the first solved attempt. Internal defects and non-operational
// failures stop the runner immediately. When every attempt ends in a
// recoverable outcome the last Result is returned with an error wrapping
// both ErrAttemptsExhausted and the last outcome's error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	var last *Result
	for i := 0; i < r.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		judge, err := r.sessions(ctx)
		if err != nil {
			return last, fmt.Errorf("open session: %w", err)
		}
		a := r.Attempt(i)
		res, err := a.Run(ctx, judge)
		if err != nil {
			entry := r.log.WithFields(logrus.Fields{"attempt": a.ID, "index": i}).WithError(err)
			if aedificium.IsDefect(err) {
				entry.Error("internal defect, giving up")
			} else {
				entry.Warn("attempt failed")
			}
			return last, err
		}
		last = res
		if res.Outcome == Solved {
			return res, nil
		}
	}
	if last == nil {
		return nil, ErrAttemptsExhausted
	}
	return last, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, r.maxAttempts, last.Err())
}

// Attempt returns the index-th attempt with a fresh ID.
func (r *Runner) Attempt(index int) *Attempt {
	return &Attempt{
		ID:      r.ids.NextID(),
		Index:   index,
		plans:   r.plans,
		gate:    r.gate,
		solver:  r.solver,
		opts:    r.opts,
		log:     r.log,
		metrics: r.metrics,
	}
}

type Option func(r *Runner) error

func WithMaxAttempts(n int) Option {
	return func(r *Runner) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of attempts %d", n)
		}
		r.maxAttempts = n
		return nil
	}
}

func WithPlanGenerator(g *plan.Generator) Option {
	return func(r *Runner) error {
		r.plans = g
		return nil
	}
}

func WithGate(g *gate.Gate) Option {
	return func(r *Runner) error {
		r.gate = g
		return nil
	}
}

func WithSolver(s solver.Solver) Option {
	return func(r *Runner) error {
		r.solver = s
		return nil
	}
}

func WithEncoderOptions(opts encoder.Options) Option {
	return func(r *Runner) error {
		r.opts = opts
		return nil
	}
}

func WithIDProvider(p IDProvider) Option {
	return func(r *Runner) error {
		r.ids = p
		return nil
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) error {
		r.log = log
		return nil
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) error {
		r.metrics = m
		return nil
	}
}

var defaults = []Option{
	func(r *Runner) error {
		if r.maxAttempts == 0 {
			r.maxAttempts = 1
		}
		return nil
	},
	func(r *Runner) error {
		if r.plans != nil {
			return nil
		}
		g, err := plan.NewGenerator()
		r.plans = g
		return err
	},
	func(r *Runner) error {
		if r.gate != nil {
			return nil
		}
		labelling := gate.ObservedLabels
		if r.opts.Labels == encoder.LabelsBalanced {
			labelling = gate.RoundRobinLabels
		}
		r.gate = gate.New(gate.DefaultThresholds(), gate.WithLabelling(labelling))
		return nil
	},
	func(r *Runner) error {
		if r.solver != nil {
			return nil
		}
		p, err := solver.NewPortfolio()
		r.solver = p
		return err
	},
	func(r *Runner) error {
		if r.ids == nil {
			r.ids = NewUUIDProvider()
		}
		return nil
	},
	func(r *Runner) error {
		if r.log == nil {
			l := logrus.New()
			l.SetOutput(io.Discard)
			r.log = l
		}
		return nil
	},
}
