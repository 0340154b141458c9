package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
	"golang.org/x/sync/errgroup"

	"github.com/aedificium/mapper/internal/cnf"
	"github.com/aedificium/mapper/pkg/aedificium"
)

var (
	ErrIncomplete    = errors.New("cancelled before a solution could be found")
	ErrUnsatisfiable = errors.New("formula is unsatisfiable")
	ErrTimeout       = fmt.Errorf("portfolio: %w", aedificium.ErrSolverTimeout)
)

const (
	satisfiable   = 1
	unsatisfiable = -1
	unknown       = 0
)

type Solver interface {
	Solve(context.Context, *cnf.Formula) (cnf.Model, error)
}

// result is the first definitive answer of any worker.
type result struct {
	outcome int
	model   cnf.Model
}

// Portfolio runs several gini instances on the same formula. Each worker
// loads the clauses in its own seeded order so that their searches diverge.
// The first definitive answer wins and every other worker is stopped.
type Portfolio struct {
	workers int
	timeout time.Duration
	poll    time.Duration
	seed    int64
	tracer  Tracer
}

// Solve returns a model of f, ErrUnsatisfiable, ErrTimeout once the
// configured timeout or the context deadline passes, or ErrIncomplete when
// ctx is cancelled first.
func (p *Portfolio) Solve(ctx context.Context, f *cnf.Formula) (cnf.Model, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		done   atomic.Bool
		winner atomic.Pointer[result]
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		w := w
		eg.Go(func() error {
			return p.work(egCtx, w, f, &done, &winner)
		})
	}
	err := eg.Wait()

	if r := winner.Load(); r != nil {
		if r.outcome == satisfiable {
			return r.model, nil
		}
		return nil, ErrUnsatisfiable
	}
	if err != nil {
		return nil, err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return nil, ErrIncomplete
}

func (p *Portfolio) work(ctx context.Context, w int, f *cnf.Formula, done *atomic.Bool, winner *atomic.Pointer[result]) error {
	seed := p.seed + int64(w)
	began := time.Now()
	p.tracer.Trace(Event{Worker: w, Seed: seed, Outcome: Running})

	g := gini.New()
	if w == 0 {
		f.LoadInto(g)
	} else {
		f.LoadShuffled(g, rand.New(rand.NewSource(seed)))
	}

	s := g.GoSolve()
	res, finished := p.wait(ctx, s, done)

	ev := Event{Worker: w, Seed: seed, Outcome: Stopped, Elapsed: time.Since(began)}
	switch res {
	case satisfiable:
		ev.Outcome = Satisfiable
	case unsatisfiable:
		ev.Outcome = Unsatisfiable
	}
	if res != unknown && finished && done.CompareAndSwap(false, true) {
		r := &result{outcome: res}
		if res == satisfiable {
			r.model = extract(g, f.NumVars())
		}
		winner.Store(r)
		ev.Winner = true
	}
	p.tracer.Trace(ev)
	return nil
}

// wait polls s until it answers, another worker wins, or ctx ends. The
// second return value is false when the search had to be stopped.
func (p *Portfolio) wait(ctx context.Context, s inter.Solve, done *atomic.Bool) (int, bool) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for {
		if res, ok := s.Test(); ok {
			return res, true
		}
		if done.Load() {
			return s.Stop(), false
		}
		select {
		case <-ctx.Done():
			return s.Stop(), false
		case <-ticker.C:
		}
	}
}

func extract(g *gini.Gini, numVars int) cnf.Model {
	model := make(cnf.Model, numVars+1)
	top := int(g.MaxVar())
	for v := 1; v <= numVars && v <= top; v++ {
		model[v] = g.Value(z.Var(v).Pos())
	}
	return model
}

func NewPortfolio(options ...Option) (*Portfolio, error) {
	p := Portfolio{}
	for _, option := range append(options, defaults...) {
		if err := option(&p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

type Option func(p *Portfolio) error

// WithWorkers sets the number of concurrent gini instances.
func WithWorkers(n int) Option {
	return func(p *Portfolio) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of workers %d", n)
		}
		p.workers = n
		return nil
	}
}

// WithTimeout bounds every Solve call. Zero leaves only the context
// deadline in force.
func WithTimeout(d time.Duration) Option {
	return func(p *Portfolio) error {
		if d < 0 {
			return fmt.Errorf("invalid timeout %s", d)
		}
		p.timeout = d
		return nil
	}
}

// WithPollInterval sets how often workers check for cancellation.
func WithPollInterval(d time.Duration) Option {
	return func(p *Portfolio) error {
		if d <= 0 {
			return fmt.Errorf("invalid poll interval %s", d)
		}
		p.poll = d
		return nil
	}
}

// WithSeed sets the base seed. Worker i shuffles the formula with seed+i,
// except worker 0 which always loads it unshuffled.
func WithSeed(seed int64) Option {
	return func(p *Portfolio) error {
		p.seed = seed
		return nil
	}
}

func WithTracer(t Tracer) Option {
	return func(p *Portfolio) error {
		p.tracer = t
		return nil
	}
}

var defaults = []Option{
	func(p *Portfolio) error {
		if p.workers == 0 {
			p.workers = runtime.GOMAXPROCS(0)
		}
		return nil
	},
	func(p *Portfolio) error {
		if p.poll == 0 {
			p.poll = 10 * time.Millisecond
		}
		return nil
	},
	func(p *Portfolio) error {
		if p.tracer == nil {
			p.tracer = DefaultTracer{}
		}
		return nil
	},
}
