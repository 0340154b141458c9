package solve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aedificium/mapper/internal/attempt"
	"github.com/aedificium/mapper/internal/encoder"
	"github.com/aedificium/mapper/internal/judge/local"
	"github.com/aedificium/mapper/internal/judge/remote"
	"github.com/aedificium/mapper/internal/solver"
	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/gate"
	"github.com/aedificium/mapper/pkg/aedificium/plan"
)

type flags struct {
	rooms       int
	seed        int64
	remote      bool
	problem     string
	envFile     string
	workers     int
	timeout     time.Duration
	attempts    int
	gateConfig  string
	labels      string
	planSeed    int64
	metricsFile string
}

func NewSolveCommand(log *logrus.Logger) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Maps a hidden building with a single exploration per attempt",
		Long: `Maps a hidden building with a single exploration per attempt.
By default every attempt draws a fresh random map from --seed and explores it
in process. With --remote the contest judge is used instead; its credentials
are read from AEDIFICIUM_ID and AEDIFICIUM_BASE_URL, or from --env-file.
`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if f.remote && f.problem == "" {
				return errors.New("--problem is required with --remote")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, cmd.OutOrStdout(), log, f)
		},
	}
	cmd.Flags().IntVar(&f.rooms, "rooms", 6, "number of rooms of the local maps")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "seed of the local maps")
	cmd.Flags().BoolVar(&f.remote, "remote", false, "explore the contest judge instead of local maps")
	cmd.Flags().StringVar(&f.problem, "problem", "", "contest problem name, e.g. primus")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "file holding the judge credentials (default .env)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "number of concurrent solver instances (default: GOMAXPROCS)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "solver budget per attempt")
	cmd.Flags().IntVar(&f.attempts, "attempts", 1, "maximum number of attempts")
	cmd.Flags().StringVar(&f.gateConfig, "gate-config", "", "YAML file with feasibility gate thresholds")
	cmd.Flags().StringVar(&f.labels, "labels", encoder.LabelsFree.String(), "label mode: free, or balanced for maps where room r carries label r mod 4")
	cmd.Flags().Int64Var(&f.planSeed, "plan-seed", plan.DefaultSeed, "seed of the route plans")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write prometheus metrics to this file when done")
	return cmd
}

func run(ctx context.Context, w io.Writer, log *logrus.Logger, f flags) error {
	mode, err := encoder.ParseLabelMode(f.labels)
	if err != nil {
		return err
	}

	labelling := gate.ObservedLabels
	if mode == encoder.LabelsBalanced {
		labelling = gate.RoundRobinLabels
	}
	thresholds := gate.DefaultThresholds()
	if f.gateConfig != "" {
		if thresholds, err = gate.LoadThresholds(f.gateConfig); err != nil {
			return err
		}
	}

	solverOptions := []solver.Option{
		solver.WithTimeout(f.timeout),
		solver.WithTracer(solver.LogrusTracer{Logger: log}),
	}
	if f.workers > 0 {
		solverOptions = append(solverOptions, solver.WithWorkers(f.workers))
	}
	portfolio, err := solver.NewPortfolio(solverOptions...)
	if err != nil {
		return err
	}

	plans, err := plan.NewGenerator(plan.WithSeed(f.planSeed))
	if err != nil {
		return err
	}

	sessions, err := sessionFactory(log, f, mode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := attempt.NewMetrics(reg)
	if err != nil {
		return err
	}

	runner, err := attempt.NewRunner(sessions,
		attempt.WithMaxAttempts(f.attempts),
		attempt.WithPlanGenerator(plans),
		attempt.WithGate(gate.New(thresholds, gate.WithLabelling(labelling))),
		attempt.WithSolver(portfolio),
		attempt.WithEncoderOptions(encoder.Options{Labels: mode}),
		attempt.WithLogger(log),
		attempt.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	res, runErr := runner.Run(ctx)
	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			log.WithError(err).Warn("could not write metrics")
		}
	}
	if res != nil {
		if err := report(w, res); err != nil {
			return err
		}
	}
	return runErr
}

func sessionFactory(log logrus.FieldLogger, f flags, mode encoder.LabelMode) (attempt.SessionFactory, error) {
	if f.remote {
		cfg, err := loadConfig(f.envFile)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (aedificium.Judge, error) {
			c := remote.NewClient(cfg, log)
			if err := c.Select(ctx, f.problem); err != nil {
				return nil, err
			}
			return c, nil
		}, nil
	}

	if f.rooms <= 0 {
		return nil, fmt.Errorf("invalid number of rooms %d", f.rooms)
	}
	rng := rand.New(rand.NewSource(f.seed))
	return func(context.Context) (aedificium.Judge, error) {
		g := local.RandomFreeGraph(f.rooms, rng)
		if mode == encoder.LabelsBalanced {
			g = local.RandomGraph(f.rooms, rng)
		}
		return local.NewSimulator(g)
	}, nil
}

func loadConfig(envFile string) (remote.Config, error) {
	if envFile == "" {
		return remote.LoadConfig()
	}
	return remote.LoadConfig(envFile)
}

func report(w io.Writer, res *attempt.Result) error {
	fmt.Fprintf(w, "attempt %d (%s): %s\n", res.Index, res.ID, res.Outcome)
	if res.Outcome == attempt.Rejected {
		for _, reason := range res.Verdict.Reasons {
			fmt.Fprintf(w, "  %s\n", reason)
		}
	}
	if res.Guess == nil {
		return nil
	}
	out, err := json.MarshalIndent(res.Guess, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
