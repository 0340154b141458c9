package dimacs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aedificium/mapper/internal/cnf"
	"github.com/aedificium/mapper/internal/encoder"
	"github.com/aedificium/mapper/internal/judge/local"
	"github.com/aedificium/mapper/internal/solver"
	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/plan"
)

func NewDimacsCommand(log logrus.FieldLogger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dimacs",
		Short: "Converts observations to and solves formulas in dimacs format",
	}
	cmd.AddCommand(newEncodeCommand())
	cmd.AddCommand(newSolveCommand(log))
	return cmd
}

type encodeFlags struct {
	rooms   int
	plan    string
	trace   string
	seed    int64
	labels  string
	anySize bool
	output  string
}

func newEncodeCommand() *cobra.Command {
	var f encodeFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encodes a route plan and its label trace as a dimacs formula",
		Long: `Encodes a route plan and its label trace as a dimacs formula.
Without --plan the generated plan for --rooms is used. Without --trace the
plan is walked on a random map drawn from --seed.
Variable blocks are listed as comments:
c role <name> <first variable> <count>
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if f.output != "" {
				file, err := os.Create(f.output)
				if err != nil {
					return fmt.Errorf("error creating output file (%s): %w", f.output, err)
				}
				defer file.Close()
				out = file
			}
			return encode(out, f)
		},
	}
	cmd.Flags().IntVar(&f.rooms, "rooms", 6, "number of rooms")
	cmd.Flags().StringVar(&f.plan, "plan", "", "route plan as a string of doors 0-5")
	cmd.Flags().StringVar(&f.trace, "trace", "", "label trace as a string of labels 0-3")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "seed of the random map walked when no trace is given")
	cmd.Flags().StringVar(&f.labels, "labels", encoder.LabelsFree.String(), "label mode: free, or balanced for maps where room r carries label r mod 4")
	cmd.Flags().BoolVar(&f.anySize, "allow-any-length", false, "accept plans that are not 18 doors per room")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the formula to a file instead of stdout")
	return cmd
}

func encode(w io.Writer, f encodeFlags) error {
	mode, err := encoder.ParseLabelMode(f.labels)
	if err != nil {
		return err
	}

	var p aedificium.RoutePlan
	if f.plan == "" {
		gen, err := plan.NewGenerator()
		if err != nil {
			return err
		}
		if p, err = gen.Generate(f.rooms, 0); err != nil {
			return err
		}
	} else if p, err = aedificium.ParsePlan(f.plan); err != nil {
		return err
	}

	var trace aedificium.LabelTrace
	if f.trace == "" {
		rng := rand.New(rand.NewSource(f.seed))
		g := local.RandomFreeGraph(f.rooms, rng)
		if mode == encoder.LabelsBalanced {
			g = local.RandomGraph(f.rooms, rng)
		}
		trace = g.Walk(p)
	} else {
		values := make([]int, len(f.trace))
		for i, c := range f.trace {
			values[i] = int(c - '0')
		}
		if trace, err = aedificium.TraceFromInts(values); err != nil {
			return err
		}
	}

	enc, err := encoder.Encode(p, trace, f.rooms, encoder.Options{Labels: mode, AllowAnyPlanLength: f.anySize})
	if err != nil {
		return err
	}
	return cnf.WriteDimacs(w, enc.Formula)
}

type solveFlags struct {
	workers int
	timeout time.Duration
	seed    int64
	trace   bool
}

func newSolveCommand(log logrus.FieldLogger) *cobra.Command {
	var f solveFlags
	cmd := &cobra.Command{
		Use:   "solve <path>",
		Short: "Solves a sat problem given in dimacs format",
		Long: `Solves a sat problem given in dimacs format. For instance:
c
c this is a comment
c header: p cnf <number of variable> <number of clauses>
p cnf 2 2
c clauses end in zero, negative means 'not'
c 0 (zero) is not a valid literal
1 2 0
1 -2 0
c cnf: (1 or 2) and (1 and not 2)
`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("file (%s) not found", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options := []solver.Option{solver.WithTimeout(f.timeout), solver.WithSeed(f.seed)}
			if f.workers > 0 {
				options = append(options, solver.WithWorkers(f.workers))
			}
			if f.trace {
				options = append(options, solver.WithTracer(solver.LoggingTracer{Writer: cmd.ErrOrStderr()}))
			} else {
				options = append(options, solver.WithTracer(solver.LogrusTracer{Logger: log}))
			}
			p, err := solver.NewPortfolio(options...)
			if err != nil {
				return err
			}
			return solve(cmd.Context(), cmd.OutOrStdout(), p, args[0])
		},
	}
	cmd.Flags().IntVar(&f.workers, "workers", 0, "number of concurrent solver instances (default: GOMAXPROCS)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up after this long (0: no limit)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "base seed of the clause shuffles")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "print solver worker events to stderr")
	return cmd
}

func solve(ctx context.Context, w io.Writer, s solver.Solver, path string) error {
	// open dimacs file
	dimacsFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening dimacs file (%s): %w", path, err)
	}
	defer dimacsFile.Close()

	f, err := cnf.ReadDimacs(dimacsFile)
	if err != nil {
		return fmt.Errorf("error parsing dimacs file (%s): %w", path, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	model, err := s.Solve(ctx, f)
	if err != nil {
		fmt.Fprintf(w, "no solution found: %s\n", err)
		return nil
	}
	fmt.Fprintln(w, "solution found:")
	for v := 1; v <= f.NumVars(); v++ {
		fmt.Fprintf(w, "%d = %t\n", v, v < len(model) && model[v])
	}
	return nil
}
