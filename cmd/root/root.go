package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aedificium/mapper/cmd/dimacs"
	"github.com/aedificium/mapper/cmd/plan"
	"github.com/aedificium/mapper/cmd/solve"
)

func NewRootCmd() *cobra.Command {
	log := logrus.New()
	var level string

	rootCmd := &cobra.Command{
		Use:   "mapper",
		Short: "Mapper reconstructs a hidden building from a single exploration",
		Long: `Mapper reconstructs a hidden building of six-door rooms from one
pre-declared route plan and the labels observed along it, by encoding the
observation as a SAT problem and solving it with a portfolio of solvers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(level)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&level, "log-level", logrus.InfoLevel.String(), "log level")

	// add sub-commands
	rootCmd.AddCommand(solve.NewSolveCommand(log))
	rootCmd.AddCommand(plan.NewPlanCommand())
	rootCmd.AddCommand(dimacs.NewDimacsCommand(log))

	return rootCmd
}
