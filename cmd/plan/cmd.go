package plan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aedificium/mapper/pkg/aedificium/plan"
)

func NewPlanCommand() *cobra.Command {
	var (
		rooms    int
		attempt  int
		seed     int64
		noPreset bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Prints the route plan used for a number of rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options := []plan.Option{plan.WithSeed(seed)}
			if noPreset {
				options = append(options, plan.WithoutPresets())
			}
			gen, err := plan.NewGenerator(options...)
			if err != nil {
				return err
			}
			p, err := gen.Generate(rooms, attempt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().IntVar(&rooms, "rooms", 6, "number of rooms")
	cmd.Flags().IntVar(&attempt, "attempt", 0, "attempt index; later attempts reseed the walk")
	cmd.Flags().Int64Var(&seed, "seed", plan.DefaultSeed, "seed of the walk")
	cmd.Flags().BoolVar(&noPreset, "no-preset", false, "ignore offline presets")
	return cmd
}
