package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quasar-media/kirameki/pkg/pgmigrate"
)

func newUpCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up [target]",
		Short: "apply pending migrations, optionally up to a specific version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *int
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}
				target = &v
			}

			migrator, err := buildMigrator(cmd, flags)
			if err != nil {
				return err
			}

			if flags.dryRun {
				return runDryRun(cmd, migrator, true, target, 0)
			}

			plan, err := migrator.Up(cmd.Context(), target)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
			return nil
		},
	}
}

// runDryRun reports the plan a real Up/Down would apply without running
// it. It reuses the migrator's loader and connector so the reported plan
// reflects the same history and migrations a live run would see.
func runDryRun(cmd *cobra.Command, migrator *pgmigrate.Migrator, up bool, upTarget *int, downTarget int) error {
	plan, err := migrator.Plan(cmd.Context(), up, upTarget, downTarget)
	if err != nil {
		return err
	}
	printPlan(cmd, plan)
	return nil
}
