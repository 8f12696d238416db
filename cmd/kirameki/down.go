package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newDownCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "down <target>",
		Short: "roll back migrations down to and including the given target's successor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}

			migrator, err := buildMigrator(cmd, flags)
			if err != nil {
				return err
			}

			if flags.dryRun {
				return runDryRun(cmd, migrator, false, nil, target)
			}

			plan, err := migrator.Down(cmd.Context(), target)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
			return nil
		},
	}
}
