package main

import (
	"github.com/spf13/cobra"
)

func newReviewersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reviewers [name...]",
		Short: "Check reviewer availability",
		Long: `Probe the configured reviewers and report which ones can be used.

Unavailable reviewers are listed with the reason and install instructions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = reg.Names()
			}
			statuses := reg.Check(a.withLogger(cmd.Context()), names, a.cfg.Workflow.AvailabilityTimeout.Duration())
			return a.renderer(cmd).reviewers(statuses)
		},
	}
}
