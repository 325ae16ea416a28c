package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simantu.org/internal/navigation"
)

func newOpenCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Report whether the session may open a view, or where it is sent instead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			d := navigation.Default().Resolve(cmd.Context(), s, args[0])
			if d.FetchErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "session ended: %v\n", d.FetchErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.String())
			return nil
		},
	}
}
