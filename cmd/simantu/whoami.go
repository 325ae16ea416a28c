package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in; run 'simantu login'")

func newWhoamiCmd(opts *cliOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			if !s.IsAuthenticated() {
				return errNotSignedIn
			}
			if err := s.FetchProfile(cmd.Context()); err != nil {
				return fmt.Errorf("%w (signed out)", err)
			}
			p, _ := s.Profile()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			fmt.Fprintf(out, "%s <%s>\nrole: %s\npermissions: %s\n", p.Name, p.Email, p.Role, strings.Join(p.Permissions, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the profile as JSON")
	return cmd
}
