package main

import (
	"os"

	"github.com/spf13/cobra"

	"simantu.org/internal/client"
)

const defaultServer = "http://localhost:3000"

type cliOptions struct {
	server      string
	sessionFile string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "simantu",
		Short:         "Sign in to a SIMANTU server and check what your account can open.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	server := os.Getenv("SIMANTU_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "API base URL (env SIMANTU_SERVER)")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", "", "token file (default <config dir>/simantu/session.json)")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newOpenCmd(opts),
	)
	return root
}

// session builds a client session and restores any persisted token.
func (o *cliOptions) session() (*client.Session, error) {
	path := o.sessionFile
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	s := client.New(o.server, client.NewFileStorage(path))
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}
