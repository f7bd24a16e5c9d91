package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-proxyauth/pkg/metrics"
)

func newHeaderCmd(opts *rootOptions) *cobra.Command {
	var (
		target      string
		count       int
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print the authentication header for a target",
		Long: `Authenticates against the target and prints the header to attach to
outbound requests, for example "Authorization: Bearer <token>".

With --count the target is authenticated repeatedly in one process, which
shows the cached strategy reusing its token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			s, err := opts.open(target)
			if err != nil {
				return err
			}

			for i := 0; i < count; i++ {
				cred, err := s.strategy.Authenticate(cmd.Context(), s.target.Parameters, s.target.Credentials)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cred.String())
			}

			if showMetrics {
				return metrics.WriteText(cmd.ErrOrStderr(), s.registry)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target name from the config file")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of times to authenticate")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "write token metrics to stderr when done")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
