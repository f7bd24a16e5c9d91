package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-proxyauth/pkg/metrics"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	var (
		target      string
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Send an authenticated GET request to a target",
		Long: `Sends a GET request with the target's credential attached and writes the
response body to stdout. The response status is logged.

The request is aborted when authentication fails unless the target sets
continueOnFailure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(target)
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return err
			}

			client := s.transport(opts.logger).Client()
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			opts.logger.Info("response received", "status", resp.StatusCode, "url", args[0])

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			if showMetrics {
				return metrics.WriteText(cmd.ErrOrStderr(), s.registry)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target name from the config file")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "write token metrics to stderr when done")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
