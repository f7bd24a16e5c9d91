package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-proxyauth/pkg/strategy"
)

func newStrategiesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available strategies and the parameters they read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := strategy.Default(opts.logger)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREQUIRED\tOPTIONAL\tCREDENTIALS")
			for _, name := range registry.Names() {
				s, err := registry.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name,
					joinOrDash(s.RequiredParameterNames()),
					joinOrDash(s.OptionalParameterNames()),
					joinOrDash(s.CredentialFieldNames()))
			}
			return w.Flush()
		},
	}
}
