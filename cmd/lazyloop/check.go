package main

import (
	"github.com/spf13/cobra"

	"github.com/eraldohasanaj/lazyloop/internal/config"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the resolved configuration",
		Long:  `Print the configuration "lazyloop run" would use with the same flags, file and environment.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := cfg.Resolve().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
