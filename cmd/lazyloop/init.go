package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eraldohasanaj/lazyloop/internal/config"
)

func newInitCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration template",
		Long: `Create a lazyloop.yaml configuration template.

The template lists every setting with its default value. Edit it and pass
it to "lazyloop run --config".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created configuration template: %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "lazyloop.yaml", "Output path for the template")
	return cmd
}
