package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store migrates it.
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("schema up to date")
			return nil
		},
	}
}
