// Package config implements the okn config command.
package config

import (
	"github.com/spf13/cobra"
	"github.com/tphakala/okn-go/internal/conf"
)

// Command creates a command printing the effective settings as YAML with
// secrets masked.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the settings after defaults, config file and environment are applied. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return conf.WriteYAML(cmd.OutOrStdout(), settings)
		},
	}
}
