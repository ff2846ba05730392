package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/okn-go/cmd/config"
	"github.com/tphakala/okn-go/cmd/probe"
	"github.com/tphakala/okn-go/cmd/run"
	"github.com/tphakala/okn-go/cmd/score"
	"github.com/tphakala/okn-go/internal/buildinfo"
	"github.com/tphakala/okn-go/internal/conf"
	"github.com/tphakala/okn-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "okn",
		Short:         "OKN impairment test",
		Long:          "okn runs an optokinetic nystagmus screening test and scores gaze traces.",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	scoreCmd := score.Command()

	rootCmd.AddCommand(
		run.Command(settings, info),
		scoreCmd,
		config.Command(settings),
		probe.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Offline scoring prints to stdout only
		if cmd.Name() == scoreCmd.Name() {
			return nil
		}
		return initLogging(settings)
	}

	return rootCmd
}

// initLogging replaces the bootstrap logger with one built from settings.
func initLogging(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
