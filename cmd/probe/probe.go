// Package probe implements the okn probe command, a stage-by-stage MQTT
// broker connectivity check.
package probe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/okn-go/internal/conf"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/mqtt"
)

const probeTimeout = 30 * time.Second

// Command creates the probe command.
func Command(settings *conf.Settings) *cobra.Command {
	var broker string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check connectivity to the MQTT detector broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mqtt.DefaultConfig()
			cfg.Broker = settings.Detector.MQTT.Broker
			if broker != "" {
				cfg.Broker = broker
			}
			cfg.ClientID = settings.MQTTClientID() + "-probe"
			cfg.Username = settings.Detector.MQTT.Username
			cfg.Password = settings.Detector.MQTT.Password
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			results := make(chan mqtt.ProbeResult)
			go mqtt.Probe(ctx, cfg, results)
			return report(cmd.OutOrStdout(), logger.RedactURL(cfg.Broker), results)
		},
	}

	cmd.Flags().StringVar(&broker, "broker", "", "Broker URL, overrides detector.mqtt.broker")
	return cmd
}

// report prints each stage result and fails if any stage failed.
func report(w io.Writer, broker string, results <-chan mqtt.ProbeResult) error {
	fmt.Fprintf(w, "Probing %s\n", broker)
	var failed *mqtt.ProbeResult
	for r := range results {
		mark := "ok  "
		if !r.Success {
			mark = "FAIL"
			failed = &r
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", mark, r.Stage, r.Message)
		if r.Error != "" {
			fmt.Fprintf(w, "         %s\n", r.Error)
		}
	}
	if failed != nil {
		return fmt.Errorf("broker check failed at %s", failed.Stage)
	}
	return nil
}
