// Package run implements the okn run command: the live test service.
package run

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/okn-go/internal/api"
	"github.com/tphakala/okn-go/internal/buildinfo"
	"github.com/tphakala/okn-go/internal/conf"
	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/events"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/mqtt"
	"github.com/tphakala/okn-go/internal/observability"
	"github.com/tphakala/okn-go/internal/session"
)

const busShutdownTimeout = 5 * time.Second

// Command creates the run command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the OKN test service",
		Long:  "Start the session machine, the detector source and the HTTP API, and serve until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			GetLogger().Info("starting okn-go",
				logger.String("version", info.GetVersion()),
				logger.String("build_date", info.GetBuildDate()))
			return Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the HTTP API")
	cmd.Flags().StringVar(&settings.Detector.Source, "source", viper.GetString("detector.source"), "Detector source (websocket, mqtt, synthetic, none)")
	cmd.Flags().StringVar(&settings.Detector.MQTT.Broker, "broker", viper.GetString("detector.mqtt.broker"), "MQTT broker URL for the mqtt source")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "telemetry-listen", viper.GetString("telemetry.listen"), "Listen address of the telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// GetLogger returns the run module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("run")
}

// Run wires and supervises all components until ctx is cancelled or one of
// them fails.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	bus := events.New(events.Config{
		BufferSize: settings.Events.BufferSize,
		Metrics:    metrics.Session,
	})
	defer func() {
		if err := bus.Shutdown(busShutdownTimeout); err != nil {
			log.Warn("event bus shutdown", logger.Error(err))
		}
	}()

	source, err := newSource(settings, metrics)
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithRecorder(metrics.Session),
		session.WithPublisher(events.NewSessionPublisher(bus)),
		session.WithQueueSize(settings.Session.QueueSize),
	}
	if a, ok := source.(session.Activator); ok {
		opts = append(opts, session.WithActivator(a))
	}
	machine := session.New(opts...)

	var server *api.Server
	if settings.WebServer.Enabled {
		var serverOpts []api.ServerOption
		if h, ok := source.(http.Handler); ok {
			serverOpts = append(serverOpts, api.WithDetectorFeed(h))
		}
		server, err = api.New(api.ConfigFromSettings(settings), machine, serverOpts...)
		if err != nil {
			return err
		}
		if err := bus.RegisterConsumer(server.APIController().SSE()); err != nil {
			return fmt.Errorf("register stream consumer: %w", err)
		}
	}

	endpoint, err := observability.NewEndpoint(settings, metrics)
	if err != nil && !errors.Is(err, observability.ErrTelemetryDisabled) {
		return fmt.Errorf("error initializing telemetry endpoint: %w", err)
	}

	// Nothing below returns before g.Wait.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return machine.Run(gctx) })

	if source != nil {
		log.Info("detector source selected", logger.String("source", source.Name()))
		g.Go(func() error {
			if err := source.Run(gctx, machine); err != nil {
				return fmt.Errorf("detector source %s: %w", source.Name(), err)
			}
			return nil
		})
	} else {
		log.Info("no detector source, frames accepted over HTTP only")
	}

	if server != nil {
		g.Go(func() error { return server.Run(gctx) })
	}
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(gctx) })
	}

	err = g.Wait()
	<-machine.Done()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("okn-go stopped")
	return nil
}

// newSource builds the configured detector source. It returns nil for
// source "none".
func newSource(settings *conf.Settings, metrics *observability.Metrics) (detector.Source, error) {
	opts := []detector.Option{detector.WithRecorder(metrics.Detector)}

	switch settings.Detector.Source {
	case conf.SourceWebSocket:
		return detector.NewWebSocketSource(opts...), nil
	case conf.SourceMQTT:
		cfg := mqtt.DefaultConfig()
		cfg.Broker = settings.Detector.MQTT.Broker
		cfg.ClientID = settings.MQTTClientID()
		cfg.Username = settings.Detector.MQTT.Username
		cfg.Password = settings.Detector.MQTT.Password
		client, err := mqtt.NewClient(cfg, metrics.MQTT)
		if err != nil {
			return nil, fmt.Errorf("error creating mqtt client: %w", err)
		}
		return detector.NewMQTTSource(client, settings.Detector.MQTT.Topic, byte(settings.Detector.MQTT.QoS), opts...), nil //nolint:gosec // qos validated to 0..2
	case conf.SourceSynthetic:
		src, err := detector.NewSyntheticSource(detector.SyntheticConfig{
			Amplitude: settings.Detector.Synthetic.Amplitude,
			Frequency: settings.Detector.Synthetic.Frequency,
			Rate:      settings.Detector.Synthetic.Rate,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case conf.SourceNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown detector source %q", settings.Detector.Source)
	}
}
