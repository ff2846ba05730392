package detector

import (
	"context"
	"fmt"

	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/mqtt"
)

// MQTTSource subscribes to a topic carrying detector frames.
type MQTTSource struct {
	opts   sourceOptions
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTSource creates a source reading frames from topic through client.
func NewMQTTSource(client mqtt.Client, topic string, qos byte, opts ...Option) *MQTTSource {
	return &MQTTSource{
		opts:   buildOptions(opts),
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

func (s *MQTTSource) Name() string { return "mqtt" }

// Run connects, subscribes and forwards frames until ctx is cancelled.
func (s *MQTTSource) Run(ctx context.Context, sink Sink) error {
	if s.topic == "" {
		return errors.Newf("mqtt detector topic is empty").
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connect detector mqtt source: %w", err)
	}
	defer s.client.Disconnect()

	handler := func(topic string, payload []byte) {
		if err := ingest(s.opts, s.Name(), payload, sink); err != nil {
			s.opts.log.Debug("rejected detector frame",
				logger.String("topic", topic),
				logger.Error(err))
		}
	}
	if err := s.client.Subscribe(ctx, s.topic, s.qos, handler); err != nil {
		return fmt.Errorf("subscribe detector mqtt source: %w", err)
	}

	s.opts.log.Info("mqtt detector source running", logger.String("topic", s.topic))
	<-ctx.Done()
	return nil
}
