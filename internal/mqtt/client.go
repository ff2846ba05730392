package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/observability/metrics"
)

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	metrics         *metrics.MQTTMetrics

	mu            sync.Mutex
	subscriptions map[string]subscription
}

// NewClient creates a new MQTT client with the provided configuration.
// metrics may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &client{
		config:        cfg,
		metrics:       m,
		subscriptions: make(map[string]subscription),
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		c.mu.Unlock()
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", since)
	}
	c.lastConnAttempt = time.Now()
	c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", logger.RedactURL(c.config.Broker)).
			Build()
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	internal := paho.NewClient(opts)
	c.mu.Lock()
	c.internalClient = internal
	c.mu.Unlock()

	token := internal.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		c.incrementErrors()
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("broker", logger.RedactURL(c.config.Broker)).
			Build()
	}

	return nil
}

// Subscribe registers handler for topic and subscribes immediately when connected.
func (c *client) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("topic", topic).
			Build()
	}

	token := internal.Subscribe(topic, qos, c.deliver(handler))
	if err := waitToken(ctx, token, c.config.SubscribeTimeout); err != nil {
		c.incrementErrors()
		return errors.New(fmt.Errorf("subscribe error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("topic", topic).
			Build()
	}
	GetLogger().Info("Subscribed to topic", logger.String("topic", topic), logger.Int("qos", int(qos)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal != nil && internal.IsConnectionOpen() {
		internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	}
	c.updateConnectionStatus(false)
}

func (c *client) deliver(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if c.metrics != nil {
			c.metrics.IncrementMessagesReceived(len(msg.Payload()))
		}
		handler(msg.Topic(), msg.Payload())
	}
}

// onConnect restores subscriptions, which a clean session drops on reconnect.
func (c *client) onConnect(pc paho.Client) {
	GetLogger().Info("Connected to MQTT broker", logger.String("broker", logger.RedactURL(c.config.Broker)))
	c.updateConnectionStatus(true)

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, s := range c.subscriptions {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		token := pc.Subscribe(topic, s.qos, c.deliver(s.handler))
		go func(topic string) {
			if !token.WaitTimeout(c.config.SubscribeTimeout) || token.Error() != nil {
				c.incrementErrors()
				GetLogger().Warn("Failed to restore subscription", logger.String("topic", topic), logger.Error(token.Error()))
			}
		}(topic)
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("Connection to MQTT broker lost",
		logger.String("broker", logger.RedactURL(c.config.Broker)),
		logger.Error(err))
	c.updateConnectionStatus(false)
	c.incrementErrors()
}

func (c *client) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	GetLogger().Debug("Reconnecting to MQTT broker")
	if c.metrics != nil {
		c.metrics.IncrementReconnectAttempts()
	}
}

func (c *client) updateConnectionStatus(connected bool) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(connected)
	}
}

func (c *client) incrementErrors() {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
}

// waitToken waits for token to complete, for timeout to pass or for ctx to end.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
