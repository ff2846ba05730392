package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ProbeResult is the outcome of one stage of a broker connectivity check.
type ProbeResult struct {
	Success   bool      `json:"success"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeStage represents a stage in the connectivity check.
type ProbeStage int

const (
	DNSResolution ProbeStage = iota
	TCPConnection
	MQTTConnection
)

// String returns the string representation of a probe stage
func (s ProbeStage) String() string {
	switch s {
	case DNSResolution:
		return "DNS Resolution"
	case TCPConnection:
		return "TCP Connection"
	case MQTTConnection:
		return "MQTT Connection"
	default:
		return "Unknown Stage"
	}
}

const (
	dnsTimeout  = 5 * time.Second
	tcpTimeout  = 5 * time.Second
	defaultPort = "1883"
)

// Probe checks the broker stage by stage and sends each result on results.
// It stops at the first failing stage and closes results when done.
func Probe(ctx context.Context, cfg Config, results chan<- ProbeResult) {
	defer close(results)

	host, hostPort, err := brokerAddress(cfg.Broker)
	if err != nil {
		results <- failed(DNSResolution, "Invalid broker URL", err)
		return
	}

	stages := []struct {
		stage ProbeStage
		run   func(context.Context) (string, error)
	}{
		{DNSResolution, func(ctx context.Context) (string, error) { return resolve(ctx, host) }},
		{TCPConnection, func(ctx context.Context) (string, error) { return dial(ctx, hostPort) }},
		{MQTTConnection, func(ctx context.Context) (string, error) { return connect(ctx, cfg) }},
	}

	for _, s := range stages {
		msg, err := s.run(ctx)
		if err != nil {
			results <- failed(s.stage, msg, err)
			return
		}
		results <- ProbeResult{Success: true, Stage: s.stage.String(), Message: msg, Timestamp: time.Now()}
	}
}

func failed(stage ProbeStage, msg string, err error) ProbeResult {
	return ProbeResult{
		Stage:     stage.String(),
		Message:   msg,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

func resolve(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return fmt.Sprintf("Using IP address %s", host), nil
	}
	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return fmt.Sprintf("Failed to resolve hostname %s", host), err
	}
	return fmt.Sprintf("Resolved %s to %s", host, addrs[0]), nil
}

func dial(ctx context.Context, hostPort string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tcpTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return fmt.Sprintf("Failed to establish TCP connection to %s", hostPort), err
	}
	_ = conn.Close()
	return fmt.Sprintf("Established TCP connection to %s", hostPort), nil
}

func connect(ctx context.Context, cfg Config) (string, error) {
	cfg.ReconnectCooldown = 0
	c, err := NewClient(cfg, nil)
	if err != nil {
		return "Invalid client configuration", err
	}
	defer c.Disconnect()
	if err := c.Connect(ctx); err != nil {
		return "Failed to connect to MQTT broker", err
	}
	return "Connected to MQTT broker", nil
}

// brokerAddress returns the host and host:port of a broker URL such as
// tcp://localhost:1883. The port defaults to 1883.
func brokerAddress(broker string) (host, hostPort string, err error) {
	u, err := url.Parse(broker)
	if err != nil {
		return "", "", err
	}
	host = u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("broker URL %q has no host", broker)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return host, net.JoinHostPort(host, port), nil
}
