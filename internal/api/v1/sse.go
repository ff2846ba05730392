package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/events"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/session"
)

const (
	sseClientBuffer = 64
	sseWriteTimeout = 10 * time.Second
)

// SSEStateData is the payload of a "state" stream event.
type SSEStateData struct {
	Kind      string           `json:"kind"`
	State     session.Snapshot `json:"state"`
	Timestamp time.Time        `json:"timestamp"`
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID      string
	Channel chan events.StateEvent
	Done    chan struct{}
	once    sync.Once
}

func (c *SSEClient) close() {
	c.once.Do(func() { close(c.Done) })
}

// SSEManager fans state events out to stream clients. It implements
// events.EventConsumer.
type SSEManager struct {
	clients   map[string]*SSEClient
	mutex     sync.RWMutex
	log       logger.Logger
	heartbeat time.Duration
}

// NewSSEManager creates a new SSE manager
func NewSSEManager() *SSEManager {
	return &SSEManager{
		clients:   make(map[string]*SSEClient),
		log:       GetLogger(),
		heartbeat: DefaultHeartbeat,
	}
}

// Name implements events.EventConsumer.
func (m *SSEManager) Name() string { return "sse" }

// ProcessEvent implements events.EventConsumer. A client whose buffer is
// full is disconnected rather than waited for.
func (m *SSEManager) ProcessEvent(event events.StateEvent) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for id, client := range m.clients {
		select {
		case client.Channel <- event:
		default:
			m.log.Warn("SSE client too slow, disconnecting", logger.String("client_id", id))
			client.close()
		}
	}
	return nil
}

// AddClient registers a new SSE client
func (m *SSEManager) AddClient(client *SSEClient) {
	m.mutex.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mutex.Unlock()
	m.log.Debug("SSE client connected", logger.String("client_id", client.ID), logger.Int("total", total))
}

// RemoveClient removes an SSE client
func (m *SSEManager) RemoveClient(clientID string) {
	m.mutex.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mutex.Unlock()
	if exists {
		client.close()
		m.log.Debug("SSE client disconnected", logger.String("client_id", clientID), logger.Int("total", total))
	}
}

// CloseAll disconnects every client.
func (m *SSEManager) CloseAll() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, client := range m.clients {
		client.close()
	}
}

// GetClientCount returns the number of connected clients
func (m *SSEManager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// StreamState streams session snapshots as Server-Sent Events. The current
// snapshot is sent first, then one event per published change, with
// heartbeat comments in between.
func (c *Controller) StreamState(ctx echo.Context) error {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	client := &SSEClient{
		ID:      uuid.NewString(),
		Channel: make(chan events.StateEvent, sseClientBuffer),
		Done:    make(chan struct{}),
	}
	c.sseManager.AddClient(client)
	defer c.sseManager.RemoveClient(client.ID)

	initial := events.StateEvent{Kind: "initial", Snapshot: c.Session.State(), Timestamp: time.Now()}
	if err := c.sendSSEMessage(ctx, "state", initial); err != nil {
		return nil
	}

	ticker := time.NewTicker(c.sseManager.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event := <-client.Channel:
			if err := c.sendSSEMessage(ctx, "state", event); err != nil {
				c.log.Debug("SSE send failed", logger.String("client_id", client.ID), logger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := c.sendSSEComment(ctx, "heartbeat"); err != nil {
				return nil
			}
		case <-client.Done:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		case <-c.ctx.Done():
			return nil
		}
	}
}

func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data events.StateEvent) error {
	payload, err := json.Marshal(SSEStateData{
		Kind:      string(data.Kind),
		State:     data.Snapshot,
		Timestamp: data.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	return c.writeSSE(ctx, fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", event, data.Snapshot.Sequence, payload))
}

func (c *Controller) sendSSEComment(ctx echo.Context, comment string) error {
	return c.writeSSE(ctx, ": "+comment+"\n\n")
}

func (c *Controller) writeSSE(ctx echo.Context, message string) error {
	rc := http.NewResponseController(ctx.Response().Writer)
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))

	if _, err := ctx.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	ctx.Response().Flush()
	return nil
}
