package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/okn-go/internal/logger"
)

// DefaultBufferSize is the event channel capacity when none is configured.
const DefaultBufferSize = 1024

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Metrics    DropRecorder
	Logger     logger.Logger
}

// EventBus delivers events to consumers in publish order on a single
// dispatcher goroutine.
type EventBus struct {
	eventChan chan StateEvent

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []EventConsumer
	stats     EventBusStats
	metrics   DropRecorder
	logger    logger.Logger
}

// GetLogger returns the events package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}

// New creates an event bus. The dispatcher starts with the first consumer.
func New(cfg Config) *EventBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		eventChan: make(chan StateEvent, cfg.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}

	eb.logger.Debug("event bus created", logger.Int("buffer_size", cfg.BufferSize))
	return eb
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.ctx.Err() != nil {
		return fmt.Errorf("event bus is shut down")
	}

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	eb.logger.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if !eb.running.Swap(true) {
		eb.wg.Add(1)
		go eb.dispatch()
	}

	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event StateEvent) bool {
	if eb == nil || !eb.running.Load() {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		if eb.metrics != nil {
			eb.metrics.RecordEventDropped()
		}
		eb.logger.Debug("event dropped due to full buffer",
			logger.String("kind", string(event.Kind)))
		return false
	}
}

func (eb *EventBus) dispatch() {
	defer eb.wg.Done()

	for {
		select {
		case <-eb.ctx.Done():
			return
		case event := <-eb.eventChan:
			eb.processEvent(event)
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event StateEvent) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					eb.logger.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				eb.logger.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&eb.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops the dispatcher, waiting at most timeout for it to exit.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil {
		return nil
	}

	eb.mu.Lock()
	eb.running.Store(false)
	eb.cancel()
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Debug("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
