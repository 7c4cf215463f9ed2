package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetMetadata() map[string]interface{}
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event of the given type
func NewBaseEvent(eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:   GenerateEventID(),
		EventType: eventType,
		Timestamp: at,
	}
}

func (e *BaseEvent) GetEventID() string                  { return e.EventID }
func (e *BaseEvent) GetEventType() string                { return e.EventType }
func (e *BaseEvent) GetTimestamp() time.Time             { return e.Timestamp }
func (e *BaseEvent) GetMetadata() map[string]interface{} { return e.Metadata }

// ===============================
// EVENT BUS INTERFACE
// ===============================

// ErrQueueFull is returned by PublishAsync when the buffer has no room.
var ErrQueueFull = errors.New("event queue is full")

// ErrBusStopped is returned when publishing to a stopped bus.
var ErrBusStopped = errors.New("event bus is stopped")

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	// Publish runs every matching handler before returning.
	Publish(ctx context.Context, event Event) error
	// PublishAsync queues the event for the worker pool.
	PublishAsync(ctx context.Context, event Event) error

	Subscribe(eventType string, handler EventHandler) error
	// SubscribePattern accepts "*" or a "prefix.*" wildcard.
	SubscribePattern(pattern string, handler EventHandler) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stats() EventBusStats
}

// EventHandler represents an event handler
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// GetHandlerID implements EventHandler
func (f EventHandlerFunc) GetHandlerID() string {
	return f.ID
}

// NewEventHandlerFunc creates an EventHandler from a function
func NewEventHandlerFunc(id string, fn func(ctx context.Context, event Event) error) EventHandler {
	return EventHandlerFunc{ID: id, Func: fn}
}

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished int64         `json:"events_published"`
	EventsProcessed int64         `json:"events_processed"`
	EventsFailed    int64         `json:"events_failed"`
	HandlersCount   int           `json:"handlers_count"`
	QueueDepth      int           `json:"queue_depth"`
	Uptime          time.Duration `json:"uptime"`
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int           `json:"buffer_size" yaml:"buffer_size"`
	WorkerCount    int           `json:"worker_count" yaml:"worker_count"`
	HandlerTimeout time.Duration `json:"handler_timeout" yaml:"handler_timeout"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:     256,
		WorkerCount:    2,
		HandlerTimeout: 10 * time.Second,
	}
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

type inMemoryEventBus struct {
	mu              sync.RWMutex
	handlers        map[string][]EventHandler
	patternHandlers map[string][]EventHandler
	queue           chan eventMessage
	logger          *zap.Logger
	config          EventBusConfig
	startTime       time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	published atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

type eventMessage struct {
	ctx   context.Context
	event Event
}

// NewEventBus creates an in-memory event bus. Call Start before using
// PublishAsync; Publish works without workers.
func NewEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = DefaultEventBusConfig().HandlerTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &inMemoryEventBus{
		handlers:        make(map[string][]EventHandler),
		patternHandlers: make(map[string][]EventHandler),
		queue:           make(chan eventMessage, config.BufferSize),
		logger:          logger,
		config:          *config,
		startTime:       time.Now(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Publish publishes an event synchronously
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if b.ctx.Err() != nil {
		return ErrBusStopped
	}

	b.published.Add(1)
	if err := b.processEvent(ctx, event); err != nil {
		b.failed.Add(1)
		b.logger.Error("Failed to process event",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
		return err
	}
	b.processed.Add(1)
	return nil
}

// PublishAsync publishes an event asynchronously
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if b.ctx.Err() != nil {
		return ErrBusStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case b.queue <- eventMessage{ctx: context.WithoutCancel(ctx), event: event}:
		b.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Subscribe subscribes to events of a specific type
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// SubscribePattern subscribes to events matching a pattern
func (b *inMemoryEventBus) SubscribePattern(pattern string, handler EventHandler) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	b.patternHandlers[pattern] = append(b.patternHandlers[pattern], handler)
	b.mu.Unlock()

	b.logger.Debug("Pattern handler subscribed",
		zap.String("pattern", pattern),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// Start starts the event bus workers
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}

	b.logger.Info("Starting event bus", zap.Int("worker_count", b.config.WorkerCount))
	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	return nil
}

// Stop drains queued events, then stops the workers.
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.logger.Info("Stopping event bus")
		b.cancel()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			b.logger.Info("Event bus stopped")
		case <-ctx.Done():
			b.logger.Warn("Event bus stop timeout")
			err = ctx.Err()
		}
	})
	return err
}

// Stats returns event bus statistics
func (b *inMemoryEventBus) Stats() EventBusStats {
	b.mu.RLock()
	count := 0
	for _, hs := range b.handlers {
		count += len(hs)
	}
	for _, hs := range b.patternHandlers {
		count += len(hs)
	}
	b.mu.RUnlock()

	return EventBusStats{
		EventsPublished: b.published.Load(),
		EventsProcessed: b.processed.Load(),
		EventsFailed:    b.failed.Load(),
		HandlersCount:   count,
		QueueDepth:      len(b.queue),
		Uptime:          time.Since(b.startTime),
	}
}

func (b *inMemoryEventBus) worker(workerID int) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-b.queue:
			b.handleQueued(workerID, msg)
		case <-b.ctx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case msg := <-b.queue:
					b.handleQueued(workerID, msg)
				default:
					return
				}
			}
		}
	}
}

func (b *inMemoryEventBus) handleQueued(workerID int, msg eventMessage) {
	if err := b.processEvent(msg.ctx, msg.event); err != nil {
		b.failed.Add(1)
		b.logger.Error("Failed to process event",
			zap.Int("worker_id", workerID),
			zap.String("event_id", msg.event.GetEventID()),
			zap.String("event_type", msg.event.GetEventType()),
			zap.Error(err),
		)
		return
	}
	b.processed.Add(1)
}

func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	eventType := event.GetEventType()

	b.mu.RLock()
	var matched []EventHandler
	matched = append(matched, b.handlers[eventType]...)
	for pattern, hs := range b.patternHandlers {
		if matchesPattern(eventType, pattern) {
			matched = append(matched, hs...)
		}
	}
	b.mu.RUnlock()

	if len(matched) == 0 {
		return nil
	}

	var errs []error
	for _, handler := range matched {
		if err := b.executeHandler(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", handler.GetHandlerID(), err))
		}
	}
	return errors.Join(errs...)
}

// executeHandler executes a single handler with timeout and recovery
func (b *inMemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler_id", handler.GetHandlerID()),
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, event)
}

func matchesPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(eventType, prefix)
	}
	return eventType == pattern
}

// ===============================
// UTILITY FUNCTIONS
// ===============================

// GenerateEventID returns a random event id
func GenerateEventID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	return "evt_" + id.String()
}
