package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GenerationEvent represents a generation lifecycle event
type GenerationEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	UserID       string                 `json:"user_id"`
	Model        string                 `json:"model"`
	Duration     time.Duration          `json:"duration"`
	Success      bool                   `json:"success"`
	ErrorType    string                 `json:"error_type,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of generation event
type EventType string

const (
	// GenerationStarted when a request is sent to the transformer
	GenerationStarted EventType = "generation_started"
	// GenerationCompleted when a result was stored
	GenerationCompleted EventType = "generation_completed"
	// GenerationFailed when the attempt ended in an error state
	GenerationFailed EventType = "generation_failed"
	// ResultInlined when a remote result was converted to a data URL
	ResultInlined EventType = "result_inlined"
	// ResultInlineFailed when a remote result could not be fetched
	ResultInlineFailed EventType = "result_inline_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event GenerationEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event GenerationEvent)
}

// LoggingObserver logs generation events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles generation events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event GenerationEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"user_id":    event.UserID,
		"model":      event.Model,
		"duration":   event.Duration,
		"success":    event.Success,
	}

	if event.ErrorType != "" {
		fields["error_type"] = event.ErrorType
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case GenerationStarted:
		entry.Info("Generation started")
	case GenerationCompleted:
		entry.Info("Generation completed")
	case GenerationFailed:
		entry.Error("Generation failed")
	case ResultInlined:
		entry.Debug("Result inlined")
	case ResultInlineFailed:
		entry.Warn("Result inline failed, keeping remote URL")
	default:
		entry.Info("Generation event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event concurrently
func (p *EventPublisher) NotifyObservers(ctx context.Context, event GenerationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification sent so far was handled
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
