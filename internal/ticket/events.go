package ticket

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/logger"
)

// EventType classifies ticket lifecycle events.
type EventType string

const (
	// EventCreated fires when a new ticket enters the registry
	EventCreated EventType = "ticket_created"
	// EventStateChanged fires on every state transition
	EventStateChanged EventType = "ticket_state_changed"
	// EventDeleted fires when a ticket leaves the registry
	EventDeleted EventType = "ticket_deleted"
)

// Event describes one lifecycle transition.
type Event struct {
	Type      EventType
	TicketID  string
	From      State
	To        State
	Timestamp time.Time
}

// Observer receives ticket lifecycle events.
type Observer interface {
	OnEvent(e Event)
	Name() string
}

// Publisher fans events out to subscribed observers. Observers run inline
// and must not block; a panicking observer is contained and logged.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe adds an observer.
func (p *Publisher) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Notify delivers the event to every observer.
func (p *Publisher) Notify(e Event) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, o := range observers {
		func(o Observer) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("observer", o.Name()).
						WithField("panic", r).
						Error("Observer panicked while handling ticket event")
				}
			}()
			o.OnEvent(e)
		}(o)
	}
}

// LoggingObserver logs ticket transitions.
type LoggingObserver struct{}

// NewLoggingObserver creates a logging observer.
func NewLoggingObserver() *LoggingObserver {
	return &LoggingObserver{}
}

// OnEvent handles one event by logging it.
func (o *LoggingObserver) OnEvent(e Event) {
	fields := logrus.Fields{
		"ticket_id": e.TicketID,
		"event":     e.Type,
	}
	if e.From != "" {
		fields["from"] = e.From
	}
	if e.To != "" {
		fields["to"] = e.To
	}

	switch {
	case e.To == StateError:
		logger.WithFields(fields).Error("Ticket entered error state")
	case e.Type == EventStateChanged:
		logger.WithFields(fields).Info("Ticket state changed")
	default:
		logger.WithFields(fields).Debug("Ticket event")
	}
}

// Name returns the observer name.
func (o *LoggingObserver) Name() string { return "logging_observer" }

// MetricsObserver counts lifecycle outcomes.
type MetricsObserver struct {
	mu        sync.RWMutex
	created   int64
	deleted   int64
	ready     int64
	errored   int64
	cancelled int64
}

// NewMetricsObserver creates a metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles one event by updating counters.
func (o *MetricsObserver) OnEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e.Type {
	case EventCreated:
		o.created++
	case EventDeleted:
		o.deleted++
	case EventStateChanged:
		switch e.To {
		case StateReady:
			o.ready++
		case StateError:
			o.errored++
		case StateCancelled:
			o.cancelled++
		}
	}
}

// Name returns the observer name.
func (o *MetricsObserver) Name() string { return "metrics_observer" }

// Metrics returns the current counters.
func (o *MetricsObserver) Metrics() map[string]int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return map[string]int64{
		"tickets_created":   o.created,
		"tickets_deleted":   o.deleted,
		"tickets_ready":     o.ready,
		"tickets_errored":   o.errored,
		"tickets_cancelled": o.cancelled,
	}
}
