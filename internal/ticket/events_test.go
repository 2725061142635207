package ticket

import (
	"testing"
	"time"
)

type panickyObserver struct{}

func (panickyObserver) OnEvent(Event) { panic("bad observer") }
func (panickyObserver) Name() string  { return "panicky" }

func TestPublisherContainsObserverPanics(t *testing.T) {
	pub := NewPublisher()
	metrics := NewMetricsObserver()
	pub.Subscribe(panickyObserver{})
	pub.Subscribe(metrics)

	// Must not panic, and must still reach the second observer.
	pub.Notify(Event{Type: EventCreated, TicketID: "t1", Timestamp: time.Now()})

	if got := metrics.Metrics()["tickets_created"]; got != 1 {
		t.Errorf("tickets_created = %d, want 1", got)
	}
}

func TestMetricsObserverCounts(t *testing.T) {
	m := NewMetricsObserver()

	m.OnEvent(Event{Type: EventCreated})
	m.OnEvent(Event{Type: EventStateChanged, To: StateReady})
	m.OnEvent(Event{Type: EventStateChanged, To: StateError})
	m.OnEvent(Event{Type: EventStateChanged, To: StateCancelled})
	m.OnEvent(Event{Type: EventStateChanged, To: StateProcessingDataset})
	m.OnEvent(Event{Type: EventDeleted})

	got := m.Metrics()
	want := map[string]int64{
		"tickets_created":   1,
		"tickets_deleted":   1,
		"tickets_ready":     1,
		"tickets_errored":   1,
		"tickets_cancelled": 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d", k, got[k], v)
		}
	}
}

func TestStoreNotifiesLifecycleEvents(t *testing.T) {
	pub := NewPublisher()
	metrics := NewMetricsObserver()
	pub.Subscribe(metrics)

	store := NewStore(&fakeFiles{}, pub)
	store.CreateOrUpdate("t1", CreateOptions{})
	store.SetReady("t1", "/out/output.zip")
	store.Delete("t1")

	got := metrics.Metrics()
	if got["tickets_created"] != 1 || got["tickets_ready"] != 1 || got["tickets_deleted"] != 1 {
		t.Errorf("metrics = %v", got)
	}
}
