package ticket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/annotation"
	"go-dataset-converter/internal/logger"
)

// Files abstracts the per-ticket directory layout the store owns. A ticket
// exclusively owns its directory and every file beneath it until deleted.
type Files interface {
	TicketDir(id string) string
	Remove(id string) error
}

// Store is the single authority for ticket state. One mutex guards the
// whole registry; every operation takes it, and no live references escape.
type Store struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	files   Files
	events  *Publisher
}

// NewStore creates an empty registry. events may be nil.
func NewStore(files Files, events *Publisher) *Store {
	return &Store{
		tickets: make(map[string]*Ticket),
		files:   files,
		events:  events,
	}
}

// CreateOptions carries the request metadata recorded when a ticket is
// created or refreshed by a new upload.
type CreateOptions struct {
	InputFormat  string
	TargetFormat annotation.TargetFormat
	FeatureType  FeatureType
	RawParams    json.RawMessage
	UploadPath   string
}

// CreateOrUpdate returns the ticket for id, creating it in the uploading
// state if absent, and records the request metadata either way.
func (s *Store) CreateOrUpdate(id string, opts CreateOptions) Snapshot {
	now := time.Now()

	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		t = &Ticket{
			ID:        id,
			CreatedAt: now,
			State:     StateUploading,
		}
		s.tickets[id] = t
	}
	t.LastSeen = now
	if opts.InputFormat != "" {
		t.InputFormat = opts.InputFormat
	}
	if opts.TargetFormat != "" {
		t.TargetFormat = opts.TargetFormat
	}
	if opts.FeatureType != "" {
		t.FeatureType = opts.FeatureType
	}
	if opts.RawParams != nil {
		t.RawParams = append(json.RawMessage(nil), opts.RawParams...)
	}
	if opts.UploadPath != "" {
		t.UploadPath = opts.UploadPath
	}
	snap := snapshotOf(t)
	s.mu.Unlock()

	if !ok {
		s.notify(Event{Type: EventCreated, TicketID: id, To: StateUploading, Timestamp: now})
	}
	return snap
}

// Mutate runs fn on the ticket under the store lock. It returns false when
// the ticket does not exist. fn must not block or perform I/O.
func (s *Store) Mutate(id string, fn func(*Ticket)) bool {
	now := time.Now()

	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	from := t.State
	fn(t)
	t.LastSeen = now
	to := t.State
	s.mu.Unlock()

	if from != to {
		s.notify(Event{Type: EventStateChanged, TicketID: id, From: from, To: to, Timestamp: now})
	}
	return true
}

// AddBytes increments the received byte counter.
func (s *Store) AddBytes(id string, n int64) {
	s.Mutate(id, func(t *Ticket) {
		t.BytesReceived += n
	})
}

// SetTotalBytes records the expected upload size once known.
func (s *Store) SetTotalBytes(id string, total int64) {
	s.Mutate(id, func(t *Ticket) {
		t.BytesTotal = total
	})
}

// SetState moves the ticket to state.
func (s *Store) SetState(id string, state State) {
	s.Mutate(id, func(t *Ticket) {
		t.State = state
	})
}

// MarkUploaded transitions to uploaded and pins the final byte total.
func (s *Store) MarkUploaded(id string, bytesTotal int64) {
	s.Mutate(id, func(t *Ticket) {
		t.State = StateUploaded
		if bytesTotal > 0 {
			t.BytesTotal = bytesTotal
		}
	})
}

// MarkError transitions to the error state with a message.
func (s *Store) MarkError(id string, message string) {
	s.Mutate(id, func(t *Ticket) {
		t.State = StateError
		t.ErrorMessage = message
	})
}

// SetLabelMeta attaches the early label summary and transitions to
// labels_meta_extracted. Extraction races the full conversion, so the
// transition is skipped once the ticket has moved on to processing or a
// terminal state; the metadata itself is always recorded.
func (s *Store) SetLabelMeta(id string, meta *annotation.Meta) {
	s.Mutate(id, func(t *Ticket) {
		t.LabelMeta = meta
		if t.State != StateProcessingDataset && !t.State.Terminal() {
			t.State = StateLabelsMetaExtracted
		}
	})
}

// SetReady records the output archive path and transitions to ready.
func (s *Store) SetReady(id string, outputZipPath string) {
	s.Mutate(id, func(t *Ticket) {
		t.OutputZipPath = outputZipPath
		t.State = StateReady
	})
}

// Snapshot returns a consistent copy of the ticket, refreshing last_seen so
// a polling client keeps its ticket alive.
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return Snapshot{}, false
	}
	t.LastSeen = time.Now()
	return snapshotOf(t), true
}

// Exists reports whether the ticket is still registered. Background jobs
// use it as the cancellation check before writes.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tickets[id]
	return ok
}

// Delete removes the ticket from the registry and returns whether it was
// present. Files are untouched; use DeleteWithFiles for full cleanup.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.tickets[id]
	delete(s.tickets, id)
	s.mu.Unlock()

	if ok {
		s.notify(Event{Type: EventDeleted, TicketID: id, Timestamp: time.Now()})
	}
	return ok
}

// DeleteWithFiles removes the ticket and its directory tree. File removal
// happens outside the lock; failures are logged, not surfaced, since any
// background job racing this deletion already tolerates missing files.
func (s *Store) DeleteWithFiles(id string) {
	if !s.Delete(id) {
		return
	}
	if err := s.files.Remove(id); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"ticket_id": id,
		}).Warn("Failed to delete ticket directory tree")
	}
}

// SweepExpired removes every ticket whose last_seen is older than ttl,
// along with its files, and returns the removed ids. The candidate list is
// decided under the lock; deletion runs outside it.
func (s *Store) SweepExpired(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var expired []string
	for id, t := range s.tickets {
		if t.LastSeen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.DeleteWithFiles(id)
	}
	return expired
}

// Len reports how many tickets are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

func (s *Store) notify(e Event) {
	if s.events != nil {
		s.events.Notify(e)
	}
}
