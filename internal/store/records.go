package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tobert/tracearc/internal/model"
)

// RecordStore accumulates raw trace records from ingestion sources.
// Records are deduplicated by id, since live sources may redeliver the
// same record (file re-reads, OTLP retries). It implements the
// RecordReceiver contract used by internal/reader and internal/otlpingest.
type RecordStore struct {
	buf  *RingBuffer[model.Record]
	mu   sync.Mutex
	seen map[string]struct{}

	generation atomic.Uint64

	subscriberMu     sync.Mutex
	subscribers      map[int]chan struct{}
	nextSubscriberID int
}

func NewRecordStore(capacity int) *RecordStore {
	return &RecordStore{
		buf:         NewRingBuffer[model.Record](capacity),
		seen:        make(map[string]struct{}),
		subscribers: make(map[int]chan struct{}),
	}
}

// Receive appends records, skipping ids already stored. It bumps the
// generation and notifies subscribers only when something new arrived.
func (s *RecordStore) Receive(_ context.Context, records []model.Record) error {
	accepted := 0

	s.mu.Lock()
	for _, rec := range records {
		if _, dup := s.seen[rec.ID]; dup {
			continue
		}
		s.seen[rec.ID] = struct{}{}
		if evicted, wasFull := s.buf.Add(rec); wasFull {
			// Forget evicted ids so the dedup set stays bounded and a
			// re-sent evicted record can come back.
			delete(s.seen, evicted.ID)
		}
		accepted++
	}
	s.mu.Unlock()

	if accepted > 0 {
		s.generation.Add(uint64(accepted))
		s.notifySubscribers()
	}
	return nil
}

// Records returns a snapshot of stored records oldest-first.
func (s *RecordStore) Records() []model.Record {
	return s.buf.All()
}

// Generation returns the change counter for cheap "did anything arrive"
// checks.
func (s *RecordStore) Generation() uint64 {
	return s.generation.Load()
}

func (s *RecordStore) Len() int {
	return s.buf.Size()
}

func (s *RecordStore) Capacity() int {
	return s.buf.Capacity()
}

// Clear drops all records and dedup state. The generation still advances
// so subscribers notice the reset.
func (s *RecordStore) Clear() {
	s.mu.Lock()
	s.buf.Clear()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	s.generation.Add(1)
	s.notifySubscribers()
}

// Subscribe returns a channel that receives a coalesced signal whenever
// new records arrive, plus an unsubscribe func.
func (s *RecordStore) Subscribe() (<-chan struct{}, func()) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	id := s.nextSubscriberID
	s.nextSubscriberID++

	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.subscriberMu.Lock()
		defer s.subscriberMu.Unlock()
		delete(s.subscribers, id)
	}
	return ch, unsubscribe
}

func (s *RecordStore) notifySubscribers() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Pending signal already queued; coalesce.
		}
	}
}
