package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Batch is one Append call as the store received it.
type Batch struct {
	Page    int
	Records []crawler.Record
}

// RecordStore is an append-only crawler.Sink that keeps every batch in order.
type RecordStore struct {
	mu      sync.Mutex
	batches []Batch
}

// NewRecordStore returns an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append implements crawler.Sink.
func (s *RecordStore) Append(ctx context.Context, page int, records []crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, Batch{Page: page, Records: append([]crawler.Record(nil), records...)})
	return nil
}

// Records returns every stored record in append order.
func (s *RecordStore) Records() []crawler.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []crawler.Record
	for _, b := range s.batches {
		out = append(out, b.Records...)
	}
	return out
}

// Batches returns a snapshot of the appended batches.
func (s *RecordStore) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	return out
}
