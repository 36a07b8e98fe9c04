package crawler

import (
	"context"
	"fmt"
)

// MultiSink appends every batch to each of its sinks in order. It stops at
// the first failing sink so later sinks never hold records the earlier ones
// rejected.
type MultiSink []Sink

// Append implements Sink.
func (m MultiSink) Append(ctx context.Context, page int, records []Record) error {
	for i, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, page, records); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
