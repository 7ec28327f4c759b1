package event

import (
	"context"
	"fmt"

	"wjjfit/internal/errors"
)

// MemorySource serves record sets held in memory, keyed by locator then
// record-set name.
type MemorySource struct {
	sets map[string]map[string][]Record
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{sets: make(map[string]map[string][]Record)}
}

// Put stores records under (locator, recordSet), replacing any previous set
func (s *MemorySource) Put(locator, recordSet string, records []Record) {
	if s.sets[locator] == nil {
		s.sets[locator] = make(map[string][]Record)
	}
	s.sets[locator][recordSet] = records
}

// Scan implements ports.EventSource
func (s *MemorySource) Scan(ctx context.Context, locator, recordSet string, fn func(Record) error) error {
	records, ok := s.sets[locator][recordSet]
	if !ok {
		return errors.NotFound(fmt.Sprintf("record set %s in %s", recordSet, locator))
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
