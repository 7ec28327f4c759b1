package ports

import (
	"context"

	"wjjfit/domain/event"
)

// EventSource yields the event records of a named record set stored at a
// locator (a file path, a database, ...).
type EventSource interface {
	// Scan calls fn once per record, in storage order. A missing record set
	// is reported as a NOT_FOUND error before fn is ever called. Scan stops
	// at the first error returned by fn and returns it.
	Scan(ctx context.Context, locator, recordSet string, fn func(event.Record) error) error
}
