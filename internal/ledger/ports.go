// Package ledger defines the outbound ports for the external category
// ledger: an append-only table of {id, name, zeroed baseline financial
// fields}. The core only ever inserts rows for previously-unseen tags; it
// never updates or deletes them.
package ledger

import "context"

type (
	// TagReader lists the tag names already present in the ledger.
	TagReader interface {
		ListTags(ctx context.Context) ([]string, error)
	}

	// TagWriter appends rows for tags not yet present. Implementations must
	// be idempotent on tag name: re-sending a tag that already has a row is
	// a no-op, never a duplicate row. Row ids are assigned by the adapter
	// at insert time, never by read-max-and-increment.
	TagWriter interface {
		UpsertTags(ctx context.Context, tags []string) (added []string, err error)
	}
)
