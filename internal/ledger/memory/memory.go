// Package memory is an in-memory category ledger for tests and local
// development without Google credentials.
package memory

import (
	"context"
	"strings"
	"sync"

	"reactorops/internal/ledger"
)

// Row mirrors one ledger row: id, tag name, zeroed baseline fields.
type Row struct {
	ID   int
	Name string
}

type Ledger struct {
	mu   sync.Mutex
	rows []Row
}

var (
	_ ledger.TagReader = (*Ledger)(nil)
	_ ledger.TagWriter = (*Ledger)(nil)
)

func New(seed ...string) *Ledger {
	l := &Ledger{}
	for _, name := range seed {
		l.rows = append(l.rows, Row{ID: len(l.rows) + 1, Name: name})
	}
	return l
}

func (l *Ledger) ListTags(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.rows))
	for _, r := range l.rows {
		out = append(out, r.Name)
	}
	return out, nil
}

func (l *Ledger) UpsertTags(_ context.Context, tags []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	present := make(map[string]struct{}, len(l.rows))
	for _, r := range l.rows {
		present[r.Name] = struct{}{}
	}
	var added []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := present[tag]; ok {
			continue
		}
		present[tag] = struct{}{}
		l.rows = append(l.rows, Row{ID: len(l.rows) + 1, Name: tag})
		added = append(added, tag)
	}
	return added, nil
}

// Rows returns a copy of the ledger contents, for assertions.
func (l *Ledger) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}
