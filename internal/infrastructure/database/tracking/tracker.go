// Package tracking keeps the identity map and change detection behind the repositories'
// SaveChanges: entities handed out by a repository are tracked, and whatever differs from the
// snapshot taken when they were loaded is written on the next commit.
package tracking

import (
	"sort"
	"sync"

	"northwind/internal/domain/customer"
)

type entry struct {
	current  *customer.Customer
	original customer.Customer
}

func (e *entry) modified() bool {
	return *e.current != e.original
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Attach resolves a freshly loaded row against the identity map. A tracked entity with pending
// changes is returned untouched; an unmodified one is refreshed from the row.
func (t *Tracker) Attach(loaded *customer.Customer) *customer.Customer {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[loaded.CustomerID]
	if !ok {
		t.entries[loaded.CustomerID] = &entry{current: loaded, original: *loaded}
		return loaded
	}

	if !e.modified() {
		*e.current = *loaded
		e.original = *loaded
	}
	return e.current
}

func (t *Tracker) Detach(customerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, customerID)
}

// Changes returns the modified entities ordered by id.
func (t *Tracker) Changes() []*customer.Customer {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := make([]*customer.Customer, 0)
	for _, e := range t.entries {
		if e.modified() {
			changed = append(changed, e.current)
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		return changed[i].CustomerID < changed[j].CustomerID
	})
	return changed
}

// Accept marks the given entities as committed.
func (t *Tracker) Accept(committed []*customer.Customer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range committed {
		if e, ok := t.entries[c.CustomerID]; ok && e.current == c {
			e.original = *c
		}
	}
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
