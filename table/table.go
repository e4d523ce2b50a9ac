// Package table is the row and selection model behind every panel list.
//
// Rows are identified by a key derived from the row itself, so selection and
// lookups never depend on how the rows are rendered. A Table is not safe for
// concurrent use; callers guard it with their own lock.
package table

import "github.com/pkg/errors"

// ErrUnknownRow is returned when a key does not name a row of the table.
var ErrUnknownRow = errors.New("no such row")

// Mode controls how Toggle treats the other rows.
type Mode int

const (
	// Single allows at most one selected row.
	Single Mode = iota
	// Multi toggles rows independently.
	Multi
)

// Row is a row as handed out to views.
type Row[T any] struct {
	Key      string `json:"key"`
	Selected bool   `json:"selected"`
	Data     T      `json:"data"`
}

type Table[T any] struct {
	mode     Mode
	key      func(T) string
	rows     []T
	index    map[string]int
	selected map[string]bool

	reserved uint64
	applied  uint64
}

// New returns an empty table keyed by key.
func New[T any](mode Mode, key func(T) string) *Table[T] {
	return &Table[T]{
		mode:     mode,
		key:      key,
		index:    map[string]int{},
		selected: map[string]bool{},
	}
}

// Replace swaps in rows and clears the selection. Rows with a key that was
// already seen are dropped.
func (t *Table[T]) Replace(rows []T) {
	t.rows = make([]T, 0, len(rows))
	t.index = make(map[string]int, len(rows))
	t.selected = map[string]bool{}
	for _, r := range rows {
		k := t.key(r)
		if _, ok := t.index[k]; ok {
			continue
		}
		t.index[k] = len(t.rows)
		t.rows = append(t.rows, r)
	}
}

// Reserve hands out a ticket for a rebuild about to start.
func (t *Table[T]) Reserve() uint64 {
	t.reserved++
	return t.reserved
}

// Commit replaces the rows if no rebuild started after ticket has committed
// already. It reports whether rows were applied.
func (t *Table[T]) Commit(ticket uint64, rows []T) bool {
	if ticket <= t.applied {
		return false
	}
	t.applied = ticket
	t.Replace(rows)
	return true
}

// Stale reports whether a rebuild newer than ticket has been reserved.
func (t *Table[T]) Stale(ticket uint64) bool {
	return ticket < t.reserved
}

// Clear drops every row.
func (t *Table[T]) Clear() {
	t.Replace(nil)
}

func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in display order.
func (t *Table[T]) Rows() []T {
	out := make([]T, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *Table[T]) Get(key string) (T, bool) {
	i, ok := t.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.rows[i], true
}

// Update applies fn to the row with the given key in place.
func (t *Table[T]) Update(key string, fn func(*T)) error {
	i, ok := t.index[key]
	if !ok {
		return errors.Wrap(ErrUnknownRow, key)
	}
	fn(&t.rows[i])
	return nil
}

// UpdateAll applies fn to every row in place.
func (t *Table[T]) UpdateAll(fn func(*T)) {
	for i := range t.rows {
		fn(&t.rows[i])
	}
}

// Toggle flips the selection of the row with the given key and reports
// whether it is now selected. In Single mode selecting a row deselects the
// others.
func (t *Table[T]) Toggle(key string) (bool, error) {
	if _, ok := t.index[key]; !ok {
		return false, errors.Wrap(ErrUnknownRow, key)
	}
	if t.selected[key] {
		delete(t.selected, key)
		return false, nil
	}
	if t.mode == Single {
		t.selected = map[string]bool{}
	}
	t.selected[key] = true
	return true, nil
}

// Select marks the row selected, regardless of its current state.
func (t *Table[T]) Select(key string) error {
	if t.selected[key] {
		return nil
	}
	_, err := t.Toggle(key)
	return err
}

func (t *Table[T]) ClearSelection() {
	t.selected = map[string]bool{}
}

func (t *Table[T]) IsSelected(key string) bool {
	return t.selected[key]
}

// Selected returns the selected rows in display order.
func (t *Table[T]) Selected() []T {
	var out []T
	for _, r := range t.rows {
		if t.selected[t.key(r)] {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first selected row.
func (t *Table[T]) First() (T, bool) {
	for _, r := range t.rows {
		if t.selected[t.key(r)] {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// View returns the rows with their keys and selection state.
func (t *Table[T]) View() []Row[T] {
	out := make([]Row[T], 0, len(t.rows))
	for _, r := range t.rows {
		k := t.key(r)
		out = append(out, Row[T]{Key: k, Selected: t.selected[k], Data: r})
	}
	return out
}
