// Package slots provides a fixed-capacity arena whose entries are addressed by
// generation-checked handles. A handle stays valid until its entry is removed;
// after that the slot may be reused, but the old handle is rejected.
package slots

import (
	"fmt"
	"sync"

	"github.com/specialistvlad/vxgrid/internal/status"
)

// Handle identifies one live entry in a Table. The zero Handle is never valid.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.Gen == 0 }

func (h Handle) String() string { return fmt.Sprintf("%d#%d", h.Index, h.Gen) }

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Table is a mutex-guarded arena of at most Cap entries.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	count int
}

// New creates a table with room for capacity entries.
func New[T any](capacity int) *Table[T] {
	if capacity <= 0 {
		panic("slots: capacity must be positive")
	}
	return &Table[T]{slots: make([]slot[T], capacity)}
}

// Cap returns the table capacity.
func (t *Table[T]) Cap() int { return len(t.slots) }

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Insert stores v in the lowest free slot.
func (t *Table[T]) Insert(v T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			continue
		}
		s.gen++
		if s.gen == 0 {
			s.gen = 1
		}
		s.live = true
		s.val = v
		t.count++
		return Handle{Index: uint32(i), Gen: s.gen}, nil
	}
	return Handle{}, status.Errorf(status.NoResources, "all %d slots in use", len(t.slots))
}

// Get returns the entry for h, or false if h is stale or out of range.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.val, true
}

// Remove frees the entry for h and returns it. Removing a stale handle fails
// with INVALID_REFERENCE and leaves the table untouched.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	s, ok := t.lookup(h)
	if !ok {
		return zero, status.Errorf(status.InvalidReference, "handle %s is not live", h)
	}
	v := s.val
	s.val = zero
	s.live = false
	t.count--
	return v, nil
}

// Range calls fn for each live entry in index order until fn returns false.
// fn runs without the table lock held, over a snapshot taken at call time.
func (t *Table[T]) Range(fn func(Handle, T) bool) {
	type entry struct {
		h Handle
		v T
	}
	t.mu.Lock()
	snap := make([]entry, 0, t.count)
	for i := range t.slots {
		if s := &t.slots[i]; s.live {
			snap = append(snap, entry{Handle{uint32(i), s.gen}, s.val})
		}
	}
	t.mu.Unlock()

	for _, e := range snap {
		if !fn(e.h, e.v) {
			return
		}
	}
}

func (t *Table[T]) lookup(h Handle) (*slot[T], bool) {
	if h.IsZero() || int(h.Index) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[h.Index]
	if !s.live || s.gen != h.Gen {
		return nil, false
	}
	return s, true
}
