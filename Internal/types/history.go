package types

// History is an append-only sequence addressed by absolute bar index that keeps
// only the newest values once keep is set. Older entries are dropped in batches,
// so At stays valid for at least the newest keep indices.
type History[T any] struct {
	keep  int
	first BarIndex
	items []T
}

// NewHistory keeps the newest keep values. keep <= 0 keeps every value.
func NewHistory[T any](keep int) *History[T] {
	capacity := keep * 2
	if capacity <= 0 {
		capacity = 64
	}
	return &History[T]{keep: keep, items: make([]T, 0, capacity)}
}

// Push appends v and returns its absolute index.
func (h *History[T]) Push(v T) BarIndex {
	if h.keep > 0 && len(h.items) >= 2*h.keep {
		drop := len(h.items) - h.keep + 1
		n := copy(h.items, h.items[drop:])
		h.items = h.items[:n]
		h.first += BarIndex(drop)
	}
	h.items = append(h.items, v)
	return h.Current()
}

// Count is the number of values ever pushed, retained or not.
func (h *History[T]) Count() int {
	return int(h.first) + len(h.items)
}

// Retained is the number of values still addressable.
func (h *History[T]) Retained() int {
	return len(h.items)
}

// Current returns the index of the newest value, or -1 when empty.
func (h *History[T]) Current() BarIndex {
	return h.first + BarIndex(len(h.items)) - 1
}

// Oldest returns the smallest index At accepts.
func (h *History[T]) Oldest() BarIndex {
	return h.first
}

// At panics when index has already been dropped.
func (h *History[T]) At(index BarIndex) T {
	if index < h.first {
		panic("types: history index dropped")
	}
	return h.items[index-h.first]
}

// Last returns the newest value and false when empty.
func (h *History[T]) Last() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[len(h.items)-1], true
}

func (h *History[T]) Reset() {
	h.items = h.items[:0]
	h.first = 0
}
