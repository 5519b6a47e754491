package track

// Arena is dense slot storage for tracks: a fixed slice plus a free
// list. Slot indices are recycled; track IDs never are — the ID counter
// only moves forward, so a consumer can treat an ID as permanently
// naming one mover.
type Arena struct {
	slots  []Track
	free   []int
	nextID uint32
}

// NewArena allocates storage for up to capacity live tracks.
func NewArena(capacity int) *Arena {
	a := &Arena{
		slots: make([]Track, capacity),
		free:  make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.slots[i].State = StateDropped
		a.free = append(a.free, i)
	}
	return a
}

// Alloc takes a free slot, stamps it with the next ID and returns it.
// Returns nil when the arena is full.
func (a *Arena) Alloc() *Track {
	if len(a.free) == 0 {
		return nil
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	tr := &a.slots[idx]
	*tr = Track{ID: a.nextID, State: StateTentative}
	a.nextID++
	return tr
}

// Release marks a slot free. The track's state becomes StateDropped.
func (a *Arena) Release(tr *Track) {
	tr.State = StateDropped
	for i := range a.slots {
		if &a.slots[i] == tr {
			a.free = append(a.free, i)
			return
		}
	}
}

// Live appends pointers to all non-dropped tracks to dst and returns it.
func (a *Arena) Live(dst []*Track) []*Track {
	for i := range a.slots {
		if a.slots[i].State != StateDropped {
			dst = append(dst, &a.slots[i])
		}
	}
	return dst
}

// LiveCount returns the number of occupied slots.
func (a *Arena) LiveCount() int {
	return len(a.slots) - len(a.free)
}

// Capacity returns the arena size.
func (a *Arena) Capacity() int {
	return len(a.slots)
}
