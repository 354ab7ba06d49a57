package model

// List helpers never modify their input; every mutation returns a fresh slice
// so snapshots handed to views stay stable.

// Clone returns a copy of items that is never nil.
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Index returns the position of id in items, or -1.
func Index(items []Item, id ID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the item with id.
func Find(items []Item, id ID) (Item, bool) {
	if i := Index(items, id); i >= 0 {
		return items[i], true
	}
	return Item{}, false
}

// Append adds it at the end. The second result is false when the id is
// already present, in which case items is returned unchanged.
func Append(items []Item, it Item) ([]Item, bool) {
	if Index(items, it.ID) >= 0 {
		return Clone(items), false
	}
	out := make([]Item, 0, len(items)+1)
	out = append(out, items...)
	return append(out, it), true
}

// Toggle flips Completed on the item with id.
func Toggle(items []Item, id ID) []Item {
	out := Clone(items)
	if i := Index(out, id); i >= 0 {
		out[i].Completed = !out[i].Completed
	}
	return out
}

// Replace swaps in it for the item sharing its id.
func Replace(items []Item, it Item) []Item {
	out := Clone(items)
	if i := Index(out, it.ID); i >= 0 {
		out[i] = it
	}
	return out
}

// Remove drops the item with id. Unknown ids leave the list as it was.
func Remove(items []Item, id ID) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Equal compares two lists element by element, order included.
func Equal(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Stats counts completed and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
