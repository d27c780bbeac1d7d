package taskstate

import (
	"fmt"
	"sort"

	"crewline/internal/domain"
)

// Slot is one ordered item within a scope (project board, milestone list, subtask list).
type Slot struct {
	ID    string
	Index int
}

// Move rewrites one item's order index.
type Move struct {
	ID   string
	From int
	To   int
}

func sorted(items []Slot) []Slot {
	out := append([]Slot(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Reorder moves id to newIndex, shifting only the items whose index lies
// between the old and new position. newIndex is clamped to the occupied range.
func Reorder(items []Slot, id string, newIndex int) ([]Move, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	items = sorted(items)
	old, found := 0, false
	for _, it := range items {
		if it.ID == id {
			old, found = it.Index, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	lo, hi := items[0].Index, items[len(items)-1].Index
	if newIndex < lo {
		newIndex = lo
	}
	if newIndex > hi {
		newIndex = hi
	}
	if newIndex == old {
		return nil, nil
	}
	var moves []Move
	for _, it := range items {
		switch {
		case it.ID == id:
			moves = append(moves, Move{ID: it.ID, From: old, To: newIndex})
		case newIndex < old && it.Index >= newIndex && it.Index < old:
			moves = append(moves, Move{ID: it.ID, From: it.Index, To: it.Index + 1})
		case newIndex > old && it.Index > old && it.Index <= newIndex:
			moves = append(moves, Move{ID: it.ID, From: it.Index, To: it.Index - 1})
		}
	}
	return moves, nil
}

// Insert opens a gap at position at and returns the index the new item should
// take together with the shifts that make room for it. Positions past the end
// append.
func Insert(items []Slot, at int) (int, []Move) {
	next := NextIndex(items)
	if at < 0 {
		at = 0
	}
	if at >= next {
		return next, nil
	}
	var moves []Move
	for _, it := range sorted(items) {
		if it.Index >= at {
			moves = append(moves, Move{ID: it.ID, From: it.Index, To: it.Index + 1})
		}
	}
	return at, moves
}

// NextIndex is one past the current maximum, or 0 for an empty scope.
func NextIndex(items []Slot) int {
	next := 0
	for _, it := range items {
		if it.Index+1 > next {
			next = it.Index + 1
		}
	}
	return next
}
