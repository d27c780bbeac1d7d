package taskstate

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

func board(n int) []Slot {
	items := make([]Slot, n)
	for i := range items {
		items[i] = Slot{ID: fmt.Sprintf("t%d", i), Index: i}
	}
	return items
}

func apply(items []Slot, moves []Move) map[string]int {
	res := map[string]int{}
	for _, it := range items {
		res[it.ID] = it.Index
	}
	for _, m := range moves {
		res[m.ID] = m.To
	}
	return res
}

func requireDistinct(t *testing.T, idx map[string]int) {
	t.Helper()
	seen := map[int]string{}
	for id, i := range idx {
		if other, ok := seen[i]; ok {
			t.Fatalf("index %d shared by %s and %s", i, id, other)
		}
		seen[i] = id
	}
}

func TestReorderMoveUp(t *testing.T) {
	items := board(10)
	moves, err := Reorder(items, "t5", 2)
	require.NoError(t, err)
	got := apply(items, moves)
	requireDistinct(t, got)
	require.Equal(t, 2, got["t5"])
	require.Equal(t, 3, got["t2"])
	require.Equal(t, 4, got["t3"])
	require.Equal(t, 5, got["t4"])
	require.Equal(t, 1, got["t1"])
	require.Equal(t, 6, got["t6"])
	require.Len(t, moves, 4)
}

func TestReorderMoveDown(t *testing.T) {
	items := board(5)
	moves, err := Reorder(items, "t1", 3)
	require.NoError(t, err)
	want := []Move{
		{ID: "t1", From: 1, To: 3},
		{ID: "t2", From: 2, To: 1},
		{ID: "t3", From: 3, To: 2},
	}
	if diff := cmp.Diff(want, moves); diff != "" {
		t.Fatalf("moves mismatch (-want +got):\n%s", diff)
	}
}

func TestReorderClampsAndHandlesGaps(t *testing.T) {
	items := []Slot{{ID: "a", Index: 0}, {ID: "b", Index: 3}, {ID: "c", Index: 7}}
	moves, err := Reorder(items, "a", 99)
	require.NoError(t, err)
	got := apply(items, moves)
	requireDistinct(t, got)
	require.Equal(t, 7, got["a"])

	moves, err = Reorder(items, "b", 3)
	require.NoError(t, err)
	require.Empty(t, moves)

	_, err = Reorder(items, "zz", 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsert(t *testing.T) {
	items := board(4)
	at, moves := Insert(items, 1)
	require.Equal(t, 1, at)
	got := apply(items, moves)
	got["new"] = at
	requireDistinct(t, got)
	require.Equal(t, 4, got["t3"])

	at, moves = Insert(items, 42)
	require.Equal(t, 4, at)
	require.Empty(t, moves)

	at, _ = Insert(nil, 3)
	require.Equal(t, 0, at)
}
