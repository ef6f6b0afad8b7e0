package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pen(id string, pts ...Point) Stroke {
	return Stroke{ID: id, Tool: ToolPen, Color: "#000000", Width: 5, Points: pts}
}

func TestSequenceIsImmutable(t *testing.T) {
	base := NewSequence(pen("a-1", Point{0, 0}))
	grown := base.Append(pen("a-2", Point{1, 1}))
	require.Equal(t, 1, base.Len())
	require.Equal(t, 2, grown.Len())

	// Appending twice to the same base must not share storage.
	other := base.Append(pen("b-1", Point{2, 2}))
	require.Equal(t, "a-2", grown.At(1).ID)
	require.Equal(t, "b-1", other.At(1).ID)

	out := grown.Strokes()
	out[0].ID = "mutated"
	require.Equal(t, "a-1", grown.At(0).ID)
}

func TestSequenceUpsertByID(t *testing.T) {
	seq := NewSequence().
		Upsert(pen("a-1", Point{0, 0})).
		Upsert(pen("b-1", Point{5, 5})).
		Upsert(pen("a-1", Point{0, 0}, Point{1, 1}))
	require.Equal(t, 2, seq.Len())
	require.Equal(t, "a-1", seq.At(0).ID)
	require.Len(t, seq.At(0).Points, 2)
	require.Equal(t, "b-1", seq.At(1).ID)
}

func TestSequenceUpsertAnonymousTail(t *testing.T) {
	a := Stroke{Author: "x", Tool: ToolPen, Color: "#f00", Width: 3, Points: Points{{0, 0}}}
	seq := NewSequence().Upsert(a)
	a.Points = Points{{0, 0}, {1, 1}}
	seq = seq.Upsert(a)
	require.Equal(t, 1, seq.Len(), "growing anonymous stroke replaces the tail")

	b := a
	b.Color = "#00f"
	b.Points = Points{{4, 4}}
	seq = seq.Upsert(b)
	require.Equal(t, 2, seq.Len(), "a different brush starts a new stroke")
}

func TestSequenceRemove(t *testing.T) {
	seq := NewSequence(pen("a-1", Point{0, 0}), pen("a-2", Point{1, 1}))
	out, ok := seq.Remove("a-1")
	require.True(t, ok)
	require.Equal(t, 1, out.Len())
	require.Equal(t, 2, seq.Len())

	same, ok := out.Remove("missing")
	require.False(t, ok)
	require.True(t, same.Equal(out))
}
