package core

import (
	"testing"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/stretchr/testify/require"
)

func chapterList(refs ...string) []models.Chapter {
	out := make([]models.Chapter, len(refs))
	for i, r := range refs {
		out[i] = models.Chapter{Index: i + 1, Title: "T " + r, Reference: r}
	}
	return out
}

func TestFinalize_DedupFirstOccurrence(t *testing.T) {
	got := Finalize(chapterList("A", "B", "A", "C", "B"), 0)

	require.Len(t, got, 3)
	require.Equal(t, "A", got[0].Reference)
	require.Equal(t, "B", got[1].Reference)
	require.Equal(t, "C", got[2].Reference)
	for i, ch := range got {
		require.Equal(t, i+1, ch.Index, "indices must be dense from 1")
	}
}

func TestFinalize_Cap(t *testing.T) {
	got := Finalize(chapterList("A", "B", "C", "D"), 2)
	require.Len(t, got, 2)
	require.Equal(t, "B", got[1].Reference)
}

func TestFinalize_DropsEmptyReferences(t *testing.T) {
	in := chapterList("A", "", "B")
	got := Finalize(in, 0)
	require.Len(t, got, 2)
	require.Equal(t, []int{1, 2}, []int{got[0].Index, got[1].Index})
}

func TestFinalize_EmptyInput(t *testing.T) {
	require.Empty(t, Finalize(nil, 5))
}
