package crawlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeViewer is a scripted content view: a map of reference -> next
// reference, with per-view titles.
type fakeViewer struct {
	titles map[string]string
	next   map[string]string
	seed   string
	cur    string
	visits []string
}

func (f *fakeViewer) Goto(ref string) error {
	f.cur = ref
	f.visits = append(f.visits, ref)
	return nil
}

func (f *fakeViewer) Location() string { return f.cur }

func (f *fakeViewer) Title() string { return f.titles[f.cur] }

func (f *fakeViewer) NextReference() (string, bool) {
	n, ok := f.next[f.cur]
	return n, ok
}

func (f *fakeViewer) StartReference() (string, bool) { return f.seed, f.seed != "" }

func newTestWalker(f *fakeViewer, maxSteps int) *Walker {
	w := NewWalker(f, maxSteps, 0)
	w.sleep = func(time.Duration) {}
	return w
}

func TestWalk_FollowsNextUntilTrailEnds(t *testing.T) {
	f := &fakeViewer{
		titles: map[string]string{"A": "One", "B": "Two", "C": "Three"},
		next:   map[string]string{"A": "B", "B": "C"},
	}
	chapters := newTestWalker(f, 0).Walk(context.Background(), "A")

	require.Len(t, chapters, 3)
	require.Equal(t, []string{"A", "B", "C"}, f.visits)
	require.Equal(t, "Two", chapters[1].Title)
	require.Equal(t, 2, chapters[1].Index)
}

func TestWalk_CycleDetection(t *testing.T) {
	f := &fakeViewer{
		titles: map[string]string{},
		next:   map[string]string{"A": "B", "B": "C", "C": "A"},
	}
	chapters := newTestWalker(f, 0).Walk(context.Background(), "A")

	require.Len(t, chapters, 3, "a revisited reference must end the walk")
	require.Equal(t, []string{"A", "B", "C"}, f.visits)
}

func TestWalk_BoundedBySteps(t *testing.T) {
	next := make(map[string]string)
	for i := 0; i < 100; i++ {
		next[ref(i)] = ref(i + 1)
	}
	f := &fakeViewer{titles: map[string]string{}, next: next}
	chapters := newTestWalker(f, 5).Walk(context.Background(), ref(0))

	require.Len(t, chapters, 5)
}

func TestWalk_TitleFallback(t *testing.T) {
	f := &fakeViewer{titles: map[string]string{}, next: map[string]string{}}
	chapters := newTestWalker(f, 0).Walk(context.Background(), "A")

	require.Len(t, chapters, 1)
	require.Equal(t, "Chapter 1", chapters[0].Title)
}

func ref(i int) string {
	return "https://global.novelpia.com/viewer/" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}
