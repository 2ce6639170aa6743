package crawlers

import (
	"context"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/go-rod/rod/lib/proto"
)

// Label patterns tried in order when hunting the walker's affordances.
var (
	startLabels = []string{`/^Start reading$/i`, `/^Read$/i`, `/^Start$/i`, `/^Continue$/i`}
	nextLabels  = []string{`/^Next$/i`, `/^Next Episode$/i`, `/^Next Chapter$/i`, `/^다음$/`, `/^다음 화$/`, `/^▶$/`, `/^›$/`}
)

// viewerSurface is what the sequential walker needs from the rendered
// content view. The production implementation drives a browser; tests
// substitute a scripted fake.
type viewerSurface interface {
	// Goto loads a content reference.
	Goto(ref string) error
	// Location reports the current canonical reference.
	Location() string
	// Title reads a best-effort chapter title for the current view.
	Title() string
	// NextReference resolves the "next" affordance, false when absent.
	// Resolving may navigate; Location afterwards reflects where it landed.
	NextReference() (string, bool)
	// StartReference seeds the walk from the work's landing page,
	// false when no start affordance or embedded content link exists.
	StartReference() (string, bool)
}

// Walker follows next-links from a seed content view until the trail runs
// out, revisits a reference, or hits the step bound. Used only when the
// structured listing yields nothing usable.
type Walker struct {
	surface  viewerSurface
	maxSteps int
	sleep    func(time.Duration)
	throttle time.Duration
}

func NewWalker(surface viewerSurface, maxSteps int, throttle time.Duration) *Walker {
	if maxSteps <= 0 {
		maxSteps = 300
	}
	return &Walker{surface: surface, maxSteps: maxSteps, sleep: time.Sleep, throttle: throttle}
}

// Seed finds the first content reference, preferring the start affordance
// over embedded links.
func (w *Walker) Seed() (string, bool) {
	return w.surface.StartReference()
}

// Walk loads start and follows next-links. A visited set terminates cycles;
// every step failure ends the walk with whatever was collected.
func (w *Walker) Walk(ctx context.Context, start string) []models.Chapter {
	var chapters []models.Chapter
	seen := make(map[string]struct{})
	ref := start

	for step := 0; step < w.maxSteps; step++ {
		if ctx.Err() != nil {
			return chapters
		}
		if ref == "" {
			break
		}
		if _, dup := seen[ref]; dup {
			utils.Debugf("walker revisited %s; stopping", ref)
			break
		}
		seen[ref] = struct{}{}

		if err := w.surface.Goto(ref); err != nil {
			utils.Warnf("walker failed to load %s: %v", ref, err)
			break
		}

		idx := len(chapters) + 1
		title := strings.TrimSpace(w.surface.Title())
		if title == "" {
			title = rowTitle("", "", idx)
		}
		chapters = append(chapters, models.Chapter{Index: idx, Title: title, Reference: ref})

		next, ok := w.surface.NextReference()
		if !ok || next == "" || next == ref {
			break
		}
		ref = next
		if w.throttle > 0 {
			w.sleep(w.throttle)
		}
	}

	return chapters
}

// rodViewer drives the real content view through a Browser session.
type rodViewer struct {
	b       *Browser
	baseURL string
}

func newRodViewer(b *Browser, baseURL string) *rodViewer {
	return &rodViewer{b: b, baseURL: baseURL}
}

func (v *rodViewer) Goto(ref string) error { return v.b.SafeGoto(ref) }

func (v *rodViewer) Location() string { return v.b.Location() }

func (v *rodViewer) Title() string { return v.b.PageTitle() }

func (v *rodViewer) NextReference() (string, bool) {
	for _, label := range nextLabels {
		el, err := v.b.page.Timeout(time.Second).ElementR("button, a", label)
		if err != nil {
			continue
		}
		if href, herr := el.Attribute("href"); herr == nil && href != nil && *href != "" {
			return utils.AbsoluteURL(v.baseURL, *href), true
		}
		before := v.b.Location()
		if cerr := el.Click(proto.InputMouseButtonLeft, 1); cerr != nil {
			continue
		}
		if v.b.waitLocationContains(viewerPathMarker, 3*time.Second) {
			v.b.NormalizeSurface()
			if after := v.b.Location(); after != before {
				return after, true
			}
		}
	}

	// last resort: a rel=next link in the markup
	if el, err := v.b.page.Timeout(time.Second).Element(`a[rel="next"]`); err == nil {
		if href, herr := el.Attribute("href"); herr == nil && href != nil && *href != "" {
			return utils.AbsoluteURL(v.baseURL, *href), true
		}
	}
	return "", false
}

func (v *rodViewer) StartReference() (string, bool) {
	for _, label := range startLabels {
		if !v.b.clickByText(label, time.Second) {
			continue
		}
		if v.b.waitLocationContains(viewerPathMarker, 4*time.Second) {
			v.b.NormalizeSurface()
			return v.b.Location(), true
		}
	}

	// fall back to the first embedded content link on the landing page
	if el, err := v.b.page.Timeout(2 * time.Second).Element("a[href*='" + viewerPathMarker + "']"); err == nil {
		if href, herr := el.Attribute("href"); herr == nil && href != nil && *href != "" {
			return utils.AbsoluteURL(v.baseURL, *href), true
		}
	}
	return "", false
}
