package crawlers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/go-rod/rod/lib/proto"
)

// tocSurface is everything the pagination traversal needs from the rendered
// chapter listing. The production implementation drives a browser page; tests
// substitute a scripted fake.
type tocSurface interface {
	// CurrentPage reads the highlighted page number, false if undeterminable.
	CurrentPage() (int, bool)
	// HasPage reports whether a direct numeric control for page n is visible.
	HasPage(n int) bool
	// ClickPage activates the numeric control for page n and waits for the
	// listing to land on it.
	ClickPage(n int) error
	// NextGroup advances the pagination window. Errors when no such control
	// exists, which ends any group-advance loop.
	NextGroup() error
	// RowCount counts the item rows visible on the current listing page.
	RowCount() (int, error)
	// RowInfo reads the chapter-number and chapter-title sub-fields of row i.
	// Missing sub-fields come back empty, never as errors.
	RowInfo(i int) (num, title string)
	// CaptureRowReference resolves row i's content reference, either by
	// activating the row and capturing the resulting location or by reading
	// an embedded link. navigated reports whether the surface left the
	// listing and must be restored before the next row.
	CaptureRowReference(i int) (ref string, navigated bool)
	// ReloadList re-navigates to the listing itself.
	ReloadList() error
	// TotalItems reads the advertised total chapter count, false if absent.
	TotalItems() (int, bool)
	// LoggedOut runs the logged-out heuristic against the current surface.
	LoggedOut() bool
}

// Selectors of the rendered chapter listing.
const (
	selListSection  = ".ch-list-section"
	selListItem     = ".ch-list-section .list-item"
	selChapterNum   = ".chapter-number"
	selChapterTitle = ".chapter-title"
	selPageCurrent  = ".pagination .page-btn.current"
	selPageNumeric  = ".pagination .page-btn:not(.arrow)"
	selPageArrow    = `.pagination .page-btn.arrow`
	selTotalCount   = ".ch-list-header .header-tit .text-primary-text"

	viewerPathMarker = "/viewer/"
)

var digitsOnly = regexp.MustCompile(`[0-9]+`)

// rodTOC drives the real listing surface through a Browser session.
type rodTOC struct {
	b       *Browser
	listURL string
	baseURL string
}

func newRodTOC(b *Browser, listURL, baseURL string) *rodTOC {
	return &rodTOC{b: b, listURL: listURL, baseURL: baseURL}
}

// WaitReady blocks until the listing section renders, or reports a
// structural mismatch so the caller can fall back.
func (t *rodTOC) WaitReady() error {
	if _, err := t.b.page.Timeout(8 * time.Second).Element(selListSection); err != nil {
		return fmt.Errorf("chapter listing not rendered: %w", err)
	}
	return nil
}

func (t *rodTOC) CurrentPage() (int, bool) {
	txt := t.b.elementText(selPageCurrent, time.Second)
	m := digitsOnly.FindString(txt)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

func (t *rodTOC) HasPage(n int) bool {
	els, err := t.b.page.Timeout(time.Second).Elements(selPageNumeric)
	if err != nil {
		return false
	}
	want := strconv.Itoa(n)
	for _, el := range els {
		txt, err := el.Text()
		if err == nil && strings.TrimSpace(txt) == want {
			return true
		}
	}
	return false
}

func (t *rodTOC) ClickPage(n int) error {
	els, err := t.b.page.Timeout(time.Second).Elements(selPageNumeric)
	if err != nil {
		return fmt.Errorf("page controls: %w", err)
	}
	want := strconv.Itoa(n)
	for _, el := range els {
		txt, terr := el.Text()
		if terr != nil || strings.TrimSpace(txt) != want {
			continue
		}
		if cerr := el.Click(proto.InputMouseButtonLeft, 1); cerr != nil {
			return fmt.Errorf("click page %d: %w", n, cerr)
		}
		// wait for the highlighted number to catch up
		deadline := time.Now().Add(t.b.stepTimeout())
		for time.Now().Before(deadline) {
			if cur, ok := t.CurrentPage(); ok && cur == n {
				return nil
			}
			time.Sleep(150 * time.Millisecond)
		}
		return fmt.Errorf("page %d did not become current", n)
	}
	return fmt.Errorf("no control for page %d: %w", n, ErrNoSuchElement)
}

func (t *rodTOC) NextGroup() error {
	el, err := t.b.page.Timeout(time.Second).ElementR(selPageArrow, `/^›$/`)
	if err != nil {
		return fmt.Errorf("no next-group control: %w", ErrNoSuchElement)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("advance page group: %w", err)
	}
	time.Sleep(300 * time.Millisecond)
	return nil
}

func (t *rodTOC) RowCount() (int, error) {
	els, err := t.b.page.Timeout(2 * time.Second).Elements(selListItem)
	if err != nil {
		return 0, fmt.Errorf("listing rows: %w", err)
	}
	return len(els), nil
}

func (t *rodTOC) RowInfo(i int) (string, string) {
	els, err := t.b.page.Timeout(time.Second).Elements(selListItem)
	if err != nil || i >= len(els) {
		return "", ""
	}
	row := els[i]
	var num, title string
	if el, err := row.Element(selChapterNum); err == nil {
		if txt, err := el.Text(); err == nil {
			num = strings.TrimSpace(txt)
		}
	}
	if el, err := row.Element(selChapterTitle); err == nil {
		if txt, err := el.Text(); err == nil {
			title = strings.TrimSpace(txt)
		}
	}
	return num, title
}

func (t *rodTOC) CaptureRowReference(i int) (string, bool) {
	els, err := t.b.page.Timeout(time.Second).Elements(selListItem)
	if err != nil || i >= len(els) {
		return "", false
	}
	row := els[i]

	if err := row.ScrollIntoView(); err != nil {
		utils.Debugf("scroll row %d: %v", i, err)
	}
	before := t.b.Location()
	if err := row.Click(proto.InputMouseButtonLeft, 1); err != nil {
		utils.Debugf("click row %d: %v", i, err)
	} else if t.b.waitLocationContains(viewerPathMarker, 2500*time.Millisecond) {
		after := t.b.Location()
		if after != before {
			return after, true
		}
	}

	// no route change; sniff an embedded link inside the row instead
	if link, err := row.Element("a[href*='" + viewerPathMarker + "']"); err == nil {
		if href, err := link.Attribute("href"); err == nil && href != nil && *href != "" {
			return utils.AbsoluteURL(t.baseURL, *href), strings.Contains(t.b.Location(), viewerPathMarker)
		}
	}
	return "", strings.Contains(t.b.Location(), viewerPathMarker)
}

func (t *rodTOC) ReloadList() error {
	if err := t.b.SafeGoto(t.listURL); err != nil {
		return err
	}
	return t.WaitReady()
}

func (t *rodTOC) TotalItems() (int, bool) {
	txt := t.b.elementText(selTotalCount, time.Second)
	m := digitsOnly.FindString(txt)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil && n > 0
}

func (t *rodTOC) LoggedOut() bool {
	return t.b.LooksLoggedOut()
}
