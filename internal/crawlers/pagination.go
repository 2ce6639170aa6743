package crawlers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

const fallbackSafetyPages = 200

// PageTraversal walks a numbered chapter listing page by page, row by row,
// capturing one stable content reference per row. All loops are bounded: a
// visited-page set stops revisits, group advances are capped, and the
// optional chapter cap counts row attempts so the traversal never requests a
// page beyond what the cap needs.
type PageTraversal struct {
	surface tocSurface
	cfg     models.CrawlConfig

	// reauth performs one re-authentication when the surface looks logged
	// out. The traversal reloads and resumes at the same row afterwards.
	reauth func(ctx context.Context) error

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewPageTraversal wires the traversal to its listing surface and to the
// re-authentication callback.
func NewPageTraversal(surface tocSurface, cfg models.CrawlConfig, reauth func(ctx context.Context) error) *PageTraversal {
	if reauth == nil {
		reauth = func(context.Context) error { return nil }
	}
	return &PageTraversal{surface: surface, cfg: cfg, reauth: reauth, sleep: time.Sleep}
}

// Collect runs the traversal to completion and returns the chapters in
// discovery order. Failures of a single row or page are logged and skipped;
// only a dead surface ends the traversal, and then with partial results.
func (p *PageTraversal) Collect(ctx context.Context) ([]models.Chapter, error) {
	var chapters []models.Chapter
	seen := make(map[string]struct{})
	visitedPages := make(map[int]struct{})

	cursor := models.PageCursor{CurrentPage: 1}
	if total, ok := p.surface.TotalItems(); ok {
		cursor.TotalItems = total
		cursor.TotalPages = models.TotalPagesFor(total, p.cfg.ItemsPerPage)
	}
	if cur, ok := p.surface.CurrentPage(); ok {
		cursor.CurrentPage = cur
	}
	utils.Infof("listing traversal: total_items=%d total_pages=%d start_page=%d",
		cursor.TotalItems, cursor.TotalPages, cursor.CurrentPage)

	safetyPages := cursor.TotalPages
	if safetyPages <= 0 {
		safetyPages = fallbackSafetyPages
	}

	hardCap := p.cfg.MaxChapters
	rowAttempts := 0

	for pages := 0; pages < safetyPages; pages++ {
		if err := ctx.Err(); err != nil {
			return chapters, err
		}
		if hardCap > 0 && rowAttempts >= hardCap {
			break
		}

		if cur, ok := p.surface.CurrentPage(); ok {
			cursor.CurrentPage = cur
		}
		if _, dup := visitedPages[cursor.CurrentPage]; dup {
			utils.Warnf("page %d already visited; stopping traversal", cursor.CurrentPage)
			break
		}
		visitedPages[cursor.CurrentPage] = struct{}{}

		count, err := p.surface.RowCount()
		if err != nil {
			return chapters, fmt.Errorf("%w: %v", models.ErrStructuralMismatch, err)
		}
		utils.Infof("page %d: %d rows", cursor.CurrentPage, count)

		if count == 0 && cursor.TotalPages > 0 && cursor.CurrentPage < cursor.TotalPages {
			// The page-count estimate assumed a fixed items-per-page value;
			// an early empty page means the remote changed it.
			utils.Warnf("page %d returned no rows before the estimated last page %d; items-per-page (%d) no longer matches the remote listing",
				cursor.CurrentPage, cursor.TotalPages, p.cfg.ItemsPerPage)
			break
		}

		limit := count
		if hardCap > 0 {
			if remaining := hardCap - rowAttempts; remaining < limit {
				limit = remaining
			}
		}

		for i := 0; i < limit; i++ {
			if err := ctx.Err(); err != nil {
				return chapters, err
			}

			if p.surface.LoggedOut() {
				utils.Warn("login surface detected mid-traversal; re-authenticating once")
				if err := p.reauth(ctx); err != nil {
					return chapters, fmt.Errorf("%w: %v", models.ErrSessionLost, err)
				}
				if err := p.recoverToPage(cursor.CurrentPage); err != nil {
					return chapters, err
				}
			}

			num, title := p.surface.RowInfo(i)
			p.throttle()

			ref, navigated := p.surface.CaptureRowReference(i)
			rowAttempts++
			if navigated {
				if err := p.recoverToPage(cursor.CurrentPage); err != nil {
					return chapters, err
				}
			}

			if ref == "" {
				utils.Debugf("row %d on page %d yielded no reference", i+1, cursor.CurrentPage)
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			chapters = append(chapters, models.Chapter{
				Index:     len(chapters) + 1,
				Title:     rowTitle(num, title, len(chapters)+1),
				Reference: ref,
			})
			utils.Debugf("captured %s", ref)

			if hardCap > 0 && len(chapters) >= hardCap {
				return chapters, nil
			}
		}

		if cursor.TotalPages > 0 && cursor.CurrentPage >= cursor.TotalPages {
			break
		}
		if hardCap > 0 && rowAttempts >= hardCap {
			break
		}

		target := cursor.CurrentPage + 1
		if _, dup := visitedPages[target]; dup {
			break
		}
		if err := p.gotoPage(target); err != nil {
			utils.Warnf("page %d unreachable, stopping with partial results: %v", target, err)
			break
		}
		cursor.CurrentPage = target
	}

	return chapters, nil
}

// gotoPage navigates the listing to an explicit page number. Idempotent: a
// no-op when already there. When the numeric control sits outside the
// visible window the pagination group is advanced a bounded number of times
// until the target becomes selectable.
func (p *PageTraversal) gotoPage(target int) error {
	if cur, ok := p.surface.CurrentPage(); ok && cur == target {
		return nil
	}
	if p.surface.HasPage(target) {
		return p.surface.ClickPage(target)
	}

	maxAdvances := p.cfg.MaxGroupAdvances
	if maxAdvances <= 0 {
		maxAdvances = 40
	}
	for i := 0; i < maxAdvances; i++ {
		if err := p.surface.NextGroup(); err != nil {
			return fmt.Errorf("page %d out of reach: %w", target, err)
		}
		if p.surface.HasPage(target) {
			return p.surface.ClickPage(target)
		}
	}
	return fmt.Errorf("page %d not selectable within %d group advances", target, maxAdvances)
}

// recoverToPage restores the listing and re-navigates to an explicit page
// number. Restoration never relies on a history stack.
func (p *PageTraversal) recoverToPage(page int) error {
	if err := p.surface.ReloadList(); err != nil {
		return fmt.Errorf("%w: reload listing: %v", models.ErrStructuralMismatch, err)
	}
	if err := p.gotoPage(page); err != nil {
		return fmt.Errorf("%w: return to page %d: %v", models.ErrStructuralMismatch, page, err)
	}
	return nil
}

// throttle sleeps the configured delay plus jitter before content-sensitive
// actions such as row activation.
func (p *PageTraversal) throttle() {
	d := time.Duration(p.cfg.ThrottleSec * float64(time.Second))
	if span := p.cfg.JitterMaxMS - p.cfg.JitterMinMS; span > 0 {
		d += time.Duration(p.cfg.JitterMinMS+rand.Intn(span)) * time.Millisecond
	}
	if d > 0 {
		p.sleep(d)
	}
}

func rowTitle(num, title string, fallbackIdx int) string {
	combined := num
	if title != "" {
		if combined != "" {
			combined += " "
		}
		combined += title
	}
	if combined == "" {
		return fmt.Sprintf("Chapter %d", fallbackIdx)
	}
	return combined
}
