package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

// CollectStructured runs the structured pagination traversal against the
// rendered chapter listing at listURL. A listing that never renders is a
// structural mismatch, signalling the caller to fall back.
func CollectStructured(ctx context.Context, b *Browser, listURL string, cfg models.CrawlConfig, reauth func(ctx context.Context) error) ([]models.Chapter, error) {
	toc := newRodTOC(b, listURL, siteOrigin(listURL))
	if err := toc.WaitReady(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStructuralMismatch, err)
	}
	return NewPageTraversal(toc, cfg, reauth).Collect(ctx)
}

// CollectSequential runs the fallback next-link walker. seedHint, when not
// empty, is used as the starting reference (e.g. from a static probe);
// otherwise the walker hunts a start affordance on the current page.
func CollectSequential(ctx context.Context, b *Browser, seedHint string, cfg models.CrawlConfig) []models.Chapter {
	viewer := newRodViewer(b, siteOrigin(b.Location()))
	walker := NewWalker(viewer, walkBound(cfg), time.Duration(cfg.ThrottleSec*float64(time.Second)))

	start := seedHint
	if start == "" {
		var ok bool
		if start, ok = walker.Seed(); !ok {
			utils.Warn("no walker seed found; sequential discovery yields nothing")
			return nil
		}
	}
	utils.Infof("walking next-links from %s", start)
	return walker.Walk(ctx, start)
}

// walkBound prefers the chapter cap as the step bound when one is set.
func walkBound(cfg models.CrawlConfig) int {
	if cfg.MaxChapters > 0 {
		return cfg.MaxChapters
	}
	return cfg.MaxWalkSteps
}

func siteOrigin(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "https://global.novelpia.com"
	}
	return parsed.Scheme + "://" + parsed.Host
}
