package crawlers

import (
	"net/url"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/gocolly/colly/v2"
)

// ProbeResult is what a static pre-crawl of the work's landing page learned
// without spending a browser session.
type ProbeResult struct {
	// RobotsDisallowed reports the robots.txt soft-check outcome. The crawl
	// proceeds either way; this only drives a warning.
	RobotsDisallowed bool
	// FirstViewerRef is the first embedded content link found in the static
	// markup, usable as a walker seed. Empty if the listing is fully
	// script-rendered.
	FirstViewerRef string
}

// StaticProbe fetches robots.txt and the landing page with a plain static
// crawler. Everything here fails open: a probe error yields a zero result.
func StaticProbe(workURL string) ProbeResult {
	var result ProbeResult

	parsed, err := url.Parse(workURL)
	if err != nil || parsed.Host == "" {
		return result
	}

	c := colly.NewCollector(
		colly.UserAgent(desktopUserAgent),
		colly.AllowedDomains(parsed.Host),
	)
	c.SetRequestTimeout(15 * time.Second)

	c.OnResponse(func(r *colly.Response) {
		if strings.HasSuffix(r.Request.URL.Path, "/robots.txt") {
			if strings.Contains(string(r.Body), "Disallow: /") {
				result.RobotsDisallowed = true
			}
		}
	})

	c.OnHTML("a[href*='"+viewerPathMarker+"']", func(e *colly.HTMLElement) {
		if result.FirstViewerRef == "" {
			result.FirstViewerRef = e.Request.AbsoluteURL(e.Attr("href"))
		}
	})

	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"
	if err := c.Visit(robotsURL); err != nil {
		utils.Debugf("robots probe failed (ignored): %v", err)
	}
	if err := c.Visit(workURL); err != nil {
		utils.Debugf("static landing probe failed (ignored): %v", err)
	}
	c.Wait()

	if result.RobotsDisallowed {
		utils.Warnf("robots.txt disallows %s; proceeding, but mind the source's terms", parsed.Path)
	}
	return result
}
