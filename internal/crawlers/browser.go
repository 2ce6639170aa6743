package crawlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var (
	ErrBrowserCrashed = errors.New("browser crashed")
	ErrNoSuchElement  = errors.New("element not found")
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// Browser wraps a single rendering session. One page is reused for the whole
// crawl; the traversal is sequential so pagination state stays unambiguous.
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     models.CrawlConfig
}

// Launch starts a browser and opens the working page. The launcher hides the
// automation hint and honors the configured proxy.
func Launch(cfg models.CrawlConfig) (b *Browser, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("browser launch panic: %v", r)
			b, err = nil, ErrBrowserCrashed
		}
	}()

	warnLowMemory()

	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	utils.Debugf("browser started: %s", controlURL)

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.MustClose()
		return nil, fmt.Errorf("open page: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      desktopUserAgent,
		AcceptLanguage: lang,
	}); err != nil {
		utils.Warnf("set user agent: %v", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1280,
		Height:            2100,
		DeviceScaleFactor: 1,
	}); err != nil {
		utils.Warnf("set viewport: %v", err)
	}

	return &Browser{browser: browser, page: page, cfg: cfg}, nil
}

// SetCookies installs externally sourced cookies (a cookies.txt export)
// into the browser session before navigation.
func (b *Browser) SetCookies(cookies []*http.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			continue
		}
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			param.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, param)
	}
	if len(params) == 0 {
		return nil
	}
	return b.page.SetCookies(params)
}

// Close shuts the browser down. Safe to call on a nil receiver.
func (b *Browser) Close() {
	if b == nil || b.browser == nil {
		return
	}
	b.browser.MustClose()
	utils.Debug("browser closed")
}

func (b *Browser) navTimeout() time.Duration {
	if b.cfg.NavTimeoutSec > 0 {
		return time.Duration(b.cfg.NavTimeoutSec) * time.Second
	}
	return 15 * time.Second
}

func (b *Browser) stepTimeout() time.Duration {
	if b.cfg.StepTimeoutSec > 0 {
		return time.Duration(b.cfg.StepTimeoutSec) * time.Second
	}
	return 6 * time.Second
}

// SafeGoto navigates to url, waits for the page to settle, and normalizes
// the surface. Navigation timeouts degrade to a logged error so the caller
// can skip the current step instead of aborting the run.
func (b *Browser) SafeGoto(url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("navigation panic at %s: %v: %w", url, r, ErrBrowserCrashed)
		}
	}()

	if err := b.page.Timeout(b.navTimeout()).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := b.page.Timeout(b.navTimeout()).WaitLoad(); err != nil {
		utils.Debugf("wait load timed out for %s: %v", url, err)
	}
	b.NormalizeSurface()
	return nil
}

// Location reports the page's current URL, empty string when unavailable.
func (b *Browser) Location() string {
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// PageTitle reads the document title.
func (b *Browser) PageTitle() string {
	info, err := b.page.Info()
	if err != nil || info.Title == "" {
		return ""
	}
	return strings.TrimSpace(info.Title)
}

// HTML returns the rendered document markup.
func (b *Browser) HTML() (string, error) {
	return b.page.HTML()
}

// elementText reads the trimmed text of the first match, or "" when absent.
func (b *Browser) elementText(selector string, timeout time.Duration) string {
	el, err := b.page.Timeout(timeout).Element(selector)
	if err != nil {
		return ""
	}
	txt, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}

// clickByText finds a clickable element whose text matches the jsRegex
// pattern within timeout and clicks it. Returns false when nothing matched.
func (b *Browser) clickByText(pattern string, timeout time.Duration) bool {
	el, err := b.page.Timeout(timeout).ElementR("button, a, [role='button']", pattern)
	if err != nil {
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		utils.Debugf("click %q failed: %v", pattern, err)
		return false
	}
	return true
}

// hasVisibleText reports whether any element matching the text pattern is
// present within a short timeout.
func (b *Browser) hasVisibleText(pattern string, timeout time.Duration) bool {
	el, err := b.page.Timeout(timeout).ElementR("button, a, span, div", pattern)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

// waitLocationContains polls the page URL until it contains needle or the
// deadline passes. A miss is a soft outcome, never an error.
func (b *Browser) waitLocationContains(needle string, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if strings.Contains(b.Location(), needle) {
			return true
		}
		time.Sleep(150 * time.Millisecond)
	}
	return strings.Contains(b.Location(), needle)
}
