package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/internal/api"
	"github.com/bayue48/pia-scrap/internal/crawlers"
	"github.com/bayue48/pia-scrap/internal/epub"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/readability"
	"github.com/bayue48/pia-scrap/internal/session"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Options carry the per-run inputs that come from the command line rather
// than the config file.
type Options struct {
	WorkRef    string // numeric id or novel page URL
	Email      string
	Password   string
	CookiesTxt string // optional Netscape cookies.txt path
}

// Crawler drives the whole pipeline: session, discovery, content, packaging.
type Crawler struct {
	cfg     *Config
	opts    Options
	store   *session.Store
	cookies []*http.Cookie

	novelID int
	workURL string
}

var novelIDPattern = regexp.MustCompile(`/novel/(\d+)`)

// NewCrawler resolves the work reference and loads any persisted session.
func NewCrawler(cfg *Config, opts Options) (*Crawler, error) {
	c := &Crawler{cfg: cfg, opts: opts, store: session.NewStore(cfg.Output.SessionFile)}

	var err error
	c.novelID, c.workURL, err = resolveWorkRef(opts.WorkRef)
	if err != nil {
		return nil, err
	}

	if found, err := c.store.Load(); err != nil {
		utils.Warnf("session file unreadable, starting fresh: %v", err)
	} else if found {
		utils.Info("reusing persisted session")
	}

	if opts.CookiesTxt != "" {
		c.cookies, err = session.LoadCookiesTxt(opts.CookiesTxt)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// resolveWorkRef accepts a bare numeric id or a full novel page URL.
func resolveWorkRef(ref string) (int, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, "", fmt.Errorf("work reference is required")
	}
	if id, err := strconv.Atoi(ref); err == nil && id > 0 {
		return id, api.BaseURL + "/novel/" + ref, nil
	}
	if err := utils.ValidateURL(ref); err != nil {
		return 0, "", fmt.Errorf("work reference %q is neither an id nor a URL: %w", ref, err)
	}
	if m := novelIDPattern.FindStringSubmatch(ref); m != nil {
		id, _ := strconv.Atoi(m[1])
		return id, ref, nil
	}
	// URL without a recognizable id: browser-only territory
	return 0, ref, nil
}

// Run executes one crawl and returns its statistics. The returned stats are
// valid even alongside an error, for reporting partial progress.
func (c *Crawler) Run(ctx context.Context) (*models.CrawlStats, error) {
	start := time.Now()
	stats := &models.CrawlStats{}
	defer func() { stats.Duration = time.Since(start).Seconds() }()

	var (
		meta     models.NovelMeta
		contents []models.ChapterContent
		coverURL string
		err      error
	)

	mode := c.cfg.Crawl.Mode
	switch {
	case mode == models.ModeAPI || (mode == models.ModeAuto && c.canUseAPI()):
		stats.Mode = "api"
		meta, contents, coverURL, err = c.apiCrawl(ctx, stats)
		if err != nil && mode == models.ModeAuto && !errors.Is(err, context.Canceled) {
			utils.Warnf("API path failed (%v); falling back to the browser path", err)
			stats.Mode = "browser"
			meta, contents, coverURL, err = c.browserCrawl(ctx, stats)
		}
	default:
		stats.Mode = "browser"
		meta, contents, coverURL, err = c.browserCrawl(ctx, stats)
	}
	if err != nil {
		return stats, err
	}
	if len(contents) == 0 {
		utils.Warn("no chapters with readable content; the package will carry the About page only")
	}

	fetcher := epub.NewAssetFetcher(c.cfg.Crawl.Proxy)
	var cover []byte
	var coverExt string
	if coverURL != "" {
		if data, cerr := fetcher.Fetch(coverURL); cerr != nil {
			utils.Warnf("cover fetch failed: %v", cerr)
		} else {
			cover = data
			if ext, ok := epub.ImageExtFor(coverURL); ok {
				coverExt = ext
			}
			stats.CoverStored = true
		}
	}

	outDir := filepath.Join(c.cfg.Output.BaseDir, utils.Slugify(meta.DisplayTitle()))
	outPath, err := epub.NewBuilder(fetcher).Build(epub.Book{
		Meta:     meta,
		Chapters: contents,
		Cover:    cover,
		CoverExt: coverExt,
		Language: c.cfg.Crawl.Language,
	}, outDir)
	if err != nil {
		return stats, fmt.Errorf("package: %w", err)
	}
	stats.OutputFile = outPath

	if c.cfg.Output.Sidecars {
		if serr := WriteSidecars(outDir, meta, contents, stats); serr != nil {
			utils.Warnf("sidecar files: %v", serr)
		}
	}

	utils.Infof("done: %d discovered, %d fetched, %d skipped, %d failed in %.1fs",
		stats.Discovered, stats.Fetched, stats.Skipped, stats.Failed, time.Since(start).Seconds())
	return stats, nil
}

// canUseAPI reports whether the API path has anything to authenticate with:
// a usable persisted session, credentials, or imported cookies. It also
// needs a numeric work id.
func (c *Crawler) canUseAPI() bool {
	if c.novelID == 0 {
		return false
	}
	return c.store.Current().Usable() || (c.opts.Email != "" && c.opts.Password != "") || len(c.cookies) > 0
}

// apiCrawl is the JSON API pipeline: session, work record, episode listing,
// per-episode ticket and content.
func (c *Crawler) apiCrawl(ctx context.Context, stats *models.CrawlStats) (models.NovelMeta, []models.ChapterContent, string, error) {
	var meta models.NovelMeta
	if c.novelID == 0 {
		return meta, nil, "", fmt.Errorf("%w: the API path needs a numeric work id", models.ErrStructuralMismatch)
	}

	client, err := api.NewClient(c.store, c.cfg.Crawl, c.opts.Email, c.opts.Password)
	if err != nil {
		return meta, nil, "", err
	}
	client.ImportCookies(c.cookies)

	if err := c.ensureSession(ctx, client); err != nil {
		return meta, nil, "", err
	}

	payload, err := client.Novel(ctx, c.novelID)
	if err != nil {
		return meta, nil, "", fmt.Errorf("work record: %w", err)
	}
	meta = models.NovelMeta{
		SourceReference: c.workURL,
		Title:           payload.Novel.NovelName,
		Description:     payload.Novel.NovelStory,
		Status:          payload.Status(),
		Tags:            []string{},
	}
	if len(payload.WriterList) > 0 {
		meta.Author = payload.WriterList[0].WriterName
	}

	rows := payload.EpisodeCount()
	if rows <= 0 {
		rows = 2000
	}
	episodes, err := client.EpisodeList(ctx, c.novelID, rows)
	if err != nil {
		return meta, nil, "", fmt.Errorf("episode listing: %w", err)
	}
	if len(episodes) == 0 {
		return meta, nil, "", fmt.Errorf("%w: API listed no episodes", models.ErrStructuralMismatch)
	}
	if limit := c.cfg.Crawl.MaxChapters; limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}

	discovered := make([]models.Chapter, 0, len(episodes))
	for i, ep := range episodes {
		discovered = append(discovered, models.Chapter{
			Index:     i + 1,
			Title:     ep.Title(),
			Reference: episodeRef(ep),
		})
	}
	final := Finalize(discovered, c.cfg.Crawl.MaxChapters)
	stats.Discovered = len(final)
	stats.PagesSeen = models.TotalPagesFor(len(final), c.cfg.Crawl.ItemsPerPage)
	utils.Infof("listed %d episodes", len(final))

	outcome := FetchEpisodes(ctx, client, finalizedEpisodes(final, episodes), true)
	stats.Fetched = outcome.Fetched
	stats.Skipped = outcome.Skipped
	stats.Failed = outcome.Failed
	stats.Refreshes = client.Refreshes()

	coverURL := payload.Novel.NovelFullImg
	if coverURL == "" {
		coverURL = payload.Novel.NovelImg
	}
	// A cancelled context stops the fetch loop; whatever was collected
	// still gets packaged.
	return meta, outcome.Contents, utils.AbsoluteURL(api.BaseURL, coverURL), nil
}

// episodeRef is the canonical viewer locator for an API episode row; it is
// the dedup key the finalizer works with.
func episodeRef(ep api.EpisodeRow) string {
	return fmt.Sprintf("%s/viewer/%d", api.BaseURL, ep.EpisodeNo.Int())
}

// finalizedEpisodes maps the finalizer's chapter list back to the API rows
// to fetch, keeping the first row per reference. The finalized list, not
// the raw listing, decides what gets fetched and packaged.
func finalizedEpisodes(final []models.Chapter, episodes []api.EpisodeRow) []api.EpisodeRow {
	byRef := make(map[string]api.EpisodeRow, len(episodes))
	for _, ep := range episodes {
		ref := episodeRef(ep)
		if _, seen := byRef[ref]; !seen {
			byRef[ref] = ep
		}
	}
	out := make([]api.EpisodeRow, 0, len(final))
	for _, ch := range final {
		if ep, ok := byRef[ch.Reference]; ok {
			out = append(out, ep)
		}
	}
	return out
}

// ensureSession gets the client into an authenticated state: a usable
// persisted token is confirmed against the profile endpoint, refreshed once
// when stale, and replaced by a fresh login as the last resort.
func (c *Crawler) ensureSession(ctx context.Context, client *api.Client) error {
	if c.store.Current().Usable() {
		if err := client.Me(ctx); err == nil {
			return nil
		}
		utils.Warn("persisted session rejected; refreshing")
		if err := client.Refresh(ctx); err == nil {
			return nil
		}
	}
	if len(c.cookies) > 0 && c.opts.Email == "" {
		// Imported cookies may authenticate on their own.
		if err := client.Me(ctx); err == nil {
			return nil
		}
	}
	return client.Login(ctx)
}

// browserCrawl is the rendered-surface pipeline: metadata off the landing
// page, structured pagination discovery with the sequential walker as
// fallback, then per-chapter content extraction.
func (c *Crawler) browserCrawl(ctx context.Context, stats *models.CrawlStats) (models.NovelMeta, []models.ChapterContent, string, error) {
	var meta models.NovelMeta

	probe := crawlers.StaticProbe(c.workURL)
	if probe.RobotsDisallowed {
		utils.Warn("robots.txt disallows crawling this host; proceeding for personal archival")
	}

	b, err := crawlers.Launch(c.cfg.Crawl)
	if err != nil {
		return meta, nil, "", err
	}
	defer b.Close()

	if len(c.cookies) > 0 {
		if err := b.SetCookies(c.cookies); err != nil {
			utils.Warnf("cookie import into browser failed: %v", err)
		}
	}

	if err := b.SafeGoto(c.workURL); err != nil {
		return meta, nil, "", err
	}
	html, err := b.HTML()
	if err != nil {
		return meta, nil, "", fmt.Errorf("landing page markup: %w", err)
	}
	meta = crawlers.ExtractMeta(html, b.PageTitle(), c.workURL)
	coverURL := crawlers.ExtractCoverURL(html, siteOriginOf(c.workURL))

	reauth := func(ctx context.Context) error {
		if len(c.cookies) > 0 {
			return b.SetCookies(c.cookies)
		}
		return fmt.Errorf("%w: no cookies to re-authenticate the browser session with", models.ErrSessionLost)
	}

	chapters, err := crawlers.CollectStructured(ctx, b, c.workURL, c.cfg.Crawl, reauth)
	if err != nil {
		if !errors.Is(err, models.ErrStructuralMismatch) {
			return meta, nil, "", err
		}
		utils.Warnf("structured listing unusable: %v", err)
	}
	if len(chapters) == 0 {
		utils.Info("structured discovery empty; walking next-links instead")
		if err := b.SafeGoto(c.workURL); err != nil {
			return meta, nil, "", err
		}
		chapters = crawlers.CollectSequential(ctx, b, probe.FirstViewerRef, c.cfg.Crawl)
	}

	final := Finalize(chapters, c.cfg.Crawl.MaxChapters)
	stats.Discovered = len(final)

	contents := c.fetchRendered(ctx, b, final, meta.Title, stats)
	return meta, contents, coverURL, nil
}

// fetchRendered loads each finalized chapter in the browser and extracts
// its readable body. One bad chapter is skipped, never fatal.
func (c *Crawler) fetchRendered(ctx context.Context, b *crawlers.Browser, final []models.Chapter, novelTitle string, stats *models.CrawlStats) []models.ChapterContent {
	bar := progressbar.NewOptions(len(final),
		progressbar.OptionSetDescription("chapters"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var contents []models.ChapterContent
	for _, ch := range final {
		if ctx.Err() != nil {
			utils.Warnf("interrupted after %d chapters", stats.Fetched)
			break
		}
		_ = bar.Add(1)

		if err := b.SafeGoto(ch.Reference); err != nil {
			stats.Failed++
			utils.Warnf("chapter %d load failed: %v", ch.Index, err)
			continue
		}
		html, err := b.HTML()
		if err != nil {
			stats.Failed++
			utils.Warnf("chapter %d markup unavailable: %v", ch.Index, err)
			continue
		}
		extracted, err := readability.Extract(html, ch.Title, novelTitle, siteOriginOf(ch.Reference))
		if err != nil {
			stats.Skipped++
			utils.Infof("chapter %d skipped: %v", ch.Index, err)
			continue
		}
		contents = append(contents, models.ChapterContent{
			Index: len(contents) + 1,
			Title: extracted.Title,
			HTML:  extracted.HTML,
		})
		stats.Fetched++
	}
	return contents
}

func siteOriginOf(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return api.BaseURL
	}
	return parsed.Scheme + "://" + parsed.Host
}
