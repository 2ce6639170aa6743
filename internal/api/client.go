// Package api implements the authenticated JSON API path: session login and
// refresh, work metadata, episode listing, per-episode tickets, and content
// fetch, all funnelled through the resilient request executor.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/session"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the public site origin.
	BaseURL = "https://global.novelpia.com"
	// APIBase is the JSON API origin.
	APIBase = "https://api-global.novelpia.com"

	defaultTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/138.0.0.0 Safari/537.36"
)

// Client talks to the upstream JSON API on behalf of one session.
type Client struct {
	http  *resty.Client
	exec  *Executor
	store *session.Store

	email    string
	password string

	throttle  time.Duration
	jitterMin time.Duration
	jitterMax time.Duration

	maxRetries  int
	backoffBase float64

	refreshes int
}

// NewClient builds the API client: browser-alike headers, a public-suffix
// cookie jar carrying the USERKEY device cookie, the cloudflare bypass
// transport, and a rate limiter enforcing the configured throttle.
func NewClient(store *session.Store, cfg models.CrawlConfig, email, password string) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(APIBase)
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(defaultTimeout)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeaders(map[string]string{
		"accept":           "application/json, text/plain, */*",
		"accept-language":  "en-US,en;q=0.9",
		"origin":           BaseURL,
		"referer":          BaseURL + "/",
		"user-agent":       userAgent,
		"x-requested-with": "XMLHttpRequest",
		"sec-fetch-mode":   "cors",
		"sec-fetch-site":   "same-site",
		"sec-fetch-dest":   "empty",
	})

	if cfg.Proxy != "" {
		httpClient.SetProxy(cfg.Proxy)
	}

	// The device key rides along as a cookie on every request.
	httpClient.SetCookie(&http.Cookie{
		Name:   "USERKEY",
		Value:  store.UserKey(),
		Domain: ".novelpia.com",
		Path:   "/",
	})

	if cfg.ThrottleSec > 0 {
		// One content request per throttle interval; burst 1 keeps the
		// crawl strictly sequential on the wire.
		limiter := rate.NewLimiter(rate.Every(time.Duration(cfg.ThrottleSec*float64(time.Second))), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	c := &Client{
		http:        httpClient,
		store:       store,
		email:       email,
		password:    password,
		throttle:    time.Duration(cfg.ThrottleSec * float64(time.Second)),
		jitterMin:   time.Duration(cfg.JitterMinMS) * time.Millisecond,
		jitterMax:   time.Duration(cfg.JitterMaxMS) * time.Millisecond,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
	}
	c.exec = NewExecutor(cfg.Verbose, store.MarkExpired, func(ctx context.Context) error {
		return c.Refresh(ctx)
	})
	return c, nil
}

// Refreshes reports how many session refreshes this client performed.
func (c *Client) Refreshes() int {
	return c.refreshes
}

// ImportCookies attaches externally sourced cookies (a cookies.txt export)
// to every outgoing request.
func (c *Client) ImportCookies(cookies []*http.Cookie) {
	if len(cookies) > 0 {
		c.http.SetCookies(cookies)
	}
}

// authRequest returns a request carrying the current login-at header.
// Built fresh per attempt so a replay after refresh picks up the new token.
func (c *Client) authRequest() *resty.Request {
	req := c.http.R()
	if tok := c.store.Current(); tok.AuthToken != "" {
		req.SetHeader("login-at", tok.AuthToken)
	}
	return req
}

// Login exchanges credentials for a session token. Fails with
// models.ErrCredentialsMissing before any network call when no credentials
// are configured, and with models.ErrAuthFailure on a rejected login.
func (c *Client) Login(ctx context.Context) error {
	if c.email == "" || c.password == "" {
		return models.ErrCredentialsMissing
	}

	resp, err := c.exec.Execute(ctx, func() *resty.Request {
		return c.http.R().SetBody(map[string]string{
			"email":  c.email,
			"passwd": c.password,
		})
	}, resty.MethodPost, "/v1/member/login", c.defaultOpts(false))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("login rejected with HTTP %d: %w", resp.StatusCode(), models.ErrAuthFailure)
	}

	var result loginResult
	if err := decodeResult(resp.Body(), &result); err != nil {
		return fmt.Errorf("login response: %w", err)
	}
	if _, err := c.store.SetFromLogin(result.LoginAt); err != nil {
		return err
	}
	utils.Info("logged in; session persisted for future runs")
	return nil
}

// Refresh trades the current token for a fresh one. Triggered only by the
// executor's expiry path or an explicit session check, never in a loop.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.exec.Execute(ctx, c.authRequest,
		resty.MethodGet, "/v1/login/refresh", c.defaultOpts(false))
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("refresh rejected with HTTP %d: %w", resp.StatusCode(), models.ErrAuthFailure)
	}

	var result loginResult
	if err := decodeResult(resp.Body(), &result); err != nil {
		return fmt.Errorf("refresh response: %w", err)
	}
	if _, err := c.store.SetFromRefresh(result.LoginAt); err != nil {
		return err
	}
	c.refreshes++
	utils.Debug("session token refreshed")
	return nil
}

// Me confirms the session is live. Used once at pipeline start so a stale
// stored token refreshes before the crawl proper begins.
func (c *Client) Me(ctx context.Context) error {
	resp, err := c.exec.Execute(ctx, c.authRequest,
		resty.MethodGet, "/v1/login/me", c.defaultOpts(true))
	if err != nil {
		return fmt.Errorf("profile check: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("profile check failed with HTTP %d: %w", resp.StatusCode(), models.ErrAuthFailure)
	}
	return nil
}

// Novel fetches the work record.
func (c *Client) Novel(ctx context.Context, novelID int) (*NovelPayload, error) {
	resp, err := c.exec.Execute(ctx, func() *resty.Request {
		return c.authRequest().SetQueryParam("novel_no", fmt.Sprint(novelID))
	}, resty.MethodGet, "/v1/novel", c.defaultOpts(true))
	if err != nil {
		return nil, fmt.Errorf("novel %d: %w", novelID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("novel %d: HTTP %d", novelID, resp.StatusCode())
	}

	var payload NovelPayload
	if err := decodeResult(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("novel %d response: %w", novelID, err)
	}
	return &payload, nil
}

// EpisodeList fetches up to rows episodes in ascending order.
func (c *Client) EpisodeList(ctx context.Context, novelID, rows int) ([]EpisodeRow, error) {
	resp, err := c.exec.Execute(ctx, func() *resty.Request {
		return c.authRequest().SetQueryParams(map[string]string{
			"novel_no": fmt.Sprint(novelID),
			"rows":     fmt.Sprint(rows),
			"sort":     "ASC",
		})
	}, resty.MethodGet, "/v1/novel/episode/list", c.defaultOpts(true))
	if err != nil {
		return nil, fmt.Errorf("episode list: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("episode list: HTTP %d", resp.StatusCode())
	}

	var payload episodeListPayload
	if err := decodeResult(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("episode list response: %w", err)
	}
	return payload.List, nil
}

// EpisodeTicket fetches the ticket payload that must be mined for the
// chapter's content token. Throttled with jitter: the ticket endpoint is
// the rate-limit tripwire.
func (c *Client) EpisodeTicket(ctx context.Context, episodeNo int) (map[string]interface{}, error) {
	c.throttleWithJitter(ctx)

	resp, err := c.exec.Execute(ctx, func() *resty.Request {
		return c.authRequest().SetQueryParam("episode_no", fmt.Sprint(episodeNo))
	}, resty.MethodGet, "/v1/novel/episode", c.defaultOpts(true))
	if err != nil {
		return nil, fmt.Errorf("ticket for episode %d: %w", episodeNo, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ticket for episode %d: HTTP %d", episodeNo, resp.StatusCode())
	}

	return decodeAny(resp.Body())
}

// EpisodeContent exchanges a content token for the chapter body payload.
func (c *Client) EpisodeContent(ctx context.Context, token string) (map[string]interface{}, error) {
	c.throttleWithJitter(ctx)

	resp, err := c.exec.Execute(ctx, func() *resty.Request {
		return c.http.R().SetQueryParam("_t", token)
	}, resty.MethodGet, "/v1/novel/episode/content", c.defaultOpts(false))
	if err != nil {
		return nil, fmt.Errorf("episode content: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("episode content: HTTP %d", resp.StatusCode())
	}

	return decodeAny(resp.Body())
}

// FetchDirectContent follows a full content URL recovered from a ticket
// payload (extraction tier 3).
func (c *Client) FetchDirectContent(ctx context.Context, directURL string) (map[string]interface{}, error) {
	c.throttleWithJitter(ctx)

	resp, err := c.exec.Execute(ctx, c.http.R,
		resty.MethodGet, directURL, c.defaultOpts(false))
	if err != nil {
		return nil, fmt.Errorf("direct content: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("direct content: HTTP %d", resp.StatusCode())
	}

	return decodeAny(resp.Body())
}

// throttleWithJitter sleeps the fixed throttle plus a small random jitter
// before content-sensitive requests. The client-level limiter already
// spaces requests; jitter keeps the spacing from looking mechanical.
func (c *Client) throttleWithJitter(ctx context.Context) {
	if c.throttle <= 0 {
		return
	}
	jitter := c.jitterMin
	if span := c.jitterMax - c.jitterMin; span > 0 {
		jitter += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// defaultOpts builds executor options from the configured retry budget.
func (c *Client) defaultOpts(allowRefresh bool) ExecOptions {
	retries, base := c.maxRetries, c.backoffBase
	if retries <= 0 {
		retries = 3
	}
	if base <= 0 {
		base = 1.25
	}
	return ExecOptions{MaxRetries: retries, BackoffBase: base, AllowRefresh: allowRefresh}
}

// decodeResult unmarshals the result half of a response envelope.
func decodeResult(body []byte, target interface{}) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("envelope has no result (errmsg=%q)", env.ErrMsg)
	}
	return json.Unmarshal(env.Result, target)
}

// decodeAny unmarshals a whole response body into a generic tree for the
// token extractor and content assembler.
func decodeAny(body []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
