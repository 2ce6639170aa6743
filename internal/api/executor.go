package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/go-resty/resty/v2"
)

// tokenExpiredSentinel is the exact errmsg value the upstream API returns
// when the login-at token has lapsed.
const tokenExpiredSentinel = "The token has expired."

// ExecOptions tune one logical request.
type ExecOptions struct {
	MaxRetries   int     // total attempt bound, >= 1
	BackoffBase  float64 // sleep = BackoffBase^attempt seconds between attempts
	AllowRefresh bool    // enable the one-shot refresh-and-replay path
}

// Executor performs one logical request with bounded retry, exponential
// backoff, and at most one transparent re-authentication. Every
// network-touching component above it goes through Execute.
type Executor struct {
	verbose bool
	masker  *utils.BodyMasker

	// onExpiry records the observed expiry signal with the session store.
	onExpiry func()
	// refresh obtains fresh credentials; invoked at most once per Execute.
	refresh func(ctx context.Context) error

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewExecutor wires the executor to its session callbacks. Verbose is an
// explicit construction-time value, not a package flag.
func NewExecutor(verbose bool, onExpiry func(), refresh func(ctx context.Context) error) *Executor {
	return &Executor{
		verbose:  verbose,
		masker:   utils.NewBodyMasker(),
		onExpiry: onExpiry,
		refresh:  refresh,
		sleep:    time.Sleep,
	}
}

// Execute runs build() up to opts.MaxRetries times. Server errors (>= 500)
// and network-level failures back off BackoffBase^attempt seconds between
// attempts. When attempts run out on a network failure the error wraps
// models.ErrNetworkExhausted; when they run out on a server error the last
// response is returned alongside the same sentinel so callers can inspect
// it. If AllowRefresh is set and the body carries the token-expired errmsg,
// the refresh callback runs exactly once and the request is replayed once
// with the refreshed credentials.
func (e *Executor) Execute(ctx context.Context, build func() *resty.Request, method, url string, opts ExecOptions) (*resty.Response, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 1.25
	}

	refreshed := false

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.verbose {
			utils.Debugf("-> %s %s (attempt %d/%d)", method, url, attempt, opts.MaxRetries)
		}

		resp, err := build().SetContext(ctx).Execute(method, url)
		if err != nil {
			if attempt < opts.MaxRetries {
				utils.Warnf("request failed [%s %s] attempt %d/%d: %v", method, url, attempt, opts.MaxRetries, err)
				e.backoff(opts.BackoffBase, attempt)
				continue
			}
			return nil, fmt.Errorf("%s %s after %d attempts: %v: %w", method, url, attempt, err, models.ErrNetworkExhausted)
		}

		if opts.AllowRefresh && !refreshed && e.isTokenExpired(resp.Body()) {
			refreshed = true
			e.onExpiry()
			utils.Warn("token expired mid-call; refreshing session once")
			if rerr := e.refresh(ctx); rerr != nil {
				return resp, fmt.Errorf("refresh after expiry signal: %w", rerr)
			}
			// Single replay with the refreshed credentials; a second expiry
			// within this call is surfaced, never looped on.
			resp, err = build().SetContext(ctx).Execute(method, url)
			if err != nil {
				return nil, fmt.Errorf("replay after refresh: %v: %w", err, models.ErrNetworkExhausted)
			}
		}

		if e.verbose {
			utils.Debugf("<- %d from %s %s, body: %s", resp.StatusCode(), method, url, e.masker.MaskJSON(resp.Body()))
		}

		if resp.StatusCode() >= 500 {
			if attempt < opts.MaxRetries {
				utils.Warnf("server error %d [%s %s] attempt %d/%d", resp.StatusCode(), method, url, attempt, opts.MaxRetries)
				e.backoff(opts.BackoffBase, attempt)
				continue
			}
			return resp, fmt.Errorf("%s %s: server error %d after %d attempts: %w", method, url, resp.StatusCode(), attempt, models.ErrNetworkExhausted)
		}

		return resp, nil
	}
}

func (e *Executor) backoff(base float64, attempt int) {
	e.sleep(time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second)))
}

// isTokenExpired checks the response body for the exact expiry sentinel.
func (e *Executor) isTokenExpired(body []byte) bool {
	var envelope struct {
		ErrMsg string `json:"errmsg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.ErrMsg == tokenExpiredSentinel
}
