// Package dtek drives a headless browser session against the DTEK portal
// and turns one street query into a validated schedule payload.
//
// The portal has no public API: the schedule endpoint sits behind an
// anti-bot gate and only answers XHR requests carrying the cookies and CSRF
// token of a real page session. The client therefore keeps a warm chromedp
// page on the shutdowns page and issues the form POST from inside that page,
// so origin, referer and cookies match the site's own AJAX client exactly.
package dtek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/odanko/outagebot/internal/clock"
	"github.com/odanko/outagebot/internal/schedule"
)

const (
	defaultBaseURL = "https://www.dtek-kem.com.ua"
	shutdownsPath  = "/ua/shutdowns"
	ajaxPath       = "/ua/ajax"

	// freshnessLayout is the wall-clock format the portal's own script puts
	// into the updateFact form field. The plus is literal.
	freshnessLayout = "02.01.2006+15:04"
)

// csrfScript mirrors the lookup chain of the portal's page scripts: meta
// tag first, then the yii helper, then known globals. Empty string when the
// page exposes no token; the server does not always enforce it.
const csrfScript = `(() => {
	const m = document.querySelector('meta[name="csrf-token"]');
	if (m && m.content) return m.content;
	if (window.yii && window.yii.getCsrfToken) return window.yii.getCsrfToken();
	return window.csrfToken || window._csrfToken || "";
})()`

// Config controls the fetch client.
type Config struct {
	BaseURL      string
	Headless     bool
	UserAgent    string
	NavTimeout   time.Duration // session establishment budget
	SettleDelay  time.Duration // grace for deferred page scripts after load
	FetchTimeout time.Duration // per-query budget
	CacheTTL     time.Duration // 0 disables the street cache
	RateLimitQPS float64       // provider-wide politeness cap, 0 disables
}

// Client performs address queries through one browser session. At most one
// query is in flight per Client; callers needing parallelism run multiple
// clients.
type Client struct {
	cfg     Config
	clk     clock.Clock
	logger  *zap.Logger
	limiter *rate.Limiter
	cache   *payloadCache

	mu          sync.Mutex
	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc
}

// New creates a Client. The browser session is established lazily on the
// first query.
func New(cfg Config, clk clock.Clock, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 1200 * time.Millisecond
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimitQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), 1)
	}
	return &Client{
		cfg:     cfg,
		clk:     clk,
		logger:  logger,
		limiter: limiter,
		cache:   newPayloadCache(cfg.CacheTTL, clk),
	}
}

// Close tears down the browser session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// FetchSchedule runs one logical address query for a street and returns the
// parsed payload or a typed failure (SessionError, TimeoutError,
// UpstreamFormatError).
func (c *Client) FetchSchedule(ctx context.Context, street string) (*schedule.Payload, error) {
	if street == "" {
		return nil, errors.New("street must not be empty")
	}
	if p, ok := c.cache.get(street); ok {
		c.logger.Debug("schedule served from cache", zap.String("street", street))
		return p, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.classify(fmt.Errorf("rate limit wait: %w", err), ctx)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have filled the cache while we waited on the lock.
	if p, ok := c.cache.get(street); ok {
		return p, nil
	}

	if err := c.ensureSessionLocked(); err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(c.pageCtx, c.cfg.FetchTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	res, err := c.postQuery(qctx, street)
	if err != nil {
		// A dead tab poisons every later query; rebuild next time.
		c.teardownLocked()
		return nil, c.classify(err, qctx)
	}

	payload, perr := schedule.Parse([]byte(res.Body))
	if perr != nil {
		return nil, &UpstreamFormatError{
			Status:      res.Status,
			ContentType: res.ContentType,
			BodyPrefix:  snippet(res.Body),
		}
	}

	c.cache.put(street, payload)
	return payload, nil
}

// ensureSessionLocked lazily boots the browser and parks a tab on the
// shutdowns page. Callers hold c.mu.
func (c *Client) ensureSessionLocked() error {
	if c.pageCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	navCtx, navCancel := context.WithTimeout(pageCtx, c.cfg.NavTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(c.cfg.BaseURL+shutdownsPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
	)
	if err != nil {
		pageCancel()
		allocCancel()
		return &SessionError{Op: "establish", Err: err}
	}

	c.allocCancel = allocCancel
	c.pageCtx = pageCtx
	c.pageCancel = pageCancel
	c.logger.Info("dtek browser session established", zap.String("page", c.cfg.BaseURL+shutdownsPath))
	return nil
}

func (c *Client) teardownLocked() {
	if c.pageCancel != nil {
		c.pageCancel()
		c.pageCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.pageCtx = nil
}

// ajaxResult is what the in-page fetch hands back.
type ajaxResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// postQuery harvests the CSRF token and issues the form POST from inside
// the page.
func (c *Client) postQuery(ctx context.Context, street string) (ajaxResult, error) {
	var token string
	if err := chromedp.Run(ctx, chromedp.Evaluate(csrfScript, &token)); err != nil {
		// Token absence is not fatal; the server may not enforce it.
		c.logger.Debug("csrf token harvest failed", zap.Error(err))
		token = ""
	}

	script, err := ajaxScript(street, token, c.clk.Now())
	if err != nil {
		return ajaxResult{}, fmt.Errorf("build ajax script: %w", err)
	}

	var res ajaxResult
	err = chromedp.Run(ctx, chromedp.Evaluate(script, &res,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return ajaxResult{}, fmt.Errorf("in-page ajax: %w", err)
	}
	return res, nil
}

// queryForm builds the form body the portal's own XHR sends.
func queryForm(street string, now time.Time) url.Values {
	form := url.Values{}
	form.Set("method", "getHomeNum")
	form.Set("data[0][name]", "street")
	form.Set("data[0][value]", street)
	form.Set("data[1][name]", "updateFact")
	form.Set("data[1][value]", now.Format(freshnessLayout))
	return form
}

// ajaxScript renders the in-page fetch call. Origin, Referer and cookies
// come from the browser; only the XHR-identifying headers are explicit.
func ajaxScript(street, token string, now time.Time) (string, error) {
	headers := map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
		"Content-Type":     "application/x-www-form-urlencoded; charset=UTF-8",
	}
	if token != "" {
		headers["X-CSRF-Token"] = token
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}

	script := fmt.Sprintf(`(async () => {
	const resp = await fetch(%q, {
		method: "POST",
		headers: %s,
		body: %q,
		credentials: "same-origin",
	});
	const body = await resp.text();
	return {
		status: resp.status,
		contentType: resp.headers.get("content-type") || "",
		body: body,
	};
})()`, ajaxPath, headersJSON, queryForm(street, now).Encode())
	return script, nil
}

// classify maps low-level chromedp failures onto the error taxonomy.
func (c *Client) classify(err error, ctx context.Context) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	return &SessionError{Op: "query", Err: err}
}

// forwardCancel propagates cancellation of the caller's context into the
// query context, which is derived from the long-lived page context instead.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
