package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetcher retrieves the rendered HTML for a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (html string, err error)
}

// HTTPFetcher fetches pages with a plain GET, the default path for
// sources that don't set SpiderConfig.UseHeadless: most documentation
// sites serve static HTML and never need a browser.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher builds an HTTPFetcher with a bounded per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("crawl: build request: %w", err)
	}
	req.Header.Set("User-Agent", "SibylCrawler/1.0 (+https://sibyl.invalid/bot)")
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("crawl: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("crawl: fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("crawl: read body %s: %w", url, err)
	}
	return string(body), nil
}

// HeadlessFetcher renders a page through headless Chrome before reading
// its DOM, for sources whose content only appears after client-side
// JavaScript runs (SpiderConfig.UseHeadless).
type HeadlessFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewHeadlessFetcher starts a shared Chrome allocator. Call Close when
// the crawler is done; individual Fetch calls each get their own tab.
func NewHeadlessFetcher(timeout time.Duration) *HeadlessFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	return &HeadlessFetcher{allocCtx: allocCtx, cancel: cancel, timeout: timeout}
}

func (f *HeadlessFetcher) Close() {
	f.cancel()
}

func (f *HeadlessFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, f.timeout)
	defer timeoutCancel()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("crawl: headless fetch %s: %w", url, err)
	}
	return html, nil
}
