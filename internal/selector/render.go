package selector

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Renderer returns the HTML of a page after client-side rendering.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer drives one headless Chrome, opening a tab per page.
// Requires Chrome or Chromium on the host.
type ChromeRenderer struct {
	timeout time.Duration
	settle  time.Duration

	mu          sync.Mutex
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeRenderer allocates the browser lazily on first Render.
// settle is the pause after the body is ready, for scripts to populate it.
func NewChromeRenderer(timeout, settle time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if settle < 0 {
		settle = 0
	}
	return &ChromeRenderer{timeout: timeout, settle: settle}
}

func (c *ChromeRenderer) browser(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCtx != nil {
		return c.browserCtx
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)
	c.browserCtx, c.cancelAlloc, c.cancelTab = browserCtx, cancelAlloc, cancelTab
	return browserCtx
}

// Render navigates to url and returns the outer HTML of the document.
func (c *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(c.browser(ctx))
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	// Propagate the caller's cancellation into the tab.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var page string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.settle),
		chromedp.OuterHTML("html", &page),
	)
	if err != nil {
		return "", eris.Wrapf(err, "selector: render %s", url)
	}
	return page, nil
}

// Close shuts the browser down.
func (c *ChromeRenderer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelTab != nil {
		c.cancelTab()
		c.cancelAlloc()
		c.browserCtx = nil
	}
}
