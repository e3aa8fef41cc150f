package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// RenderSession is a live headless-browser tab. Sessions are scarce: the
// caller that opens one owns it and must Close it on every exit path,
// success or failure.
type RenderSession interface {
	Navigate(ctx context.Context, url string) error
	InjectCSS(ctx context.Context, css string) error
	CapturePDF(ctx context.Context, headerHTML, footerHTML string) ([]byte, error)
	CaptureHTML(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory opens render sessions. Batch runs open exactly one session
// and share it across every PDF/HTML item.
type SessionFactory interface {
	New(ctx context.Context) (RenderSession, error)
}

// ChromeFactory creates chromedp-backed sessions, either against a remote
// DevTools websocket or a locally launched browser.
type ChromeFactory struct {
	WSURL string
}

// New opens a fresh browser tab.
func (f *ChromeFactory) New(ctx context.Context) (RenderSession, error) {
	var cancels []context.CancelFunc

	allocCtx := ctx
	if f.WSURL != "" {
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, f.WSURL)
		cancels = append(cancels, cancel)
	} else {
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
		cancels = append(cancels, cancel)
	}

	tabCtx, cancel := chromedp.NewContext(allocCtx)
	cancels = append(cancels, cancel)

	// Force the browser to start now so factory errors surface here rather
	// than on the first Navigate.
	if err := chromedp.Run(tabCtx); err != nil {
		for i := len(cancels) - 1; i >= 0; i-- {
			cancels[i]()
		}
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	return &chromeSession{ctx: tabCtx, cancels: cancels}, nil
}

type chromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Small settle window for late asset loads in lieu of a true
		// network-idle event.
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (s *chromeSession) InjectCSS(ctx context.Context, css string) error {
	script := fmt.Sprintf(`(() => {
		const style = document.createElement('style');
		style.textContent = %q;
		document.head.appendChild(style);
	})()`, css)

	if err := s.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("failed to inject stylesheet: %w", err)
	}
	return nil
}

func (s *chromeSession) CapturePDF(ctx context.Context, headerHTML, footerHTML string) ([]byte, error) {
	var pdf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate(headerHTML).
			WithFooterTemplate(footerHTML).
			WithMarginTop(0.6).
			WithMarginBottom(0.6).
			Do(ctx)
		if err != nil {
			return err
		}
		pdf = buf
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("PDF capture failed: %w", err)
	}
	return pdf, nil
}

func (s *chromeSession) CaptureHTML(ctx context.Context) (string, error) {
	var out string
	if err := s.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("DOM capture failed: %w", err)
	}
	return out, nil
}

// run executes actions on the tab while honoring the caller's deadline.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chromeSession) Close() error {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	return nil
}
