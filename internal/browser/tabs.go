// internal/browser/tabs.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
)

// evasionsJS hides the most common automation tells from page scripts.
const evasionsJS = `(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  if (!window.chrome) window.chrome = { runtime: {} };
  const query = navigator.permissions && navigator.permissions.query;
  if (query) {
    navigator.permissions.query = (p) => p && p.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : query.call(navigator.permissions, p);
  }
})();`

// tab is one page target owned by a session.
type tab struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// pageTarget is the browser's view of an open page.
type pageTarget struct {
	ID       string
	OpenerID string
	Title    string
	URL      string
}

// tabDriver creates and manages page targets. The session keeps the tab
// order and the active tab; the driver only talks to the browser.
type tabDriver interface {
	NewTab(ctx context.Context) (*tab, error)
	AttachTab(ctx context.Context, id string) (*tab, error)
	PageTargets(ctx context.Context) ([]pageTarget, error)
	ActivateTab(ctx context.Context, t *tab) error
	CloseTab(ctx context.Context, t *tab) error
	Target(t *tab) tabTarget
}

// tabTarget is everything a session does inside one tab.
type tabTarget interface {
	dom.Target

	Navigate(ctx context.Context, url string) error
	// History moves back (-1) or forward (+1) in the tab's history.
	History(ctx context.Context, delta int) error
	Click(ctx context.Context, loc schemas.Locator) error
	Type(ctx context.Context, loc schemas.Locator, text string, clear bool) error
	PressKey(ctx context.Context, combo keyCombo) error
	// Scroll moves the page by deltaY pixels, or one viewport when deltaY is zero.
	Scroll(ctx context.Context, direction schemas.ScrollDirection, deltaY int) error
	ScrollPosition(ctx context.Context) (schemas.ScrollPosition, error)
	SelectOptions(ctx context.Context, loc schemas.Locator, labels []string) error
	UploadFiles(ctx context.Context, loc schemas.Locator, paths []string) error
	HTML(ctx context.Context) (string, error)
}

// cdpDriver drives tabs of a single browser over the DevTools protocol.
type cdpDriver struct {
	browserCtx context.Context
	logger     *zap.Logger
}

var _ tabDriver = (*cdpDriver)(nil)

func newCDPDriver(browserCtx context.Context, logger *zap.Logger) *cdpDriver {
	return &cdpDriver{browserCtx: browserCtx, logger: logger}
}

func (d *cdpDriver) start(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc) (*tab, error) {
	// The first Run attaches to the target. It must not carry ctx's deadline,
	// or the tab would be closed when ctx expires.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			return nil, err
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		cancel()
		return nil, fmt.Errorf("tab has no target")
	}

	runCtx, runCancel := CombineContext(tabCtx, ctx)
	defer runCancel()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(evasionsJS).Do(ctx)
		return err
	}))
	if err != nil {
		d.logger.Debug("Failed to install evasions script.", zap.Error(err))
	}
	return &tab{id: string(c.Target.TargetID), ctx: tabCtx, cancel: cancel}, nil
}

func (d *cdpDriver) NewTab(ctx context.Context) (*tab, error) {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx)
	t, err := d.start(ctx, tabCtx, cancel)
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	d.logger.Debug("Opened tab.", zap.String("target_id", t.id))
	return t, nil
}

func (d *cdpDriver) AttachTab(ctx context.Context, id string) (*tab, error) {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(id)))
	t, err := d.start(ctx, tabCtx, cancel)
	if err != nil {
		return nil, fmt.Errorf("attaching to tab %s: %w", id, err)
	}
	d.logger.Debug("Attached to tab opened by the page.", zap.String("target_id", id))
	return t, nil
}

func (d *cdpDriver) PageTargets(ctx context.Context) ([]pageTarget, error) {
	runCtx, cancel := CombineContext(d.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	out := make([]pageTarget, 0, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		out = append(out, pageTarget{
			ID:       string(info.TargetID),
			OpenerID: string(info.OpenerID),
			Title:    info.Title,
			URL:      info.URL,
		})
	}
	return out, nil
}

func (d *cdpDriver) ActivateTab(ctx context.Context, t *tab) error {
	runCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, page.BringToFront())
}

// CloseTab closes the page explicitly, since cancelling a context only
// closes targets that chromedp created itself.
func (d *cdpDriver) CloseTab(ctx context.Context, t *tab) error {
	runCtx, cancel := CombineContext(t.ctx, ctx)
	err := chromedp.Run(runCtx, page.Close())
	cancel()
	t.cancel()
	return err
}

func (d *cdpDriver) Target(t *tab) tabTarget {
	return &cdpTarget{tabCtx: t.ctx}
}
