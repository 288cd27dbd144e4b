// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"

	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
)

// resolveElementJS walks the frame chain from the top document and returns
// the element the locator points at, or null.
const resolveElementJS = `(function(frames, xpath) {
  const find = (doc, path) => doc.evaluate(path, doc, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  let doc = document;
  for (const path of frames) {
    const host = find(doc, path);
    if (!host || !host.contentDocument) return null;
    doc = host.contentDocument;
  }
  return find(doc, xpath);
})(%s, %s)`

// clickPointJS scrolls the element into view and returns its center in top
// level viewport coordinates.
const clickPointJS = `function() {
  this.scrollIntoView({ block: 'center', inline: 'center' });
  const r = this.getBoundingClientRect();
  let x = r.left + r.width / 2;
  let y = r.top + r.height / 2;
  for (let w = this.ownerDocument.defaultView; w && w.frameElement; w = w.parent) {
    const f = w.frameElement.getBoundingClientRect();
    x += f.left;
    y += f.top;
  }
  return { x: x, y: y };
}`

const focusJS = `function() { this.focus(); }`

const clearAndFocusJS = `function() {
  this.focus();
  if ('value' in this) {
    this.value = '';
  } else if (this.isContentEditable) {
    this.textContent = '';
  }
  this.dispatchEvent(new Event('input', { bubbles: true }));
}`

// selectOptionsJS returns an empty string on success and a reason otherwise.
const selectOptionsJS = `function() {
  const labels = %s;
  if (this.tagName !== 'SELECT') return 'element is not a <select>';
  const options = Array.from(this.options);
  const picked = [];
  for (const label of labels) {
    const o = options.find((o) => o.label === label || o.text.trim() === label || o.value === label);
    if (!o) return 'no option labelled ' + JSON.stringify(label);
    picked.push(o);
  }
  if (!this.multiple && picked.length > 1) return 'element accepts a single option';
  options.forEach((o) => { o.selected = picked.includes(o); });
  this.dispatchEvent(new Event('input', { bubbles: true }));
  this.dispatchEvent(new Event('change', { bubbles: true }));
  return '';
}`

const viewportJS = `({ width: window.innerWidth, height: window.innerHeight })`

const scrollPositionJS = `({
  y: window.scrollY,
  max_y: Math.max(0, document.documentElement.scrollHeight - window.innerHeight)
})`

const pageHTMLJS = `document.documentElement.outerHTML`

func (t *cdpTarget) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, func(ctx context.Context) error {
		return chromedp.Navigate(url).Do(ctx)
	})
}

func (t *cdpTarget) History(ctx context.Context, delta int) error {
	action := chromedp.NavigateBack()
	if delta > 0 {
		action = chromedp.NavigateForward()
	}
	return t.run(ctx, action.Do)
}

func (t *cdpTarget) Click(ctx context.Context, loc schemas.Locator) error {
	return t.withElement(ctx, loc, func(ctx context.Context, id runtime.RemoteObjectID) error {
		raw, err := callOn(ctx, id, clickPointJS)
		if err != nil {
			return err
		}
		var p schemas.Point
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding click point: %w", err)
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, p.X, p.Y).WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, p.X, p.Y).WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
}

func (t *cdpTarget) Type(ctx context.Context, loc schemas.Locator, text string, clear bool) error {
	return t.withElement(ctx, loc, func(ctx context.Context, id runtime.RemoteObjectID) error {
		fn := focusJS
		if clear {
			fn = clearAndFocusJS
		}
		if _, err := callOn(ctx, id, fn); err != nil {
			return err
		}
		return chromedp.KeyEvent(text).Do(ctx)
	})
}

func (t *cdpTarget) PressKey(ctx context.Context, combo keyCombo) error {
	return t.run(ctx, combo.action().Do)
}

// Scroll turns the wheel over the middle of the viewport, which also moves
// nested scroll containers under the pointer.
func (t *cdpTarget) Scroll(ctx context.Context, direction schemas.ScrollDirection, deltaY int) error {
	return t.run(ctx, func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(viewportJS).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		var vp struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		}
		if err := json.Unmarshal(remoteValue(res), &vp); err != nil {
			return fmt.Errorf("decoding viewport: %w", err)
		}

		dy := float64(deltaY)
		if deltaY == 0 {
			dy = vp.Height
		}
		if direction == schemas.ScrollUp {
			dy = -dy
		}
		return input.DispatchMouseEvent(input.MouseWheel, vp.Width/2, vp.Height/2).
			WithDeltaX(0).
			WithDeltaY(dy).
			Do(ctx)
	})
}

func (t *cdpTarget) ScrollPosition(ctx context.Context) (schemas.ScrollPosition, error) {
	var pos schemas.ScrollPosition
	raw, err := t.Evaluate(ctx, dom.MainFrame, scrollPositionJS)
	if err != nil {
		return pos, err
	}
	if err := json.Unmarshal(raw, &pos); err != nil {
		return pos, fmt.Errorf("decoding scroll position: %w", err)
	}
	return pos, nil
}

func (t *cdpTarget) SelectOptions(ctx context.Context, loc schemas.Locator, labels []string) error {
	payload, err := json.Marshal(labels)
	if err != nil {
		return err
	}
	return t.withElement(ctx, loc, func(ctx context.Context, id runtime.RemoteObjectID) error {
		raw, err := callOn(ctx, id, fmt.Sprintf(selectOptionsJS, payload))
		if err != nil {
			return err
		}
		var reason string
		if err := json.Unmarshal(raw, &reason); err != nil {
			return fmt.Errorf("decoding selection result: %w", err)
		}
		if reason != "" {
			return schemas.NewError(schemas.CodeValidation, "cannot select %v: %s", labels, reason)
		}
		return nil
	})
}

func (t *cdpTarget) UploadFiles(ctx context.Context, loc schemas.Locator, paths []string) error {
	return t.withElement(ctx, loc, func(ctx context.Context, id runtime.RemoteObjectID) error {
		node, err := cdpdom.DescribeNode().WithObjectID(id).Do(ctx)
		if err != nil {
			return fmt.Errorf("describing file input: %w", err)
		}
		return cdpdom.SetFileInputFiles(paths).WithBackendNodeID(node.BackendNodeID).Do(ctx)
	})
}

func (t *cdpTarget) HTML(ctx context.Context) (string, error) {
	raw, err := t.Evaluate(ctx, dom.MainFrame, pageHTMLJS)
	if err != nil {
		return "", err
	}
	var html string
	if err := json.Unmarshal(raw, &html); err != nil {
		return "", fmt.Errorf("decoding page html: %w", err)
	}
	return html, nil
}

// withElement resolves loc in the page's main world and hands the element's
// remote object to fn. The object is released afterwards.
func (t *cdpTarget) withElement(ctx context.Context, loc schemas.Locator, fn func(ctx context.Context, id runtime.RemoteObjectID) error) error {
	frames := loc.FramePath()
	if frames == nil {
		frames = []string{}
	}
	framesJSON, err := json.Marshal(frames)
	if err != nil {
		return err
	}
	xpathJSON, err := json.Marshal(loc.Element)
	if err != nil {
		return err
	}

	return t.run(ctx, func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(fmt.Sprintf(resolveElementJS, framesJSON, xpathJSON)).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res == nil || res.ObjectID == "" {
			return schemas.NewError(schemas.CodeNotFound, "element %s is no longer on the page", loc.Element)
		}
		defer func() { _ = runtime.ReleaseObject(res.ObjectID).Do(ctx) }()
		return fn(ctx, res.ObjectID)
	})
}

func callOn(ctx context.Context, id runtime.RemoteObjectID, fn string) ([]byte, error) {
	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(id).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exc
	}
	return remoteValue(res), nil
}
