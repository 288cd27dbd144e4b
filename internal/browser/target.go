// internal/browser/target.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const isolatedWorldName = "browser_agent"

// describeFrameElementJS runs on an <iframe> element and reports where it
// sits in its document. The XPath format matches the one collector.js emits.
const describeFrameElementJS = `function() {
  const parts = [];
  for (let el = this; el && el.nodeType === Node.ELEMENT_NODE; el = el.parentNode) {
    let index = 1;
    for (let sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
      if (sib.tagName === el.tagName) index++;
    }
    parts.unshift(el.tagName.toLowerCase() + '[' + index + ']');
  }
  return { xpath: '/' + parts.join('/'), style: this.getAttribute('style') || '' };
}`

// cdpTarget reads one tab over the DevTools protocol.
type cdpTarget struct {
	tabCtx context.Context
}

var _ dom.Target = (*cdpTarget)(nil)

func (t *cdpTarget) run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := CombineContext(t.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(fn))
}

func (t *cdpTarget) Frames(ctx context.Context) ([]dom.Frame, error) {
	var frames []dom.Frame
	err := t.run(ctx, func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		frames = flattenFrames(tree, nil)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading frame tree: %w", err)
	}
	return frames, nil
}

// flattenFrames lists the tree in document order, parents before children.
func flattenFrames(tree *page.FrameTree, out []dom.Frame) []dom.Frame {
	if tree == nil || tree.Frame == nil {
		return out
	}
	out = append(out, dom.Frame{
		ID:       string(tree.Frame.ID),
		ParentID: string(tree.Frame.ParentID),
		URL:      tree.Frame.URL,
	})
	for _, child := range tree.ChildFrames {
		out = flattenFrames(child, out)
	}
	return out
}

// Evaluate runs sub-frame scripts in an isolated world so page scripts cannot
// interfere. The main frame uses the page's own world, where the labels drawn
// for screenshots live.
func (t *cdpTarget) Evaluate(ctx context.Context, frameID, expression string) ([]byte, error) {
	var out []byte
	err := t.run(ctx, func(ctx context.Context) error {
		params := runtime.Evaluate(expression).WithAwaitPromise(true).WithReturnByValue(true)
		if frameID != dom.MainFrame {
			worldID, err := page.CreateIsolatedWorld(cdp.FrameID(frameID)).WithWorldName(isolatedWorldName).Do(ctx)
			if err != nil {
				return fmt.Errorf("creating isolated world: %w", err)
			}
			params = params.WithContextID(worldID)
		}
		res, exc, err := params.Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		out = remoteValue(res)
		return nil
	})
	return out, err
}

func (t *cdpTarget) FrameElement(ctx context.Context, frameID string) (*dom.FrameElement, error) {
	var el *dom.FrameElement
	err := t.run(ctx, func(ctx context.Context) error {
		backendID, _, err := cdpdom.GetFrameOwner(cdp.FrameID(frameID)).Do(ctx)
		if err != nil {
			return fmt.Errorf("finding frame owner: %w", err)
		}

		info := &dom.FrameElement{}
		if model, err := cdpdom.GetBoxModel().WithBackendNodeID(backendID).Do(ctx); err == nil && model != nil {
			info.Box = borderBox(model)
		}

		obj, err := cdpdom.ResolveNode().WithBackendNodeID(backendID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolving frame owner: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(describeFrameElementJS).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		var desc struct {
			XPath string `json:"xpath"`
			Style string `json:"style"`
		}
		if err := json.Unmarshal(remoteValue(res), &desc); err != nil {
			return fmt.Errorf("decoding frame owner: %w", err)
		}
		info.XPath, info.Style = desc.XPath, desc.Style
		el = info
		return nil
	})
	return el, err
}

func (t *cdpTarget) Screenshot(ctx context.Context) ([]byte, error) {
	var img []byte
	err := t.run(ctx, func(ctx context.Context) error {
		var err error
		img, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(80).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return img, nil
}

func borderBox(model *cdpdom.BoxModel) *schemas.Box {
	if len(model.Border) < 2 {
		return nil
	}
	return &schemas.Box{
		Left:   model.Border[0],
		Top:    model.Border[1],
		Width:  float64(model.Width),
		Height: float64(model.Height),
	}
}

// remoteValue returns the JSON value of obj, "null" for undefined.
func remoteValue(obj *runtime.RemoteObject) []byte {
	if obj == nil || len(obj.Value) == 0 {
		return []byte("null")
	}
	return []byte(obj.Value)
}
