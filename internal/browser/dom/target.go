// browser/dom/target.go
package dom

import (
	"context"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// MainFrame is the frame ID used to address the top-level document.
const MainFrame = ""

// Frame is one document in the page's frame tree.
type Frame struct {
	ID       string
	ParentID string
	URL      string
	Detached bool
}

// FrameElement describes the <iframe>/<frame> element that hosts a sub-frame,
// as seen from the parent document.
type FrameElement struct {
	// XPath locates the element in its parent document.
	XPath string
	// Style is the raw inline style attribute.
	Style string
	// Box is nil when the element has no layout box.
	Box *schemas.Box
}

// Target is the page surface the indexer reads from. The browser package
// provides the CDP-backed implementation.
type Target interface {
	// Frames lists the page's frames in document order, main frame first.
	Frames(ctx context.Context) ([]Frame, error)
	// Evaluate runs expression in the given frame (MainFrame for the top
	// document), awaiting promises, and returns the JSON encoded result.
	Evaluate(ctx context.Context, frameID, expression string) ([]byte, error)
	// FrameElement inspects the element hosting frameID. A nil result means
	// the element could not be found.
	FrameElement(ctx context.Context, frameID string) (*FrameElement, error)
	// Screenshot captures the current viewport as a JPEG.
	Screenshot(ctx context.Context) ([]byte, error)
}
