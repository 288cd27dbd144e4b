package schemas

import (
	"context"
	"fmt"
	"strings"
)

// -- Element Snapshot Schemas --

// FrameSeparator joins the frame element XPaths of nested frames, outermost first.
const FrameSeparator = " >> "

// Locator addresses an element through its owning frame. Frame is empty for
// the top-level document; otherwise it is the XPath of the frame element,
// or a FrameSeparator-joined chain of them for nested frames.
type Locator struct {
	Frame   string `json:"frame"`
	Element string `json:"element"`
}

// InFrame reports whether the element lives inside a sub-frame.
func (l Locator) InFrame() bool { return l.Frame != "" }

// FramePath splits Frame into the frame element XPaths to descend through.
func (l Locator) FramePath() []string {
	if l.Frame == "" {
		return nil
	}
	return strings.Split(l.Frame, FrameSeparator)
}

// Box is an element's bounding box in CSS pixels.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementNode is an actionable element captured by a snapshot.
type ElementNode struct {
	Tag        string            `json:"tag"`
	Role       string            `json:"role"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Box        Box               `json:"box"`
	Center     Point             `json:"center"`
	Locator    Locator           `json:"locator"`
}

// TextNode is a non-actionable element with informative text.
type TextNode struct {
	Tag     string  `json:"tag"`
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Center  Point   `json:"center"`
	Locator Locator `json:"locator"`
}

// TabInfo describes an open tab.
type TabInfo struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (t TabInfo) String() string {
	return fmt.Sprintf("%d - Title: %s - URL: %s", t.Index, t.Title, t.URL)
}

// PageState is the structured view of the environment handed to the model
// after an environment-affecting action.
type PageState struct {
	CurrentTab  TabInfo       `json:"current_tab"`
	Tabs        []TabInfo     `json:"tabs"`
	Interactive []ElementNode `json:"interactive"`
	Informative []TextNode    `json:"informative"`
	// Screenshot holds a JPEG of the marked viewport when vision is enabled.
	Screenshot []byte `json:"-"`
}

// ScrollPosition is the vertical scroll offset of the active page.
type ScrollPosition struct {
	Y    float64 `json:"y"`
	MaxY float64 `json:"max_y"`
}

// ScrollDirection is the direction of a scroll action.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// -- Browser Session Interface --

// BrowserSession is the facade over a controlled browser: one active tab among
// many, an element index for the last snapshot, and the primitives tools act with.
type BrowserSession interface {
	ID() string

	// ElementByIndex resolves an index from the most recent snapshot.
	// Unknown indices yield a CodeNotFound error.
	ElementByIndex(index int) (ElementNode, error)

	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	Click(ctx context.Context, loc Locator) error
	Type(ctx context.Context, loc Locator, text string, clear bool) error
	PressKeys(ctx context.Context, keys string, times int) error
	// Scroll moves the page. An amount of zero scrolls one page.
	Scroll(ctx context.Context, direction ScrollDirection, amount int) error
	ScrollPosition(ctx context.Context) (ScrollPosition, error)
	SelectOptions(ctx context.Context, loc Locator, labels []string) error
	UploadFiles(ctx context.Context, loc Locator, paths []string) error
	PageHTML(ctx context.Context) (string, error)

	OpenTab(ctx context.Context) error
	// CloseTab closes the active tab and activates the last remaining one.
	// Closing the only tab is rejected.
	CloseTab(ctx context.Context) error
	// SwitchTab activates the tab at index. Out of range yields CodeNotFound
	// and leaves the active tab unchanged.
	SwitchTab(ctx context.Context, index int) error
	Tabs(ctx context.Context) ([]TabInfo, error)
	CurrentTab(ctx context.Context) (TabInfo, error)

	// Observe snapshots the active tab and rebuilds the element index.
	Observe(ctx context.Context, vision bool) (*PageState, error)

	DownloadsDir() string
	UploadsDir() string

	Close(ctx context.Context) error
}

// SessionFactory creates browser sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}
