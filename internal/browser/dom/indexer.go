// browser/dom/indexer.go
package dom

import (
	"context"
	_ "embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// collectorJS installs window.__browserAgent in the document it runs in.
// It is idempotent, so it is evaluated before every read.
//
//go:embed collector.js
var collectorJS string

const (
	getElementsExpr = "window.__browserAgent.getElements();"
	unmarkPageExpr  = "window.__browserAgent.unmarkPage();"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// collectedElement is the wire shape produced by getElements.
type collectedElement struct {
	Tag        string            `json:"tag"`
	Role       string            `json:"role"`
	Name       string            `json:"name"`
	Content    string            `json:"content"`
	Attributes map[string]string `json:"attributes"`
	Box        schemas.Box       `json:"box"`
	Center     schemas.Point     `json:"center"`
	XPath      string            `json:"xpath"`
}

type collection struct {
	Interactive []collectedElement `json:"interactive"`
	Informative []collectedElement `json:"informative"`
}

// Snapshot is one read of the page. Indices into Interactive are the labels
// the model sees and are only valid for this snapshot.
type Snapshot struct {
	Interactive []schemas.ElementNode
	Informative []schemas.TextNode
	Screenshot  []byte

	selectors map[int]schemas.ElementNode
}

func newSnapshot(interactive []schemas.ElementNode, informative []schemas.TextNode, screenshot []byte) *Snapshot {
	if interactive == nil {
		interactive = []schemas.ElementNode{}
	}
	if informative == nil {
		informative = []schemas.TextNode{}
	}
	selectors := make(map[int]schemas.ElementNode, len(interactive))
	for i, n := range interactive {
		selectors[i] = n
	}
	return &Snapshot{
		Interactive: interactive,
		Informative: informative,
		Screenshot:  screenshot,
		selectors:   selectors,
	}
}

// EmptySnapshot is the state before any page has been read.
func EmptySnapshot() *Snapshot {
	return newSnapshot(nil, nil, nil)
}

// SelectorMap returns the label to element mapping.
func (s *Snapshot) SelectorMap() map[int]schemas.ElementNode {
	return s.selectors
}

// Lookup resolves a label from this snapshot.
func (s *Snapshot) Lookup(index int) (schemas.ElementNode, error) {
	n, ok := s.selectors[index]
	if !ok {
		return schemas.ElementNode{}, schemas.NewError(schemas.CodeNotFound, "Element under index %d not found", index)
	}
	return n, nil
}

// Indexer reads interactive and informative elements from every visible
// frame of a page.
type Indexer struct {
	logger     *zap.Logger
	adPatterns []string
}

// NewIndexer creates an indexer that skips frames hosted on any of adPatterns.
func NewIndexer(logger *zap.Logger, adPatterns []string) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		logger:     logger.Named("indexer"),
		adPatterns: adPatterns,
	}
}

// Snapshot reads the page behind t. Any failure yields an empty snapshot so
// the caller always has something to show the model.
func (ix *Indexer) Snapshot(ctx context.Context, t Target, vision bool) *Snapshot {
	snap, err := ix.collect(ctx, t, vision)
	if err != nil {
		ix.logger.Warn("Failed to read elements from page, continuing with an empty index.", zap.Error(err))
		return EmptySnapshot()
	}
	return snap
}

func (ix *Indexer) collect(ctx context.Context, t Target, vision bool) (*Snapshot, error) {
	frames, err := t.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("page has no frames")
	}

	chains, err := ix.frameChains(ctx, t, frames)
	if err != nil {
		return nil, err
	}

	results := make([]*collection, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range frames {
		chain, ok := chains[f.ID]
		if i > 0 && !ok {
			continue
		}
		id := f.ID
		if i == 0 {
			id = MainFrame
		}
		g.Go(func() error {
			raw, err := t.Evaluate(gctx, id, collectorJS+"\n"+getElementsExpr)
			if err != nil {
				return fmt.Errorf("collecting elements from frame %q (%s): %w", f.ID, f.URL, err)
			}
			var c collection
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("decoding elements from frame %q: %w", f.ID, err)
			}
			results[i] = &c
			ix.logger.Debug("Collected frame elements.",
				zap.String("frame_id", f.ID),
				zap.String("frame", chain),
				zap.Int("interactive", len(c.Interactive)),
				zap.Int("informative", len(c.Informative)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var interactive []schemas.ElementNode
	var informative []schemas.TextNode
	for i, c := range results {
		if c == nil {
			continue
		}
		frameLoc := chains[frames[i].ID]
		for _, e := range c.Interactive {
			interactive = append(interactive, schemas.ElementNode{
				Tag:        e.Tag,
				Role:       e.Role,
				Name:       e.Name,
				Attributes: e.Attributes,
				Box:        e.Box,
				Center:     e.Center,
				Locator:    schemas.Locator{Frame: frameLoc, Element: e.XPath},
			})
		}
		for _, e := range c.Informative {
			informative = append(informative, schemas.TextNode{
				Tag:     e.Tag,
				Role:    e.Role,
				Content: e.Content,
				Center:  e.Center,
				Locator: schemas.Locator{Frame: frameLoc, Element: e.XPath},
			})
		}
	}

	var screenshot []byte
	if vision {
		screenshot, err = ix.capture(ctx, t, interactive)
		if err != nil {
			return nil, err
		}
	}
	return newSnapshot(interactive, informative, screenshot), nil
}

// frameChains inspects every sub-frame and returns the locator prefix of each
// frame that should be indexed. The main frame maps to "".
func (ix *Indexer) frameChains(ctx context.Context, t Target, frames []Frame) (map[string]string, error) {
	elements := make([]*FrameElement, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range frames {
		if i == 0 || f.Detached {
			continue
		}
		g.Go(func() error {
			el, err := t.FrameElement(gctx, f.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ix.logger.Debug("Could not inspect frame element.", zap.String("frame_id", f.ID), zap.Error(err))
				return nil
			}
			elements[i] = el
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	xpaths := make(map[string]string, len(frames))
	for i, f := range frames {
		if elements[i] != nil && elements[i].XPath != "" {
			xpaths[f.ID] = elements[i].XPath
		}
	}

	chains := map[string]string{frames[0].ID: ""}
	for i, f := range frames[1:] {
		if !FrameVisible(f, elements[i+1], ix.adPatterns) {
			continue
		}
		chain, ok := chainFor(f, frames, xpaths, frames[0].ID)
		if !ok {
			continue
		}
		chains[f.ID] = chain
	}
	return chains, nil
}

// chainFor joins the frame element XPaths from the main frame down to f.
func chainFor(f Frame, frames []Frame, xpaths map[string]string, mainID string) (string, bool) {
	byID := make(map[string]Frame, len(frames))
	for _, fr := range frames {
		byID[fr.ID] = fr
	}

	var parts []string
	for cur := f; cur.ID != mainID; {
		xp, ok := xpaths[cur.ID]
		if !ok {
			return "", false
		}
		parts = append([]string{xp}, parts...)
		parent, ok := byID[cur.ParentID]
		if !ok || len(parts) > len(frames) {
			return "", false
		}
		cur = parent
	}
	chain := parts[0]
	for _, p := range parts[1:] {
		chain += schemas.FrameSeparator + p
	}
	return chain, true
}

// capture labels each interactive element on the page, screenshots the
// viewport and removes the labels again.
func (ix *Indexer) capture(ctx context.Context, t Target, nodes []schemas.ElementNode) ([]byte, error) {
	boxes := make([]schemas.Box, len(nodes))
	for i, n := range nodes {
		boxes[i] = n.Box
	}
	payload, err := json.Marshal(boxes)
	if err != nil {
		return nil, fmt.Errorf("encoding element boxes: %w", err)
	}

	if _, err := t.Evaluate(ctx, MainFrame, fmt.Sprintf("window.__browserAgent.markPage(%s);", payload)); err != nil {
		return nil, fmt.Errorf("marking page: %w", err)
	}
	img, shotErr := t.Screenshot(ctx)
	if _, err := t.Evaluate(ctx, MainFrame, unmarkPageExpr); err != nil {
		ix.logger.Debug("Failed to remove element labels.", zap.Error(err))
	}
	if shotErr != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", shotErr)
	}
	return img, nil
}
