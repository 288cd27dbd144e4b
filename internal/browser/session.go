// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

const closeTimeout = 10 * time.Second

// Session is one agent's window onto the browser: an ordered list of tabs
// with exactly one active, and the element index of the last observation.
type Session struct {
	id      string
	cfg     config.BrowserConfig
	logger  *zap.Logger
	driver  tabDriver
	indexer *dom.Indexer
	onClose func()

	mu       sync.Mutex
	tabs     []*tab
	active   int
	snapshot *dom.Snapshot
	isClosed bool
}

// Ensure Session implements the interface.
var _ schemas.BrowserSession = (*Session)(nil)

// newSession opens the session's first tab.
func newSession(ctx context.Context, cfg config.BrowserConfig, driver tabDriver, indexer *dom.Indexer, logger *zap.Logger, onClose func()) (*Session, error) {
	sessionID := uuid.New().String()
	s := &Session{
		id:       sessionID,
		cfg:      cfg,
		logger:   logger.With(zap.String("session_id", sessionID)),
		driver:   driver,
		indexer:  indexer,
		onClose:  onClose,
		snapshot: dom.EmptySnapshot(),
	}

	first, err := driver.NewTab(ctx)
	if err != nil {
		return nil, schemas.WrapError(schemas.CodeEnvironment, err, "opening the first tab")
	}
	s.tabs = []*tab{first}
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) DownloadsDir() string { return s.cfg.DownloadsDir }
func (s *Session) UploadsDir() string   { return s.cfg.UploadsDir }

// ElementByIndex resolves a label from the most recent observation.
func (s *Session) ElementByIndex(index int) (schemas.ElementNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Lookup(index)
}

// current returns the active tab's target.
func (s *Session) current() (tabTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil, schemas.NewError(schemas.CodeEnvironment, "browser session %s is closed", s.id)
	}
	return s.driver.Target(s.tabs[s.active]), nil
}

// act runs fn against the active tab and pauses for the configured slow-mo
// afterwards. Unclassified failures become environment faults.
func (s *Session) act(ctx context.Context, what string, fn func(ctx context.Context, t tabTarget) error) error {
	t, err := s.current()
	if err != nil {
		return err
	}
	opCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := fn(opCtx, t); err != nil {
		return classify(err, what)
	}
	return pause(ctx, s.cfg.SlowMo)
}

func classify(err error, what string) error {
	var classified *schemas.Error
	if errors.As(err, &classified) {
		return err
	}
	return schemas.WrapError(schemas.CodeEnvironment, err, "%s", what)
}

// pause waits for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	t, err := s.current()
	if err != nil {
		return err
	}
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := t.Navigate(navCtx, url); err != nil {
		return classify(err, fmt.Sprintf("navigating to %s", url))
	}
	return pause(ctx, s.cfg.MinWait)
}

func (s *Session) GoBack(ctx context.Context) error {
	return s.act(ctx, "going back", func(ctx context.Context, t tabTarget) error {
		return t.History(ctx, -1)
	})
}

func (s *Session) GoForward(ctx context.Context) error {
	return s.act(ctx, "going forward", func(ctx context.Context, t tabTarget) error {
		return t.History(ctx, 1)
	})
}

func (s *Session) Click(ctx context.Context, loc schemas.Locator) error {
	return s.act(ctx, "clicking "+loc.Element, func(ctx context.Context, t tabTarget) error {
		return t.Click(ctx, loc)
	})
}

func (s *Session) Type(ctx context.Context, loc schemas.Locator, text string, clear bool) error {
	return s.act(ctx, "typing into "+loc.Element, func(ctx context.Context, t tabTarget) error {
		return t.Type(ctx, loc, text, clear)
	})
}

// PressKeys presses a combination such as "Control+A" the given number of times.
func (s *Session) PressKeys(ctx context.Context, keys string, times int) error {
	combo, err := parseKeyCombo(keys)
	if err != nil {
		return err
	}
	if times < 1 {
		times = 1
	}
	return s.act(ctx, "pressing "+keys, func(ctx context.Context, t tabTarget) error {
		for i := 0; i < times; i++ {
			if err := t.PressKey(ctx, combo); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Session) Scroll(ctx context.Context, direction schemas.ScrollDirection, amount int) error {
	if direction != schemas.ScrollUp && direction != schemas.ScrollDown {
		return schemas.NewError(schemas.CodeValidation, "unknown scroll direction %q", direction)
	}
	return s.act(ctx, "scrolling "+string(direction), func(ctx context.Context, t tabTarget) error {
		return t.Scroll(ctx, direction, amount)
	})
}

func (s *Session) ScrollPosition(ctx context.Context) (schemas.ScrollPosition, error) {
	t, err := s.current()
	if err != nil {
		return schemas.ScrollPosition{}, err
	}
	pos, err := t.ScrollPosition(ctx)
	if err != nil {
		return pos, classify(err, "reading scroll position")
	}
	return pos, nil
}

func (s *Session) SelectOptions(ctx context.Context, loc schemas.Locator, labels []string) error {
	return s.act(ctx, "selecting options in "+loc.Element, func(ctx context.Context, t tabTarget) error {
		return t.SelectOptions(ctx, loc, labels)
	})
}

func (s *Session) UploadFiles(ctx context.Context, loc schemas.Locator, paths []string) error {
	return s.act(ctx, "uploading files to "+loc.Element, func(ctx context.Context, t tabTarget) error {
		return t.UploadFiles(ctx, loc, paths)
	})
}

func (s *Session) PageHTML(ctx context.Context) (string, error) {
	t, err := s.current()
	if err != nil {
		return "", err
	}
	html, err := t.HTML(ctx)
	if err != nil {
		return "", classify(err, "reading page html")
	}
	return html, nil
}

// -- Tabs --

// syncTabs reconciles the tab list with the browser. Pages opened by one of
// our tabs (popups, target=_blank links) are adopted; tabs that are gone are
// dropped. Must be called with s.mu held.
func (s *Session) syncTabs(ctx context.Context) error {
	targets, err := s.driver.PageTargets(ctx)
	if err != nil {
		return err
	}

	alive := make(map[string]bool, len(targets))
	for _, pt := range targets {
		alive[pt.ID] = true
	}
	owned := make(map[string]bool, len(s.tabs))
	for _, t := range s.tabs {
		owned[t.id] = true
	}

	activeID := s.tabs[s.active].id
	kept := s.tabs[:0]
	for _, t := range s.tabs {
		if alive[t.id] {
			kept = append(kept, t)
			continue
		}
		t.cancel()
	}
	s.tabs = kept

	for _, pt := range targets {
		if owned[pt.ID] || !owned[pt.OpenerID] {
			continue
		}
		t, err := s.driver.AttachTab(ctx, pt.ID)
		if err != nil {
			s.logger.Warn("Could not adopt tab opened by the page.", zap.String("target_id", pt.ID), zap.Error(err))
			continue
		}
		s.tabs = append(s.tabs, t)
		owned[pt.ID] = true
		// The page asked for a new window; follow it like a user would.
		activeID = t.id
	}

	if len(s.tabs) == 0 {
		return schemas.NewError(schemas.CodeEnvironment, "all tabs of session %s are gone", s.id)
	}
	s.active = len(s.tabs) - 1
	for i, t := range s.tabs {
		if t.id == activeID {
			s.active = i
		}
	}
	return nil
}

func (s *Session) tabInfos(ctx context.Context) ([]schemas.TabInfo, error) {
	targets, err := s.driver.PageTargets(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]pageTarget, len(targets))
	for _, pt := range targets {
		byID[pt.ID] = pt
	}
	infos := make([]schemas.TabInfo, len(s.tabs))
	for i, t := range s.tabs {
		pt := byID[t.id]
		infos[i] = schemas.TabInfo{Index: i, Title: pt.Title, URL: pt.URL}
	}
	return infos, nil
}

func (s *Session) Tabs(ctx context.Context) ([]schemas.TabInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncTabs(ctx); err != nil {
		return nil, classify(err, "listing tabs")
	}
	infos, err := s.tabInfos(ctx)
	if err != nil {
		return nil, classify(err, "listing tabs")
	}
	return infos, nil
}

func (s *Session) CurrentTab(ctx context.Context) (schemas.TabInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncTabs(ctx); err != nil {
		return schemas.TabInfo{}, classify(err, "reading current tab")
	}
	infos, err := s.tabInfos(ctx)
	if err != nil {
		return schemas.TabInfo{}, classify(err, "reading current tab")
	}
	return infos[s.active], nil
}

// OpenTab opens a blank tab and makes it the active one.
func (s *Session) OpenTab(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.driver.NewTab(ctx)
	if err != nil {
		return classify(err, "opening tab")
	}
	s.tabs = append(s.tabs, t)
	s.active = len(s.tabs) - 1
	s.snapshot = dom.EmptySnapshot()
	return nil
}

// CloseTab closes the active tab. The last tab in the list becomes active.
func (s *Session) CloseTab(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncTabs(ctx); err != nil {
		return classify(err, "closing tab")
	}
	if len(s.tabs) <= 1 {
		return schemas.NewError(schemas.CodeValidation, "cannot close the last remaining tab")
	}

	closing := s.tabs[s.active]
	s.tabs = append(s.tabs[:s.active], s.tabs[s.active+1:]...)
	s.active = len(s.tabs) - 1
	s.snapshot = dom.EmptySnapshot()

	if err := s.driver.CloseTab(ctx, closing); err != nil {
		s.logger.Warn("Error closing tab.", zap.String("target_id", closing.id), zap.Error(err))
	}
	if err := s.driver.ActivateTab(ctx, s.tabs[s.active]); err != nil {
		return classify(err, "activating tab")
	}
	return nil
}

// SwitchTab activates the tab at index. Out of range leaves the active tab unchanged.
func (s *Session) SwitchTab(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncTabs(ctx); err != nil {
		return classify(err, "switching tab")
	}
	if index < 0 || index >= len(s.tabs) {
		return schemas.NewError(schemas.CodeNotFound, "Tab index %d is out of range. Available tabs: %d", index, len(s.tabs))
	}
	if err := s.driver.ActivateTab(ctx, s.tabs[index]); err != nil {
		return classify(err, "switching tab")
	}
	s.active = index
	s.snapshot = dom.EmptySnapshot()
	return nil
}

// Observe snapshots the active tab and replaces the element index.
func (s *Session) Observe(ctx context.Context, vision bool) (*schemas.PageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil, schemas.NewError(schemas.CodeEnvironment, "browser session %s is closed", s.id)
	}
	if err := s.syncTabs(ctx); err != nil {
		return nil, classify(err, "observing page")
	}

	snap := s.indexer.Snapshot(ctx, s.driver.Target(s.tabs[s.active]), vision)
	s.snapshot = snap

	infos, err := s.tabInfos(ctx)
	if err != nil {
		return nil, classify(err, "observing page")
	}
	return &schemas.PageState{
		CurrentTab:  infos[s.active],
		Tabs:        infos,
		Interactive: snap.Interactive,
		Informative: snap.Informative,
		Screenshot:  snap.Screenshot,
	}, nil
}

// Close closes every tab of the session. It is safe to call more than once,
// and it still closes the tabs when ctx is already cancelled.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	tabs := s.tabs
	s.tabs = nil
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.", zap.Int("tabs", len(tabs)))

	closeCtx, cancel := context.WithTimeout(Detach(ctx), closeTimeout)
	defer cancel()
	for _, t := range tabs {
		if err := s.driver.CloseTab(closeCtx, t); err != nil {
			s.logger.Debug("Error closing tab during session teardown.", zap.String("target_id", t.id), zap.Error(err))
		}
	}

	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
