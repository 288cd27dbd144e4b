// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

const (
	browserStartTimeout = 60 * time.Second
)

// Manager owns the browser process and hands out sessions on it.
type Manager struct {
	cfg     config.BrowserConfig
	logger  *zap.Logger
	indexer *dom.Indexer

	// launch starts the browser and returns a driver for its tabs.
	launch func(ctx context.Context) (tabDriver, error)
	driver tabDriver

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // tracks open sessions so Shutdown can wait for them.

	// initMu serializes launches. A failed launch leaves driver nil so the
	// next session request tries again.
	initMu sync.Mutex
}

// Ensure Manager can be handed to the agent as a session factory.
var _ schemas.SessionFactory = (*Manager)(nil)

// NewManager creates a browser manager. The browser itself is launched when
// the first session is requested.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var err error
	if cfg.DownloadsDir, err = expandDir(cfg.DownloadsDir); err != nil {
		return nil, fmt.Errorf("preparing downloads directory: %w", err)
	}
	if cfg.UploadsDir, err = expandDir(cfg.UploadsDir); err != nil {
		return nil, fmt.Errorf("preparing uploads directory: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser_manager"),
		sessions: make(map[string]*Session),
	}
	m.indexer = dom.NewIndexer(m.logger, cfg.IgnoredURLPatterns)
	m.launch = m.launchBrowser
	m.logger.Info("Browser manager created (initialization deferred).")
	return m, nil
}

// expandDir resolves "~" and makes sure the directory exists.
func expandDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return "", err
	}
	return expanded, nil
}

func (m *Manager) initialize(ctx context.Context) (tabDriver, error) {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.driver != nil {
		return m.driver, nil
	}

	m.logger.Info("Launching browser...",
		zap.Bool("headless", m.cfg.Headless),
		zap.Bool("remote", m.cfg.RemoteURL != ""))
	driver, err := m.launch(ctx)
	if err != nil {
		m.logger.Warn("Browser launch failed, the next session will retry.", zap.Error(err))
		return nil, err
	}
	m.driver = driver
	m.logger.Info("Browser manager initialized successfully.")
	return driver, nil
}

// launchBrowser starts a local browser, or connects to RemoteURL when set,
// and allows downloads into the configured directory.
func (m *Manager) launchBrowser(ctx context.Context) (tabDriver, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if m.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), m.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), AllocatorOptions(m.cfg)...)
	}

	sugar := m.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	startup := []chromedp.Action{}
	if m.cfg.DownloadsDir != "" {
		startup = append(startup, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(m.cfg.DownloadsDir))
	}

	// The first Run starts the process and must not inherit ctx, whose
	// cancellation would kill the browser.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(browserCtx, startup...) }()

	startCtx, cancel := context.WithTimeout(ctx, browserStartTimeout)
	defer cancel()
	select {
	case err := <-errCh:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-startCtx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("timeout waiting for browser to start: %w", startCtx.Err())
	}

	m.allocCancel, m.browserCancel = allocCancel, browserCancel
	return newCDPDriver(browserCtx, m.logger), nil
}

// NewSession opens a session with a single blank tab.
func (m *Manager) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	driver, err := m.initialize(ctx)
	if err != nil {
		return nil, schemas.WrapError(schemas.CodeEnvironment, err, "starting browser")
	}

	m.wg.Add(1)
	var session *Session
	onClose := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	session, err = newSession(ctx, m.cfg, driver, m.indexer, m.logger, onClose)
	if err != nil {
		m.wg.Done()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes every open session and then the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	for _, s := range sessionsToClose {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	m.initMu.Lock()
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.initMu.Unlock()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
