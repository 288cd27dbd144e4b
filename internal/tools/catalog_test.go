package tools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/mocks"
)

type scriptedHuman struct {
	reply  string
	prompt string
}

func (h *scriptedHuman) Ask(_ context.Context, prompt string) (string, error) {
	h.prompt = prompt
	return h.reply, nil
}

func run(t *testing.T, deps Deps, name string, input map[string]any, session schemas.BrowserSession) ToolResult {
	t.Helper()
	r, err := NewDefaultRegistry(deps)
	require.NoError(t, err)
	return r.Execute(context.Background(), name, input, session)
}

func TestClickTool(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	loc := schemas.Locator{Frame: "/html/body/iframe[1]", Element: "/html/body/button[1]"}
	session.On("ElementByIndex", 3).Return(schemas.ElementNode{Locator: loc}, nil)
	session.On("Click", mock.Anything, loc).Return(nil)

	res := run(t, Deps{}, NameClick, map[string]any{"index": int64(3)}, session)
	assert.False(t, res.Failed)
	assert.Equal(t, "Clicked on the element at label 3", res.Content)
	session.AssertExpectations(t)
}

func TestClickUnknownIndex(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	session.On("ElementByIndex", 42).Return(schemas.ElementNode{}, schemas.NewError(schemas.CodeNotFound, "no element at label 42"))

	res := run(t, Deps{}, NameClick, map[string]any{"index": int64(42)}, session)
	assert.True(t, res.Failed)
	assert.Equal(t, schemas.CodeNotFound, res.Code)
	assert.Equal(t, "Error executing tool 'click': NotFound: no element at label 42", res.Content)
	session.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
}

func TestNavigateBackForward(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	session.On("Navigate", mock.Anything, "https://example.com").Return(nil)
	session.On("GoBack", mock.Anything).Return(nil)
	session.On("GoForward", mock.Anything).Return(nil)

	assert.Equal(t, "Navigated to https://example.com", run(t, Deps{}, NameNavigate, map[string]any{"url": "https://example.com"}, session).Content)
	assert.Equal(t, "Navigated to previous page", run(t, Deps{}, NameBack, nil, session).Content)
	assert.Equal(t, "Navigated to next page", run(t, Deps{}, NameForward, nil, session).Content)
}

func TestWaitTool(t *testing.T) {
	var slept time.Duration
	deps := Deps{Sleep: func(_ context.Context, d time.Duration) error { slept = d; return nil }}

	res := run(t, deps, NameWait, map[string]any{"seconds": int64(2)}, nil)
	assert.Equal(t, "Waited for 2s", res.Content)
	assert.Equal(t, 2*time.Second, slept)
}

func TestKeyTool(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	session.On("PressKeys", mock.Anything, "Control+A", 1).Return(nil)

	res := run(t, Deps{}, NameKey, map[string]any{"keys": "Control+A"}, session)
	assert.Equal(t, "Pressed Control+A", res.Content)
	session.AssertExpectations(t)
}

func TestScrollTool(t *testing.T) {
	t.Run("one page down", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 0, MaxY: 2000}, nil).Once()
		session.On("Scroll", mock.Anything, schemas.ScrollDown, 0).Return(nil)
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 720, MaxY: 2000}, nil).Once()

		res := run(t, Deps{}, NameScroll, map[string]any{"direction": "down"}, session)
		assert.Equal(t, "Scrolled down by one page", res.Content)
	})

	t.Run("by amount", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 500, MaxY: 2000}, nil).Once()
		session.On("Scroll", mock.Anything, schemas.ScrollUp, 300).Return(nil)
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 200, MaxY: 2000}, nil).Once()

		res := run(t, Deps{}, NameScroll, map[string]any{"amount": int64(300)}, session)
		assert.Equal(t, "Scrolled up by 300", res.Content)
	})

	t.Run("content fits viewport", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 0, MaxY: 0}, nil)
		session.On("Scroll", mock.Anything, schemas.ScrollDown, 0).Return(nil)

		res := run(t, Deps{}, NameScroll, map[string]any{"direction": "down"}, session)
		assert.Equal(t, "Scrolling has no effect, the entire content fits within the viewport.", res.Content)
	})

	t.Run("already at bottom", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("ScrollPosition", mock.Anything).Return(schemas.ScrollPosition{Y: 2000, MaxY: 2000}, nil)
		session.On("Scroll", mock.Anything, schemas.ScrollDown, 0).Return(nil)

		res := run(t, Deps{}, NameScroll, map[string]any{"direction": "down"}, session)
		assert.Equal(t, "Already at the bottom of the page, cannot scroll down further.", res.Content)
	})
}

func TestTabTool(t *testing.T) {
	two := []schemas.TabInfo{{Index: 0}, {Index: 1}}

	t.Run("open", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("OpenTab", mock.Anything).Return(nil)
		assert.Equal(t, "Opened a new blank tab and switched to it.", run(t, Deps{}, NameTab, map[string]any{"mode": "open"}, session).Content)
	})

	t.Run("close last tab is refused", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("Tabs", mock.Anything).Return([]schemas.TabInfo{{Index: 0}}, nil)
		res := run(t, Deps{}, NameTab, map[string]any{"mode": "close"}, session)
		assert.Equal(t, "Cannot close the last remaining tab.", res.Content)
		session.AssertNotCalled(t, "CloseTab", mock.Anything)
	})

	t.Run("close", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("Tabs", mock.Anything).Return(two, nil)
		session.On("CloseTab", mock.Anything).Return(nil)
		assert.Equal(t, "Closed current tab and switched to the next last tab.", run(t, Deps{}, NameTab, map[string]any{"mode": "close"}, session).Content)
	})

	t.Run("switch", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("SwitchTab", mock.Anything, 1).Return(nil)
		session.On("Tabs", mock.Anything).Return(two, nil)
		assert.Equal(t, "Switched to tab 1 (Total tabs: 2).", run(t, Deps{}, NameTab, map[string]any{"mode": "switch", "tab_index": int64(1)}, session).Content)
	})

	t.Run("switch out of range", func(t *testing.T) {
		session := mocks.NewMockBrowserSession()
		session.On("SwitchTab", mock.Anything, 5).Return(schemas.NewError(schemas.CodeNotFound, "Tab index 5 is out of range. Available tabs: 2"))
		res := run(t, Deps{}, NameTab, map[string]any{"mode": "switch", "tab_index": int64(5)}, session)
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeNotFound, res.Code)
		assert.Contains(t, res.Content, "Tab index 5 is out of range. Available tabs: 2")
	})

	t.Run("switch without index", func(t *testing.T) {
		res := run(t, Deps{}, NameTab, map[string]any{"mode": "switch"}, mocks.NewMockBrowserSession())
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeValidation, res.Code)
	})
}

func TestMenuTool(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	loc := schemas.Locator{Element: "/html/body/select[1]"}
	session.On("ElementByIndex", 4).Return(schemas.ElementNode{Locator: loc}, nil)
	session.On("SelectOptions", mock.Anything, loc, []string{"Red", "Blue"}).Return(nil)

	res := run(t, Deps{}, NameMenu, map[string]any{"index": int64(4), "labels": []any{"Red", "Blue"}}, session)
	assert.Equal(t, "Opened context menu of element at label 4 and selected Red, Blue", res.Content)
}

func TestUploadTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cv.pdf"), []byte("%PDF"), 0o644))

	session := mocks.NewMockBrowserSession()
	loc := schemas.Locator{Element: "/html/body/input[2]"}
	session.On("ElementByIndex", 2).Return(schemas.ElementNode{Locator: loc}, nil)
	session.On("UploadsDir").Return(dir)
	session.On("UploadFiles", mock.Anything, loc, []string{filepath.Join(dir, "cv.pdf")}).Return(nil)

	res := run(t, Deps{}, NameUpload, map[string]any{"index": int64(2), "filenames": []any{"cv.pdf"}}, session)
	assert.False(t, res.Failed, res.Content)
	assert.Equal(t, "Uploaded cv.pdf to element at label 2", res.Content)

	res = run(t, Deps{}, NameUpload, map[string]any{"index": int64(2), "filenames": []any{"missing.pdf"}}, session)
	assert.True(t, res.Failed)
	assert.Equal(t, schemas.CodeNotFound, res.Code)
}

func TestDownloadTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("report body"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "downloads")
	session := mocks.NewMockBrowserSession()
	session.On("DownloadsDir").Return(dir)
	deps := Deps{HTTPClient: srv.Client()}

	res := run(t, deps, NameDownload, map[string]any{"url": srv.URL + "/report", "filename": "report.txt"}, session)
	require.False(t, res.Failed, res.Content)
	dest := filepath.Join(dir, "report.txt")
	assert.Equal(t, "Downloaded report.txt from "+srv.URL+"/report and saved it to "+dest, res.Content)
	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(body))

	res = run(t, deps, NameDownload, map[string]any{"url": srv.URL + "/missing", "filename": "x.txt"}, session)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Content, "unexpected status 404")
}

func TestScrapeTool(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	session.On("PageHTML", mock.Anything).Return(articlePage, nil)
	session.On("CurrentTab", mock.Anything).Return(schemas.TabInfo{URL: "https://shop.example.com/plans/pro"}, nil)

	res := run(t, Deps{}, NameScrape, nil, session)
	require.False(t, res.Failed, res.Content)
	assert.True(t, strings.HasPrefix(res.Content, "Scraped the contents of the entire webpage:\n"))
	assert.Contains(t, res.Content, "billed monthly")
	assert.Contains(t, res.Content, "(https://shop.example.com/plans/compare)")
	assert.NotContains(t, res.Content, "Site navigation")

	res = run(t, Deps{}, NameScrape, map[string]any{"format": "text"}, session)
	require.False(t, res.Failed, res.Content)
	assert.Contains(t, res.Content, "billed monthly")
	assert.NotContains(t, res.Content, "](")
	assert.NotContains(t, res.Content, "All rights reserved")
}

func TestScrapeToolWithoutTabURL(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	session.On("PageHTML", mock.Anything).Return(articlePage, nil)
	session.On("CurrentTab", mock.Anything).Return(schemas.TabInfo{}, errors.New("tab is gone"))

	res := run(t, Deps{}, NameScrape, nil, session)
	require.False(t, res.Failed, res.Content)
	assert.Contains(t, res.Content, "billed monthly")
	assert.NotContains(t, res.Content, "Site navigation")
}

func TestHumanTool(t *testing.T) {
	human := &scriptedHuman{reply: "hunter2"}
	res := run(t, Deps{Human: human}, NameHuman, map[string]any{"prompt": "Password?"}, nil)
	assert.Equal(t, "Human provided the following input: 'hunter2'", res.Content)
	assert.Equal(t, "Password?", human.prompt)

	res = run(t, Deps{}, NameHuman, map[string]any{"prompt": "anyone?"}, nil)
	assert.True(t, res.Failed)
}

func TestConsoleHuman(t *testing.T) {
	var out strings.Builder
	h := &ConsoleHuman{In: strings.NewReader("yes please\n"), Out: &out}

	reply, err := h.Ask(context.Background(), "Continue?")
	require.NoError(t, err)
	assert.Equal(t, "yes please", reply)
	assert.Equal(t, "Continue?\n> ", out.String())
}

func TestConsoleHumanAfterCancelledAsk(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	h := &ConsoleHuman{In: pr, Out: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Ask(ctx, "Code?")
	require.ErrorIs(t, err, context.Canceled)

	go func() { _, _ = io.WriteString(pw, "1234\n") }()
	reply, err := h.Ask(context.Background(), "Code?")
	require.NoError(t, err)
	assert.Equal(t, "1234", reply, "the line goes to the next Ask, not to the abandoned one")
}

func TestConsoleHumanEOF(t *testing.T) {
	h := &ConsoleHuman{In: strings.NewReader("last"), Out: io.Discard}

	reply, err := h.Ask(context.Background(), "One?")
	require.NoError(t, err)
	assert.Equal(t, "last", reply)

	_, err = h.Ask(context.Background(), "Two?")
	assert.ErrorIs(t, err, io.EOF)
	_, err = h.Ask(context.Background(), "Three?")
	assert.ErrorIs(t, err, io.EOF)
}
