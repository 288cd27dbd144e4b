// internal/tools/catalog.go
package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// Canonical tool names.
const (
	NameDone     = "done"
	NameClick    = "click"
	NameType     = "type"
	NameWait     = "wait"
	NameScroll   = "scroll"
	NameNavigate = "navigate"
	NameBack     = "back"
	NameForward  = "forward"
	NameKey      = "key"
	NameDownload = "download"
	NameScrape   = "scrape"
	NameTab      = "tab"
	NameUpload   = "upload"
	NameMenu     = "menu"
	NameHuman    = "human"
)

// Deps are the capabilities tool handlers need beyond the browser session.
type Deps struct {
	Logger     *zap.Logger
	Human      HumanIO
	HTTPClient *http.Client
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d *Deps) setDefaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if d.Sleep == nil {
		d.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewDefaultRegistry builds a registry over the full catalog.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	deps.setDefaults()
	return NewRegistry(deps.Logger, Catalog(deps)...)
}

// Catalog returns the fixed set of tools the agent can call.
func Catalog(deps Deps) []*Tool {
	deps.setDefaults()
	index := Param{Name: "index", Type: TypeInteger, Required: true, Description: "The label number of the element from the interactive elements list.", Examples: []any{0}}

	return []*Tool{
		{
			Name:        NameDone,
			Aliases:     []string{"Done Tool"},
			Kind:        schemas.KindTerminal,
			Description: "Finish the task and return the final answer to the user. Use it once the task is complete or cannot be completed.",
			Schema: Schema{
				{Name: "content", Type: TypeString, Required: true, Description: "The final answer for the user, in markdown if helpful."},
			},
			Handler: func(_ context.Context, args Args, _ schemas.BrowserSession) (string, error) {
				return args.String("content"), nil
			},
		},
		{
			Name:         NameClick,
			Aliases:      []string{"Click Tool"},
			Description:  "Click the element at the given label, such as a link, button, checkbox or tab.",
			Schema:       Schema{index},
			NeedsSession: true,
			Handler:      handleClick,
		},
		{
			Name:        NameType,
			Aliases:     []string{"Type Tool"},
			Description: "Type text into the input element at the given label. Set clear to replace the existing value.",
			Schema: Schema{
				index,
				{Name: "text", Type: TypeString, Required: true, Description: "The text to type."},
				{Name: "clear", Type: TypeBoolean, Default: false, Description: "Clear the field before typing."},
			},
			NeedsSession: true,
			Handler:      handleType,
		},
		{
			Name:        NameWait,
			Aliases:     []string{"Wait Tool"},
			Description: "Pause for a number of seconds while the page loads or an animation finishes.",
			Schema: Schema{
				{Name: "seconds", Type: TypeInteger, Required: true, Description: "How long to wait, in seconds.", Examples: []any{2}},
			},
			Handler: func(ctx context.Context, args Args, _ schemas.BrowserSession) (string, error) {
				seconds := args.Int("seconds")
				if seconds < 0 {
					return "", schemas.NewError(schemas.CodeValidation, "seconds must not be negative")
				}
				if err := deps.Sleep(ctx, time.Duration(seconds)*time.Second); err != nil {
					return "", schemas.WrapError(schemas.CodeEnvironment, err, "wait interrupted")
				}
				return fmt.Sprintf("Waited for %ds", seconds), nil
			},
		},
		{
			Name:        NameScroll,
			Aliases:     []string{"Scroll Tool"},
			Description: "Scroll the page up or down. Without an amount the page moves by one screen; with an amount it moves that many pixels.",
			Schema: Schema{
				{Name: "direction", Type: TypeString, Default: string(schemas.ScrollUp), Enum: []string{string(schemas.ScrollUp), string(schemas.ScrollDown)}, Description: "The scroll direction."},
				{Name: "amount", Type: TypeInteger, Description: "Pixels to scroll. Omit to scroll one page."},
			},
			NeedsSession: true,
			Handler:      handleScroll,
		},
		{
			Name:        NameNavigate,
			Aliases:     []string{"GoTo Tool"},
			Description: "Open a URL in the current tab.",
			Schema: Schema{
				{Name: "url", Type: TypeString, Required: true, Description: "The absolute URL to open.", Examples: []any{"https://example.com"}},
			},
			NeedsSession: true,
			Handler: func(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
				url := args.String("url")
				if err := s.Navigate(ctx, url); err != nil {
					return "", err
				}
				return fmt.Sprintf("Navigated to %s", url), nil
			},
		},
		{
			Name:         NameBack,
			Aliases:      []string{"Back Tool"},
			Description:  "Go back to the previous page in the current tab's history.",
			NeedsSession: true,
			Handler: func(ctx context.Context, _ Args, s schemas.BrowserSession) (string, error) {
				if err := s.GoBack(ctx); err != nil {
					return "", err
				}
				return "Navigated to previous page", nil
			},
		},
		{
			Name:         NameForward,
			Aliases:      []string{"Forward Tool"},
			Description:  "Go forward to the next page in the current tab's history.",
			NeedsSession: true,
			Handler: func(ctx context.Context, _ Args, s schemas.BrowserSession) (string, error) {
				if err := s.GoForward(ctx); err != nil {
					return "", err
				}
				return "Navigated to next page", nil
			},
		},
		{
			Name:        NameKey,
			Aliases:     []string{"Key Tool"},
			Description: "Press a key or key combination such as Enter, Escape, ArrowDown or Control+A.",
			Schema: Schema{
				{Name: "keys", Type: TypeString, Required: true, Description: "The key or combination, modifiers joined with '+'.", Examples: []any{"Enter", "Control+A"}},
				{Name: "times", Type: TypeInteger, Default: int64(1), Description: "How many times to press it."},
			},
			NeedsSession: true,
			Handler: func(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
				keys, times := args.String("keys"), args.Int("times")
				if times < 1 {
					return "", schemas.NewError(schemas.CodeValidation, "times must be at least 1")
				}
				if err := s.PressKeys(ctx, keys, times); err != nil {
					return "", err
				}
				return fmt.Sprintf("Pressed %s", keys), nil
			},
		},
		{
			Name:        NameDownload,
			Aliases:     []string{"Download Tool"},
			Description: "Download a file from a URL into the downloads directory.",
			Schema: Schema{
				{Name: "url", Type: TypeString, Required: true, Description: "The URL of the file."},
				{Name: "filename", Type: TypeString, Required: true, Description: "The name to save the file under, including its extension."},
			},
			NeedsSession: true,
			Handler:      downloadHandler(deps.HTTPClient),
		},
		{
			Name:        NameScrape,
			Aliases:     []string{"Scrape Tool"},
			Description: "Read the main content of the current page as markdown or plain text, without navigation, headers or footers.",
			Schema: Schema{
				{Name: "format", Type: TypeString, Default: "markdown", Enum: []string{"markdown", "text"}, Description: "The output format."},
			},
			NeedsSession: true,
			Handler:      handleScrape,
		},
		{
			Name:        NameTab,
			Aliases:     []string{"Tab Tool"},
			Description: "Open a new blank tab, close the current tab, or switch to the tab at tab_index.",
			Schema: Schema{
				{Name: "mode", Type: TypeString, Required: true, Enum: []string{"open", "close", "switch"}, Description: "The tab operation."},
				{Name: "tab_index", Type: TypeInteger, Description: "The tab to switch to. Required for switch."},
			},
			NeedsSession: true,
			Handler:      handleTab,
		},
		{
			Name:        NameUpload,
			Aliases:     []string{"Upload Tool"},
			Description: "Attach files from the uploads directory to the file input at the given label.",
			Schema: Schema{
				index,
				{Name: "filenames", Type: TypeStringArray, Required: true, Description: "Names of files in the uploads directory."},
			},
			NeedsSession: true,
			Handler:      handleUpload,
		},
		{
			Name:        NameMenu,
			Aliases:     []string{"Menu Tool"},
			Description: "Open the dropdown at the given label and select options by their visible labels.",
			Schema: Schema{
				index,
				{Name: "labels", Type: TypeStringArray, Required: true, Description: "The option labels to select."},
			},
			NeedsSession: true,
			Handler:      handleMenu,
		},
		{
			Name:        NameHuman,
			Aliases:     []string{"Human Tool"},
			Kind:        schemas.KindPassThrough,
			Description: "Ask the human for help, such as credentials, a captcha, or a decision only they can make.",
			Schema: Schema{
				{Name: "prompt", Type: TypeString, Required: true, Description: "The question to show the human."},
			},
			Handler: humanHandler(deps.Human),
		},
	}
}

func handleClick(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	idx := args.Int("index")
	el, err := s.ElementByIndex(idx)
	if err != nil {
		return "", err
	}
	if err := s.Click(ctx, el.Locator); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked on the element at label %d", idx), nil
}

func handleType(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	idx, text := args.Int("index"), args.String("text")
	el, err := s.ElementByIndex(idx)
	if err != nil {
		return "", err
	}
	if err := s.Type(ctx, el.Locator, text, args.Bool("clear")); err != nil {
		return "", err
	}
	return fmt.Sprintf("Typed %s in element at label %d", text, idx), nil
}

// handleScroll checks the effect after the fact: an unchanged offset means
// the page could not move in that direction.
func handleScroll(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	direction := schemas.ScrollDirection(args.String("direction"))
	amount, hasAmount := args.OptionalInt("amount")
	if hasAmount && amount <= 0 {
		return "", schemas.NewError(schemas.CodeValidation, "amount must be a positive number of pixels")
	}

	before, err := s.ScrollPosition(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Scroll(ctx, direction, amount); err != nil {
		return "", err
	}
	after, err := s.ScrollPosition(ctx)
	if err != nil {
		return "", err
	}

	if after.Y == before.Y {
		switch {
		case before.MaxY <= 0:
			return "Scrolling has no effect, the entire content fits within the viewport.", nil
		case direction == schemas.ScrollUp:
			return "Already at the top of the page, cannot scroll up further.", nil
		default:
			return "Already at the bottom of the page, cannot scroll down further.", nil
		}
	}

	by := "one page"
	if hasAmount {
		by = fmt.Sprintf("%d", amount)
	}
	return fmt.Sprintf("Scrolled %s by %s", direction, by), nil
}

func handleTab(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	switch args.String("mode") {
	case "open":
		if err := s.OpenTab(ctx); err != nil {
			return "", err
		}
		return "Opened a new blank tab and switched to it.", nil

	case "close":
		tabs, err := s.Tabs(ctx)
		if err != nil {
			return "", err
		}
		if len(tabs) <= 1 {
			return "Cannot close the last remaining tab.", nil
		}
		if err := s.CloseTab(ctx); err != nil {
			return "", err
		}
		return "Closed current tab and switched to the next last tab.", nil

	default: // switch
		idx, ok := args.OptionalInt("tab_index")
		if !ok {
			return "", schemas.NewError(schemas.CodeValidation, "tab_index is required when mode is 'switch'")
		}
		if err := s.SwitchTab(ctx, idx); err != nil {
			return "", err
		}
		tabs, err := s.Tabs(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Switched to tab %d (Total tabs: %d).", idx, len(tabs)), nil
	}
}

func handleMenu(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	idx, labels := args.Int("index"), args.Strings("labels")
	el, err := s.ElementByIndex(idx)
	if err != nil {
		return "", err
	}
	if err := s.SelectOptions(ctx, el.Locator, labels); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opened context menu of element at label %d and selected %s", idx, strings.Join(labels, ", ")), nil
}
