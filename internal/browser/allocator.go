// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

// allocatorFlag is one command line switch passed to the browser.
type allocatorFlag struct {
	Name  string
	Value interface{}
}

// stabilityFlags keep a long running, automated browser responsive.
var stabilityFlags = []allocatorFlag{
	{"disable-dev-shm-usage", true},
	{"disable-blink-features", "AutomationControlled"},
	{"disable-infobars", true},
	{"disable-background-timer-throttling", true},
	{"disable-popup-blocking", true},
	{"disable-backgrounding-occluded-windows", true},
	{"disable-renderer-backgrounding", true},
	{"no-first-run", true},
	{"no-default-browser-check", true},
}

// securityFlags let the agent reach into cross-origin frames.
var securityFlags = []allocatorFlag{
	{"disable-web-security", true},
	{"disable-site-isolation-trials", true},
	{"disable-features", "IsolateOrigins,site-per-process"},
	{"ignore-certificate-errors", true},
}

// allocatorFlags translates the browser config into command line switches,
// in the order they are applied. Later flags win.
func allocatorFlags(cfg config.BrowserConfig) []allocatorFlag {
	flags := []allocatorFlag{{"headless", cfg.Headless}}
	if cfg.Headless {
		flags = append(flags, allocatorFlag{"hide-scrollbars", true}, allocatorFlag{"mute-audio", true})
	}
	flags = append(flags, stabilityFlags...)
	if cfg.DisableSecurity {
		flags = append(flags, securityFlags...)
	}
	for _, arg := range cfg.Args {
		if f, ok := parseFlag(arg); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// parseFlag accepts "--name", "name", "--name=value" and "name=value".
func parseFlag(arg string) (allocatorFlag, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return allocatorFlag{}, false
	}
	name, value, hasValue := strings.Cut(arg, "=")
	if !hasValue {
		return allocatorFlag{Name: name, Value: true}, true
	}
	return allocatorFlag{Name: name, Value: value}, true
}

// AllocatorOptions builds the exec allocator options for a locally launched browser.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.NoSandbox)

	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	return opts
}
