package browser

import (
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// keyCombo is a single key press with held modifiers.
type keyCombo struct {
	Key       string
	Modifiers []input.Modifier
}

var modifierNames = map[string]input.Modifier{
	"alt":     input.ModifierAlt,
	"option":  input.ModifierAlt,
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"meta":    input.ModifierMeta,
	"command": input.ModifierMeta,
	"cmd":     input.ModifierMeta,
	"shift":   input.ModifierShift,
}

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"tab":        kb.Tab,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"insert":     kb.Insert,
	"space":      " ",
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"up":         kb.ArrowUp,
	"down":       kb.ArrowDown,
	"left":       kb.ArrowLeft,
	"right":      kb.ArrowRight,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"home":       kb.Home,
	"end":        kb.End,
}

// parseKeyCombo reads a combination such as "Enter", "Control+A" or
// "Shift+Tab". Modifier names are case-insensitive; a single character key
// keeps its case.
func parseKeyCombo(s string) (keyCombo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return keyCombo{}, schemas.NewError(schemas.CodeValidation, "keys must not be empty")
	}
	// "+" on its own, or as the final key of a combination.
	var parts []string
	if s == "+" {
		parts = []string{"+"}
	} else if strings.HasSuffix(s, "++") {
		parts = append(strings.Split(strings.TrimSuffix(s, "++"), "+"), "+")
	} else {
		parts = strings.Split(s, "+")
	}

	var combo keyCombo
	for _, mod := range parts[:len(parts)-1] {
		m, ok := modifierNames[strings.ToLower(strings.TrimSpace(mod))]
		if !ok {
			return keyCombo{}, schemas.NewError(schemas.CodeValidation, "unknown modifier %q in %q", mod, s)
		}
		combo.Modifiers = append(combo.Modifiers, m)
	}

	key := parts[len(parts)-1]
	if key != " " {
		key = strings.TrimSpace(key)
	}
	switch {
	case key == "":
		return keyCombo{}, schemas.NewError(schemas.CodeValidation, "missing key in %q", s)
	case len([]rune(key)) == 1:
		combo.Key = key
	default:
		named, ok := namedKeys[strings.ToLower(key)]
		if !ok {
			return keyCombo{}, schemas.NewError(schemas.CodeValidation, "unknown key %q", key)
		}
		combo.Key = named
	}
	return combo, nil
}

func (k keyCombo) action() chromedp.Action {
	if len(k.Modifiers) == 0 {
		return chromedp.KeyEvent(k.Key)
	}
	return chromedp.KeyEvent(k.Key, chromedp.KeyModifiers(k.Modifiers...))
}
