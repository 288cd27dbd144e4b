// internal/agent/prompts.go
package agent

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").ParseFS(promptFS, "prompts/*.tmpl"))

// Placeholders used when a listing has nothing to show.
const (
	noObservation = "Initial state, no observation yet."
	notAvailable  = "N/A"
)

type systemPromptData struct {
	Instructions    string
	CurrentDatetime string
	ToolsPrompt     string
	MaxIteration    int
	OS              string
	Browser         string
	HomeDir         string
	DownloadsDir    string
	Vision          bool
	Memories        []string
}

type actionPromptData struct {
	Memory      string
	Evaluate    string
	Thought     string
	ActionName  string
	ActionInput string
}

type observationPromptData struct {
	Iteration    int
	MaxIteration int
	Observation  string
	CurrentTab   string
	Tabs         string
	Interactive  string
	Informative  string
}

type answerPromptData struct {
	Memory      string
	Evaluate    string
	Thought     string
	FinalAnswer string
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// formatInstructions numbers the custom instructions from 1.
func formatInstructions(instructions []string) string {
	lines := make([]string, 0, len(instructions))
	for _, in := range instructions {
		if in = strings.TrimSpace(in); in != "" {
			lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, in))
		}
	}
	return strings.Join(lines, "\n")
}

// pageListings renders the parts of an observation that describe the page.
// A nil page (nothing observed yet) renders as N/A.
func pageListings(data *observationPromptData, page *schemas.PageState) {
	data.CurrentTab, data.Tabs = notAvailable, notAvailable
	data.Interactive, data.Informative = notAvailable, notAvailable
	if page == nil {
		return
	}

	data.CurrentTab = page.CurrentTab.String()
	if len(page.Tabs) > 0 {
		tabs := make([]string, len(page.Tabs))
		for i, t := range page.Tabs {
			tabs[i] = t.String()
		}
		data.Tabs = strings.Join(tabs, "\n")
	}
	if len(page.Interactive) > 0 {
		data.Interactive = dom.InteractiveListing(page.Interactive)
	} else {
		data.Interactive = "No interactive elements found."
	}
	if len(page.Informative) > 0 {
		data.Informative = dom.InformativeListing(page.Informative)
	} else {
		data.Informative = "No informative elements found."
	}
}
