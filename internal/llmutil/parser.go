// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Section names one tagged block of a model reply.
type Section string

const (
	SectionMemory      Section = "Memory"
	SectionEvaluate    Section = "Evaluate"
	SectionThought     Section = "Thought"
	SectionActionName  Section = "Action-Name"
	SectionActionInput Section = "Action-Input"
)

var sections = []Section{SectionMemory, SectionEvaluate, SectionThought, SectionActionName, SectionActionInput}

// sectionPatterns holds one lazily-matching, dot-all pattern per tag.
var sectionPatterns = func() map[Section]*regexp.Regexp {
	m := make(map[Section]*regexp.Regexp, len(sections))
	for _, s := range sections {
		m[s] = regexp.MustCompile(fmt.Sprintf(`(?s)<%[1]s>(.*?)</%[1]s>`, regexp.QuoteMeta(string(s))))
	}
	return m
}()

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	jsonArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// Decision is the record extracted from a tagged model reply. Sections that
// were missing from the reply stay at their zero value and Has reports false.
type Decision struct {
	Memory     string
	Evaluate   string
	Thought    string
	ActionName string
	// ActionInput is the decoded literal when decoding succeeds, otherwise the
	// raw trimmed text.
	ActionInput any

	found map[Section]bool
}

// Has reports whether the section was present in the reply.
func (d Decision) Has(s Section) bool { return d.found[s] }

// ActionInputMap returns the action input when it decoded to a mapping.
func (d Decision) ActionInputMap() (map[string]any, bool) {
	m, ok := d.ActionInput.(map[string]any)
	return m, ok
}

// NewDecision builds a decision with every section marked present.
func NewDecision(memory, evaluate, thought, actionName string, actionInput any) Decision {
	d := Decision{
		Memory:      memory,
		Evaluate:    evaluate,
		Thought:     thought,
		ActionName:  actionName,
		ActionInput: actionInput,
		found:       make(map[Section]bool, len(sections)),
	}
	for _, s := range sections {
		d.found[s] = true
	}
	return d
}

// ParseDecision extracts the tagged sections from a model reply. Each tag is
// matched case-sensitively and only its first occurrence is used. Parsing
// never fails: missing tags leave their field absent.
func ParseDecision(text string) Decision {
	d := Decision{found: make(map[Section]bool, len(sections))}
	for _, s := range sections {
		m := sectionPatterns[s].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		d.found[s] = true
		value := strings.TrimSpace(m[1])
		switch s {
		case SectionMemory:
			d.Memory = value
		case SectionEvaluate:
			d.Evaluate = value
		case SectionThought:
			d.Thought = value
		case SectionActionName:
			d.ActionName = value
		case SectionActionInput:
			if decoded, err := DecodeLiteral(value); err == nil {
				d.ActionInput = decoded
			} else {
				d.ActionInput = value
			}
		}
	}
	return d
}

// ParseJSONResponse attempts to parse an LLM response string into a target Go type using generics.
// It handles common LLM formatting issues, such as wrapping the JSON in markdown code blocks.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			candidate = matches[1]
		}
	} else if (isObject || isArray) && !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		// The structure is embedded in conversational text.
		start, end := -1, -1
		if isObject {
			if fb, lb := strings.Index(response, "{"), strings.LastIndex(response, "}"); fb != -1 && lb > fb {
				start, end = fb, lb+1
			}
		}
		if start == -1 && isArray {
			if fb, lb := strings.Index(response, "["), strings.LastIndex(response, "]"); fb != -1 && lb > fb {
				start, end = fb, lb+1
			}
		}
		if start != -1 {
			candidate = response[start:end]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(candidate, 500))
	}
	return &result, nil
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
