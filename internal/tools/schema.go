// internal/tools/schema.go
package tools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString      ParamType = "string"
	TypeInteger     ParamType = "integer"
	TypeNumber      ParamType = "number"
	TypeBoolean     ParamType = "boolean"
	TypeStringArray ParamType = "string_array"
)

// Param declares one named input of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	// Default is applied when an optional parameter is omitted. A nil default
	// leaves the parameter absent.
	Default  any
	Enum     []string
	Examples []any
}

// Schema is the ordered parameter list of a tool.
type Schema []Param

// Args are validated, defaulted tool inputs.
type Args map[string]any

// Validate checks input against the schema and returns the coerced arguments.
// Unknown keys are passed through untouched.
func (s Schema) Validate(input map[string]any) (Args, error) {
	args := make(Args, len(input)+len(s))
	for k, v := range input {
		args[k] = v
	}

	var problems []string
	for _, p := range s {
		raw, present := input[p.Name]
		if !present || raw == nil {
			if p.Required {
				problems = append(problems, fmt.Sprintf("%s: field required", p.Name))
				continue
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			} else {
				delete(args, p.Name)
			}
			continue
		}

		v, err := coerce(p, raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}
		if len(p.Enum) > 0 {
			str, _ := v.(string)
			if !contains(p.Enum, str) {
				problems = append(problems, fmt.Sprintf("%s: input should be %s", p.Name, quoteJoin(p.Enum)))
				continue
			}
		}
		args[p.Name] = v
	}

	if len(problems) > 0 {
		return nil, schemas.NewError(schemas.CodeValidation, "%d validation error(s): %s", len(problems), strings.Join(problems, "; "))
	}
	return args, nil
}

func coerce(p Param, raw any) (any, error) {
	switch p.Type {
	case TypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int64, int, float64:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("input should be a valid string, got %T", raw)

	case TypeInteger:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("input should be a valid integer, got a number with a fractional part")
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("input should be a valid integer, unable to parse string as an integer")
			}
			return n, nil
		}
		return nil, fmt.Errorf("input should be a valid integer, got %T", raw)

	case TypeNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("input should be a valid number, unable to parse string as a number")
			}
			return f, nil
		}
		return nil, fmt.Errorf("input should be a valid number, got %T", raw)

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "1":
				return true, nil
			case "false", "no", "0":
				return false, nil
			}
		case int64:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		}
		return nil, fmt.Errorf("input should be a valid boolean")

	case TypeStringArray:
		switch v := raw.(type) {
		case string:
			return []string{v}, nil
		case []string:
			return v, nil
		case []any:
			out := make([]string, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("item %d should be a valid string, got %T", i, item)
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("input should be a valid list of strings, got %T", raw)
	}
	return nil, fmt.Errorf("unsupported parameter type %q", p.Type)
}

// JSONSchema renders the schema as a JSON Schema object for prompts and MCP.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	required := []string{}
	for _, p := range s {
		prop := map[string]any{"description": p.Description}
		switch p.Type {
		case TypeStringArray:
			prop["type"] = "array"
			prop["items"] = map[string]any{"type": "string"}
		default:
			prop["type"] = string(p.Type)
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Examples) > 0 {
			prop["examples"] = p.Examples
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// -- Args accessors --

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int {
	n, _ := a[name].(int64)
	return int(n)
}

// OptionalInt returns the integer and whether it was supplied.
func (a Args) OptionalInt(name string) (int, bool) {
	n, ok := a[name].(int64)
	return int(n), ok
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
