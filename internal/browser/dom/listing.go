package dom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// InteractiveListing renders interactive elements one per line, prefixed by
// the label the model uses to refer to them.
func InteractiveListing(nodes []schemas.ElementNode) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = fmt.Sprintf("%d - Tag: %s Role: %s Name: %s Attributes: %s Cordinates: %s",
			i, n.Tag, n.Role, n.Name, formatAttributes(n.Attributes), formatPoint(n.Center))
	}
	return strings.Join(lines, "\n")
}

// InformativeListing renders text-bearing elements one per line.
func InformativeListing(nodes []schemas.TextNode) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = fmt.Sprintf("Tag: %s Role: %s Content: %s Cordinates: %s",
			n.Tag, n.Role, n.Content, formatPoint(n.Center))
	}
	return strings.Join(lines, "\n")
}

func formatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': '%s'", k, attrs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatPoint(p schemas.Point) string {
	return "(" + strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64) + ")"
}
