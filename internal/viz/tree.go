package viz

import (
	"fmt"
	"strings"
)

const maxNodes = 200

// Tree renders an ASCII view of an archive tree. Width controls the total
// line width; 0 uses a sensible default (80).
func Tree(root NodeInfo, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Archive %s (%d operations)\n", root.ID, countNodes(root))

	rendered := 0
	renderNode(&b, root, "", "", width, &rendered)
	if overflow := countNodes(root) - rendered; overflow > 0 {
		fmt.Fprintf(&b, "... +%d more operations\n", overflow)
	}

	return b.String()
}

func countNodes(n NodeInfo) int {
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

func renderNode(b *strings.Builder, n NodeInfo, prefix, connector string, width int, rendered *int) {
	if *rendered >= maxNodes {
		return
	}
	*rendered++

	label := fmt.Sprintf("%s%s%s %s", prefix, connector, n.Type, n.ID)
	if fields := formatFields(n.Fields); fields != "" {
		label += "  " + fields
	}
	if runes := []rune(label); len(runes) > width {
		label = string(runes[:width-1]) + "…"
	}
	b.WriteString(label)
	b.WriteByte('\n')

	childPrefix := prefix
	switch connector {
	case "├─ ":
		childPrefix += "│  "
	case "└─ ":
		childPrefix += "   "
	}

	for i, child := range n.Children {
		conn := "├─ "
		if i == len(n.Children)-1 {
			conn = "└─ "
		}
		renderNode(b, child, childPrefix, conn, width, rendered)
	}
}

func formatFields(fields []FieldInfo) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%s", f.Name, f.Value)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
