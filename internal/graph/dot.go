package graph

import (
	"fmt"
	"strings"

	"github.com/taskctl/taskctl/internal/task"
)

var statusColor = map[task.Status]string{
	task.StatusCompleted:  "lightgreen",
	task.StatusInProgress: "lightyellow",
	task.StatusBlocked:    "lightcoral",
	task.StatusDraft:      "aliceblue",
	task.StatusTodo:       "lightgray",
}

// ExportDOT renders the graph as a left-to-right Graphviz digraph. Node
// fill color follows task status; unblocker tasks get a double border and
// bold label. blocked_by edges are solid; depends_on edges are dashed and
// carry no readiness semantics.
func (g *Graph) ExportDOT() string {
	var b strings.Builder
	b.WriteString("digraph tasks {\n  rankdir=LR;\n")

	for _, id := range g.sortedIDs() {
		t := g.tasks[id]
		color, ok := statusColor[t.Status]
		if !ok {
			color = "white"
		}
		attrs := fmt.Sprintf(`label="%s\n%s", style=filled, fillcolor=%s`, escapeDOT(id), escapeDOT(t.Title), color)
		if t.Unblocker {
			attrs += `, peripheries=2, fontname="Helvetica-Bold"`
		}
		fmt.Fprintf(&b, "  %q [%s];\n", id, attrs)
	}

	for _, id := range g.sortedIDs() {
		for _, blocker := range g.blockedBy[id] {
			fmt.Fprintf(&b, "  %q -> %q [style=solid, color=black];\n", blocker, id)
		}
	}
	for _, id := range g.sortedIDs() {
		for _, dep := range g.dependsOn[id] {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, color=gray];\n", dep, id)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
