package active

import (
	"fmt"
	"io"
	"os"

	"github.com/m1gwings/treedrawer/tree"
	"github.com/mattn/go-isatty"
)

// String renders the node's approximate source syntax with a bracketed
// current value or fault suffix; a node that has not evaluated yet shows
// "deferred" instead of forcing evaluation.
func (n *Node) String() string {
	return ExprString(n.expr) + " [" + n.statusLabel() + "]"
}

func (n *Node) statusLabel() string {
	if !n.isLive() {
		return "deferred"
	}
	v, f := n.peek()
	if f != nil {
		return "fault: " + f.Error()
	}
	return fmt.Sprintf("%v", v)
}

// RenderTree draws the node and its children as a box diagram
func RenderTree(n *Node) string {
	t := tree.NewTree(tree.NodeString(n.String()))
	renderInto(t, n)
	return t.String()
}

func renderInto(t *tree.Tree, n *Node) {
	for i, child := range n.impl.children() {
		if child == nil {
			continue
		}
		t.AddChild(tree.NodeString(child.String()))
		sub, err := t.Child(i)
		if err != nil {
			continue
		}
		renderInto(sub, child)
	}
}

// Fprint writes the node's one-line rendering, coloring the status suffix
// when the writer is a terminal
func Fprint(w io.Writer, n *Node) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		fmt.Fprintln(w, n.String())
		return
	}
	color := "\x1b[32m"
	if n.isLive() {
		if _, fault := n.peek(); fault != nil {
			color = "\x1b[31m"
		}
	} else {
		color = "\x1b[33m"
	}
	fmt.Fprintf(w, "%s %s[%s]\x1b[0m\n", ExprString(n.expr), color, n.statusLabel())
}
