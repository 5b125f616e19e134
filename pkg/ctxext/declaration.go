package ctxext

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// declarationEndPoint truncates a node's span to the end of its first
// source line: the position half of a declaration-only view. All other
// attributes of a declaration-only block (type, start point) delegate to
// the wrapped node by construction in codeBlock, since Go has no
// attribute-delegation equivalent to Python's __getattr__.
func declarationEndPoint(node *sitter.Node, source []byte) sitter.Point {
	start := node.StartPoint()
	firstLine := firstLineOf(node, source)
	return sitter.Point{Row: start.Row, Column: start.Column + uint32(len(firstLine))}
}

// declarationText returns only the first source line of node's full text:
// the text half of a declaration-only view.
func declarationText(node *sitter.Node, source []byte) string {
	return firstLineOf(node, source)
}

func firstLineOf(node *sitter.Node, source []byte) string {
	full := node.Content(source)
	if idx := strings.IndexByte(full, '\n'); idx != -1 {
		return full[:idx]
	}
	return full
}
