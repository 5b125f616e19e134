// Package ctxext is the Context Extractor: given a file and a set of
// changed line ranges, it parses the file with a tree-sitter grammar for
// the file's language and returns the smallest set of enclosing
// declaration blocks sufficient to understand each change.
package ctxext

import (
	"context"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/rs/zerolog/log"

	"github.com/tsanders/revgate/pkg/review"
)

// UnsupportedLanguageError signals that no grammar is registered for a
// language tag. Callers may use NearbyLines as a documented fallback.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("ctxext: no grammar registered for language %q", e.Language)
}

// codeBlock is the internal representation of one candidate context
// fragment: either a plain tree-sitter node, or a declaration-only view
// over one (see declaration.go). It carries the file's source bytes so a
// declaration-only view can compute its truncated end point and text
// without every call site having to thread source through separately.
type codeBlock struct {
	node            *sitter.Node
	source          []byte
	declarationOnly bool
}

func (b codeBlock) startPoint() sitter.Point { return b.node.StartPoint() }

func (b codeBlock) endPoint() sitter.Point {
	if !b.declarationOnly {
		return b.node.EndPoint()
	}
	return declarationEndPoint(b.node, b.source)
}

func (b codeBlock) text() string {
	if !b.declarationOnly {
		return b.node.Content(b.source)
	}
	return declarationText(b.node, b.source)
}

// key identifies a block by its effective span plus declaration-only-ness,
// so the "nested duplicate" and "already collected" checks don't depend on
// *sitter.Node identity (Go's tree-sitter binding doesn't guarantee pointer
// stability is meaningful for set membership in the way Python's does).
type blockKey struct {
	startRow, startCol uint32
	endRow, endCol     uint32
	declOnly           bool
}

func (b codeBlock) key() blockKey {
	s, e := b.startPoint(), b.endPoint()
	return blockKey{s.Row, s.Column, e.Row, e.Column, b.declarationOnly}
}

// Extract produces an ordered list of ContextBlock for every line in
// ranges, using the grammar registered for language. Unsupported
// languages are the caller's responsibility to route to NearbyLines;
// Extract itself returns UnsupportedLanguageError so that choice stays
// explicit.
func Extract(language string, path string, ranges []review.LineRange) ([]review.ContextBlock, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	spec, ok := languageSpecs[language]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: language}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ctxext: %w", err)
	}
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("ctxext: %s is not valid UTF-8", path)
	}
	if len(source) == 0 {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("ctxext: parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		log.Warn().Str("file", path).Msg("ctxext: syntax errors detected, continuing with best-effort tree")
	}

	collected := make(map[blockKey]codeBlock)
	for _, r := range ranges {
		for line := r.StartLine; line <= r.EndLine; line++ {
			leaf := findNodeByLine(root, line)
			if leaf.Type() == spec.rootType {
				continue
			}
			block, ok := appropriateContextFor(leaf, spec, source)
			if !ok {
				continue
			}
			collected[block.key()] = block
		}
	}

	filtered := filterNestedBlocks(collected)

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i].startPoint(), filtered[j].startPoint()
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Column < b.Column
	})

	blocks := make([]review.ContextBlock, 0, len(filtered))
	for _, b := range filtered {
		text := b.text()
		if !utf8.ValidString(text) {
			log.Error().Uint32("line", b.startPoint().Row+1).Msg("ctxext: block text decode failed, skipping")
			continue
		}
		blocks = append(blocks, review.ContextBlock{
			Text:            text,
			StartLine:       int(b.startPoint().Row) + 1,
			EndLine:         int(b.endPoint().Row) + 1,
			DeclarationOnly: b.declarationOnly,
		})
	}
	return blocks, nil
}

// findNodeByLine descends the tree to the smallest node whose span
// contains the given 1-based line number, mirroring a DFS walk that always
// prefers the deepest matching child.
func findNodeByLine(root *sitter.Node, line int) *sitter.Node {
	current := root
	for {
		child := childContainingLine(current, line)
		if child == nil {
			return current
		}
		current = child
	}
}

func childContainingLine(node *sitter.Node, line int) *sitter.Node {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		start := int(child.StartPoint().Row) + 1
		end := int(child.EndPoint().Row) + 1
		if start <= line && line <= end {
			return child
		}
	}
	return nil
}

// appropriateContextFor decides, for a single leaf node, which block
// should represent it: a declaration-only wrapper, a module-level
// assignment, or the nearest enclosing block-type ancestor.
func appropriateContextFor(leaf *sitter.Node, spec languageSpec, source []byte) (codeBlock, bool) {
	if assign := fileLevelAssignment(leaf, spec); assign != nil {
		return codeBlock{node: assign, source: source}, true
	}

	if classDef := enclosingOfType(leaf, spec.classType); classDef != nil {
		if int(classDef.StartPoint().Row) == int(leaf.StartPoint().Row) {
			return codeBlock{node: classDef, source: source, declarationOnly: true}, true
		}
	}

	if funcDef := enclosingOfType(leaf, spec.functionType); funcDef != nil {
		if int(funcDef.StartPoint().Row) == int(leaf.StartPoint().Row) {
			return codeBlock{node: funcDef, source: source, declarationOnly: true}, true
		}
	}

	if ancestor := nearestBlockTypeAncestor(leaf, spec); ancestor != nil {
		return codeBlock{node: ancestor, source: source}, true
	}

	if leaf.Type() == spec.rootType {
		return codeBlock{}, false
	}
	return codeBlock{node: leaf, source: source}, true
}

func enclosingOfType(node *sitter.Node, nodeType string) *sitter.Node {
	if nodeType == "" {
		return nil
	}
	for current := node; current != nil; current = current.Parent() {
		if current.Type() == nodeType {
			return current
		}
	}
	return nil
}

func nearestBlockTypeAncestor(node *sitter.Node, spec languageSpec) *sitter.Node {
	for current := node; current != nil; current = current.Parent() {
		if current.Type() == spec.rootType {
			return nil
		}
		if spec.blockTypes.has(current.Type()) {
			return current
		}
	}
	return nil
}

func fileLevelAssignment(node *sitter.Node, spec languageSpec) *sitter.Node {
	if len(spec.assignTypes) == 0 {
		return nil
	}
	isAssignType := func(t string) bool {
		for _, a := range spec.assignTypes {
			if t == a {
				return true
			}
		}
		return false
	}
	for current := node; current != nil; current = current.Parent() {
		if isAssignType(current.Type()) {
			if parent := current.Parent(); parent != nil && parent.Type() == spec.rootType {
				return current
			}
			return nil
		}
	}
	return nil
}

// filterNestedBlocks drops any block that is fully contained within
// another, distinct block in the set, keeping only maximal blocks.
func filterNestedBlocks(collected map[blockKey]codeBlock) []codeBlock {
	blocks := make([]codeBlock, 0, len(collected))
	for _, b := range collected {
		blocks = append(blocks, b)
	}
	if len(blocks) <= 1 {
		return blocks
	}

	kept := make([]codeBlock, 0, len(blocks))
	for i, b := range blocks {
		contained := false
		for j, other := range blocks {
			if i == j {
				continue
			}
			if isContainedIn(b, other) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, b)
		}
	}
	return kept
}

func isContainedIn(inner, outer codeBlock) bool {
	is, ie := inner.startPoint(), inner.endPoint()
	os_, oe := outer.startPoint(), outer.endPoint()
	sameSpan := is == os_ && ie == oe
	if sameSpan {
		return false
	}
	return pointLTE(os_, is) && pointGTE(oe, ie)
}

func pointLTE(a, b sitter.Point) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column <= b.Column
}

func pointGTE(a, b sitter.Point) bool {
	if a.Row != b.Row {
		return a.Row > b.Row
	}
	return a.Column >= b.Column
}
