package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// pageBreakMarker matches what the PDF extraction stage inserts between pages.
const pageBreakMarker = "----- PAGE BREAK -----"

var tableParser = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// hasTable reports whether the chunk text contains a Markdown table.
// Extraction renders PDF tables as pipe tables, so parsing the chunk with the
// table extension and looking for table nodes is a reliable sniff.
func hasTable(chunkText string) bool {
	if !strings.Contains(chunkText, "|") {
		return false
	}

	source := []byte(chunkText)
	doc := tableParser.Parser().Parse(text.NewReader(source))

	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		kindName := n.Kind().String()
		if kindName == "Table" {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// pageForOffset returns the 1-based page number for a byte offset, derived
// from page-break markers earlier in the text. Zero marker occurrences means
// everything is page 1.
func pageForOffset(docText string, offset int) int {
	if offset > len(docText) {
		offset = len(docText)
	}
	return 1 + strings.Count(docText[:offset], pageBreakMarker)
}
