// Package extract turns uploaded files into plain text ready for chunking.
package extract

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct {
	md goldmark.Markdown
}

func New() *Extractor {
	return &Extractor{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Extract returns the text content of an upload. Markdown is flattened to
// its readable text; other utf-8 text passes through unchanged.
func (e *Extractor) Extract(filename, contentType string, data []byte) (string, error) {
	kind := detect(filename, contentType)
	if kind == kindPDF {
		return "", fmt.Errorf("pdf extraction is not supported: %w", appErr.ErrUnsupportedFile)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !IsText(data) {
		return "", fmt.Errorf("%s is not utf-8 text: %w", filename, appErr.ErrUnsupportedFile)
	}
	if kind == kindMarkdown {
		return e.markdownToText(data), nil
	}
	return string(data), nil
}

type fileKind int

const (
	kindText fileKind = iota
	kindMarkdown
	kindPDF
)

func detect(filename, contentType string) fileKind {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown", ".mdx":
		return kindMarkdown
	case ".pdf":
		return kindPDF
	}
	switch mediaType {
	case "text/markdown", "text/x-markdown":
		return kindMarkdown
	case "application/pdf":
		return kindPDF
	}
	return kindText
}

// IsText reports whether data looks like utf-8 text without NUL bytes.
func IsText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	return utf8.Valid(data)
}

func (e *Extractor) markdownToText(src []byte) string {
	doc := e.md.Parser().Parse(text.NewReader(src))
	w := &textWriter{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				w.write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					w.write([]byte{'\n'})
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				w.write(node.Value)
			}
			return ast.WalkContinue, nil
		case *ast.AutoLink:
			if entering {
				w.write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					w.write(seg.Value(src))
				}
				w.blockEnd()
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *extast.TableCell:
			if !entering {
				w.write([]byte{'\t'})
			}
			return ast.WalkContinue, nil
		case *extast.TableRow, *extast.TableHeader:
			if !entering {
				w.lineEnd()
			}
			return ast.WalkContinue, nil
		}
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			w.blockEnd()
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(w.buf.String())
}

type textWriter struct {
	buf bytes.Buffer
}

func (w *textWriter) write(b []byte) {
	w.buf.Write(b)
}

func (w *textWriter) lineEnd() {
	out := bytes.TrimRight(w.buf.Bytes(), "\t ")
	w.buf.Truncate(len(out))
	if w.buf.Len() > 0 && !bytes.HasSuffix(w.buf.Bytes(), []byte{'\n'}) {
		w.buf.WriteByte('\n')
	}
}

func (w *textWriter) blockEnd() {
	if w.buf.Len() == 0 || bytes.HasSuffix(w.buf.Bytes(), []byte("\n\n")) {
		return
	}
	w.lineEnd()
	w.buf.WriteByte('\n')
}
