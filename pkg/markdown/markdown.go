package markdown

import (
	"bytes"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/htmlutil"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// FrontMatter is the subset of a YAML front matter block that is used.
type FrontMatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// Heading is an ATX or setext heading. Offset is the byte offset of the
// heading text within Document.Text.
type Heading struct {
	Level  int
	Title  string
	Offset int
}

// Document is a parsed Markdown file reduced to plain text.
type Document struct {
	FrontMatter FrontMatter
	Headings    []Heading
	Text        string

	body []byte
}

// Parse splits off YAML front matter and renders the rest to plain text,
// recording where each heading starts.
func Parse(source []byte) (*Document, error) {
	fm, body, err := splitFrontMatter(source)
	if err != nil {
		return nil, err
	}

	doc := &Document{FrontMatter: fm, body: body}
	root := md.Parser().Parse(text.NewReader(body))

	var sb strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if entering {
				startBlock(&sb)
				doc.Headings = append(doc.Headings, Heading{
					Level:  node.Level,
					Title:  strings.TrimSpace(string(nodeText(node, body))),
					Offset: sb.Len(),
				})
			}
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(body))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(body))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				startBlock(&sb)
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(body))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			if entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				startBlock(&sb)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	doc.Text = strings.TrimSpace(sb.String())
	if doc.Text != sb.String() {
		// Leading whitespace was trimmed, so heading offsets shift with it.
		shift := len(sb.String()) - len(strings.TrimLeft(sb.String(), " \t\r\n"))
		for i := range doc.Headings {
			doc.Headings[i].Offset -= shift
			if doc.Headings[i].Offset < 0 {
				doc.Headings[i].Offset = 0
			}
		}
	}
	return doc, nil
}

// Title prefers the front matter title and falls back to the first level 1
// heading.
func (d *Document) Title() string {
	if t := strings.TrimSpace(d.FrontMatter.Title); t != "" {
		return t
	}
	for _, h := range d.Headings {
		if h.Level == 1 && h.Title != "" {
			return h.Title
		}
	}
	return ""
}

// HTML renders the body as sanitized HTML.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Convert(d.body, &buf); err != nil {
		return "", errors.WithStack(err)
	}
	return htmlutil.Sanitize(buf.String()), nil
}

// startBlock separates block level elements with a blank line.
func startBlock(sb *strings.Builder) {
	if sb.Len() == 0 {
		return
	}
	s := sb.String()
	switch {
	case strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		sb.WriteByte('\n')
	default:
		sb.WriteString("\n\n")
	}
}

func nodeText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.Write(nodeText(c, source))
		}
	}
	return buf.Bytes()
}

var frontMatterDelimiter = []byte("---")

// splitFrontMatter removes a leading "---" delimited YAML block. A block
// that does not parse as YAML is an error; an unterminated one is treated
// as ordinary content.
func splitFrontMatter(source []byte) (FrontMatter, []byte, error) {
	fm := FrontMatter{}
	source = bytes.TrimPrefix(source, []byte("\xEF\xBB\xBF"))

	firstLine, rest, ok := bytes.Cut(source, []byte("\n"))
	if !ok || !bytes.Equal(bytes.TrimSpace(firstLine), frontMatterDelimiter) {
		return fm, source, nil
	}

	offset := 0
	for offset <= len(rest) {
		line, _, found := bytes.Cut(rest[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelimiter) {
			if err := yaml.Unmarshal(rest[:offset], &fm); err != nil {
				return fm, nil, errors.Wrap(err, "invalid front matter")
			}
			end := offset + len(line)
			if found {
				end++
			}
			return fm, rest[end:], nil
		}
		if !found {
			break
		}
		offset += len(line) + 1
	}
	return FrontMatter{}, source, nil
}
