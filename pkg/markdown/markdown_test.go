package markdown

import (
	"context"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/internal/testgen"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `---
title: Front Matter Title
author: Casey Doe
tags: [a, b]
---
# Getting Started

Some *emphasis* and a [link](http://example.com).
Second line.

## Install

` + "```sh\ngo install ./...\n```" + `

- one
- two
`

func TestParse(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "Front Matter Title", doc.FrontMatter.Title)
	assert.Equal(t, "Casey Doe", doc.FrontMatter.Author)
	assert.Equal(t, "Front Matter Title", doc.Title())

	assert.Equal(t, "Getting Started\n\nSome emphasis and a link.\nSecond line.\n\nInstall\n\ngo install ./...\n\none\n\ntwo", doc.Text)

	require.Len(t, doc.Headings, 2)
	assert.Equal(t, Heading{Level: 1, Title: "Getting Started", Offset: 0}, doc.Headings[0])
	assert.Equal(t, 2, doc.Headings[1].Level)
	assert.Equal(t, "Install", doc.Text[doc.Headings[1].Offset:doc.Headings[1].Offset+len("Install")])
}

func TestParse_TitleFromHeading(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte("Intro text\n\n## Minor\n\n# Major\n"))
	require.NoError(t, err)
	assert.Equal(t, "Major", doc.Title())
	assert.Empty(t, doc.FrontMatter.Author)
}

func TestParse_FrontMatter(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte("---\nno closing delimiter\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.FrontMatter.Title)
	assert.Contains(t, doc.Text, "no closing delimiter")

	_, err = Parse([]byte("---\ntitle: [unterminated\n---\nbody"))
	require.Error(t, err)

	doc, err = Parse([]byte("---\r\ntitle: CRLF\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "CRLF", doc.Title())
}

func TestDocument_HTML(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte("# Title\n\n<script>alert(1)</script>\n\nHello **world**"))
	require.NoError(t, err)

	html, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>world</strong>")
	assert.NotContains(t, html, "<script>")
}

func TestConverter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := testgen.WriteFile(t, dir, "guide.md", []byte(sample))

	c := NewConverter()
	text, err := mediafile.ExtractTextString(context.Background(), c, path)
	require.NoError(t, err)
	assert.Contains(t, text, "Getting Started")
	assert.NotContains(t, text, "title:")

	meta, err := c.ExtractMetadata(context.Background(), path, formats.Markdown)
	require.NoError(t, err)
	assert.Equal(t, "Front Matter Title", meta.Title)
	assert.Equal(t, "Casey Doe", meta.Author)
	assert.Equal(t, 1, meta.PageCount)
	assert.True(t, meta.PageCountEstimated)

	bad := testgen.WriteFile(t, dir, "bad.md", []byte("---\ntitle: [x\n---\n"))
	_, err = c.ExtractMetadata(context.Background(), bad, formats.Markdown)
	var extractionErr *mediafile.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
}
