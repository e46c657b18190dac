package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBlocks(t *testing.T) {
	src := `<html><head><title>t</title><style>.x{color:red}</style></head>
<body>
  <h1>Reciprocal Rank Fusion</h1>
  <p>RRF combines <b>several</b> rankings.</p>
  <p>RRF combines <b>several</b> rankings.</p>
  <script>var tracking = 1;</script>
  <ul><li>k = 60</li><li>rank starts at 1</li></ul>
  <table><tr><td>ignored cell</td></tr></table>
</body></html>`

	blocks, err := ExtractBlocks(src)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Reciprocal Rank Fusion",
		"RRF combines several rankings.",
		"k = 60",
		"rank starts at 1",
	}, blocks)
}

func TestExtractBlocksNestedDivs(t *testing.T) {
	blocks, err := ExtractBlocks(`<div><div><span>alpha</span></div><p>beta</p></div>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha beta", "alpha", "beta"}, blocks)
}

func TestExtractBlocksSkipsScriptInsideText(t *testing.T) {
	blocks, err := ExtractBlocks(`<p>visible<script>hidden()</script><noscript>also hidden</noscript></p>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, blocks)
}

func TestExtractBlocksEmpty(t *testing.T) {
	blocks, err := ExtractBlocks(`<html><body><img src="x.png"></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestParseFrontMatter(t *testing.T) {
	text := "---\ntitle: Go 1.24 Release Notes\nauthor:  The Go Team \nurl: https://go.dev/doc/go1.24\nnot a pair\n---\nGo 1.24 arrives six months after Go 1.23.\n"

	body, meta := ParseFrontMatter(text)
	assert.Equal(t, "Go 1.24 arrives six months after Go 1.23.\n", body)
	assert.Equal(t, map[string]string{
		"title":  "Go 1.24 Release Notes",
		"author": "The Go Team",
		"url":    "https://go.dev/doc/go1.24",
	}, meta)
}

func TestParseFrontMatterAbsent(t *testing.T) {
	body, meta := ParseFrontMatter("plain text only")
	assert.Equal(t, "plain text only", body)
	assert.Nil(t, meta)
}

func TestParseFrontMatterEmptyBlock(t *testing.T) {
	body, meta := ParseFrontMatter("---\n   \n---\nbody")
	assert.Equal(t, "body", body)
	assert.NotNil(t, meta)
	assert.Empty(t, meta)
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"one", "two\nlines", "three"}, paragraphs("one\n\ntwo\nlines\n \n\nthree\n\none"))
}
