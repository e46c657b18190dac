package scrape

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var textTags = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Span: true, atom.Li: true, atom.Div: true,
}

var skipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// ExtractBlocks returns the text of every p, h1-h6, span, li and div
// element, script and style content excluded, deduplicated in document
// order. Nested containers contribute their full text as well as their
// children's, so fragments may overlap.
func ExtractBlocks(src string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.DataAtom] {
				return
			}
			if textTags[n.DataAtom] {
				if text := nodeText(n); text != "" && !seen[text] {
					seen[text] = true
					out = append(out, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// nodeText concatenates the trimmed text nodes under n with single spaces.
func nodeText(n *html.Node) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				parts = append(parts, s)
			}
		case html.ElementNode:
			if skipTags[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(parts, " ")
}

var (
	frontMatterRe = regexp.MustCompile(`(?s)\A\s*---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|\z)`)
	metaLineRe    = regexp.MustCompile(`(?m)^\s*([\w.-]+)\s*:\s*(.*?)\s*$`)
	blankLineRe   = regexp.MustCompile(`\n\s*\n`)
)

// ParseFrontMatter splits a leading "---" delimited block of "key: value"
// lines off text. meta is nil when there is no block, and empty when the
// block holds no valid pairs.
func ParseFrontMatter(text string) (body string, meta map[string]string) {
	m := frontMatterRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text, nil
	}
	block := text[m[2]:m[3]]
	body = text[m[1]:]

	meta = make(map[string]string)
	for _, kv := range metaLineRe.FindAllStringSubmatch(block, -1) {
		meta[kv[1]] = strings.TrimSpace(kv[2])
	}
	return body, meta
}

// paragraphs splits plain or markdown text on blank lines, dropping empty
// and duplicate paragraphs.
func paragraphs(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range blankLineRe.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
