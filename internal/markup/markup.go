// Package markup extracts text from the embedded HTML fragments that
// structure members use for rich text. Inline bold, italic, and
// underline tags survive into the output, font elements become span
// tags with normalized attributes, and everything else is stripped.
package markup

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/arloliu/spv/pivot"
)

// Decode parses an embedded HTML fragment. It returns the contained
// text with inline markup normalized and the font style declared by the
// fragment's head style sheet.
func Decode(content string) (string, *pivot.FontStyle) {
	style := &pivot.FontStyle{Size: 10, FG: pivot.Black, BG: pivot.White}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return collapseText(content, &strings.Builder{}), style
	}

	if css := findStyleSheet(root); css != "" {
		parseCSS(css, style)
	}

	var out strings.Builder
	extractText(root, style.Size, &out)

	return out.String(), style
}

func findStyleSheet(root *html.Node) string {
	var find func(n *html.Node, name string) *html.Node
	find = func(n *html.Node, name string) *html.Node {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == name {
				return c
			}
			if found := find(c, name); found != nil {
				return found
			}
		}

		return nil
	}

	styleNode := find(root, "style")
	if styleNode == nil {
		return ""
	}
	var text strings.Builder
	for c := styleNode.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}

	return text.String()
}

// parseCSS applies the font declarations of an embedded style sheet.
// Unknown properties are ignored.
func parseCSS(css string, style *pivot.FontStyle) {
	css = strings.TrimSpace(css)
	if i := strings.Index(css, "{"); i >= 0 {
		css = css[i+1:]
		if j := strings.Index(css, "}"); j >= 0 {
			css = css[:j]
		}
	}
	for _, decl := range strings.Split(css, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		switch name {
		case "font-weight":
			style.Bold = strings.EqualFold(value, "bold")
		case "font-style":
			style.Italic = strings.EqualFold(value, "italic")
		case "text-decoration":
			style.Underline = strings.EqualFold(value, "underline")
		case "font-family":
			face, _, _ := strings.Cut(value, ",")
			style.Typeface = strings.Trim(strings.TrimSpace(face), `"'`)
		case "font-size":
			digits := strings.TrimRight(value, "ptx%em")
			if size, err := strconv.ParseFloat(strings.TrimSpace(digits), 64); err == nil && size > 0 {
				style.Size = size
			}
		case "color":
			if c, err := pivot.ColorFromString(value, style.FG); err == nil {
				style.FG = c
			}
		}
	}
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}

	return "", false
}

// putAttr writes name="value" with XML escaping inside the value.
func putAttr(out *strings.Builder, name, value string) {
	out.WriteByte(' ')
	out.WriteString(name)
	out.WriteString(`="`)
	for _, r := range value {
		switch r {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		case '"':
			out.WriteString("&quot;")
		default:
			out.WriteRune(r)
		}
	}
	out.WriteByte('"')
}

// scale maps HTML font sizes 1..7 to multiples of the base size.
var sizeScale = [7]float64{.444, .556, .667, .778, 1.0, 1.33, 2.0}

func extractText(n *html.Node, baseSize float64, out *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		name := n.Data
		switch {
		case name == "br":
			out.WriteByte('\n')

			return
		case name == "style":
			return
		case name == "b" || name == "i" || name == "u":
			fmt.Fprintf(out, "<%s>", name)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				extractText(c, baseSize, out)
			}
			fmt.Fprintf(out, "</%s>", name)

			return
		case name == "font":
			out.WriteString("<span")
			if face, ok := attrValue(n, "face"); ok {
				putAttr(out, "face", face)
			}
			if color, ok := attrValue(n, "color"); ok {
				if strings.HasPrefix(color, "#") {
					putAttr(out, "color", color)
				} else {
					var r, g, b uint8
					if _, err := fmt.Sscanf(color, "rgb (%d, %d, %d)", &r, &g, &b); err == nil {
						putAttr(out, "color", fmt.Sprintf("#%02x%02x%02x", r, g, b))
					}
				}
			}
			if sizeS, ok := attrValue(n, "size"); ok {
				if htmlSize, err := strconv.Atoi(sizeS); err == nil && htmlSize >= 1 && htmlSize <= 7 {
					size := baseSize * sizeScale[htmlSize-1]
					putAttr(out, "size", fmt.Sprintf("%.0f", size*1024))
				}
			}
			out.WriteByte('>')
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				extractText(c, baseSize, out)
			}
			out.WriteString("</span>")

			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c, baseSize, out)
		}

	case html.TextNode:
		collapseText(n.Data, out)

	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c, baseSize, out)
		}
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// collapseText appends text with nonbreaking and figure spaces turned
// into regular spaces, whitespace runs collapsed, and markup characters
// escaped. Both special spaces appear constantly in SPV text and break
// line wrapping if kept.
func collapseText(text string, out *strings.Builder) string {
	for _, r := range text {
		if r == ' ' || r == ' ' {
			r = ' '
		}
		switch {
		case isSpace(r):
			if s := out.String(); s != "" && !isSpace(rune(s[len(s)-1])) {
				out.WriteRune(r)
			}
		case r == '<':
			out.WriteString("&lt;")
		case r == '>':
			out.WriteString("&gt;")
		case r == '&':
			out.WriteString("&amp;")
		default:
			out.WriteRune(r)
		}
	}

	return out.String()
}

// Paragraph is one line of a page heading with its alignment.
type Paragraph struct {
	Text   string
	HAlign pivot.HAlign
}

// Paragraphs splits an embedded HTML fragment into page heading
// paragraphs. Each p element yields one paragraph whose alignment comes
// from its style attribute; a fragment without p elements yields a
// single left-aligned paragraph.
func Paragraphs(content string) []Paragraph {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		var out strings.Builder

		return []Paragraph{{Text: collapseText(content, &out), HAlign: pivot.HAlignLeft}}
	}

	var paras []Paragraph
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			var out strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				extractText(c, 10, &out)
			}
			paras = append(paras, Paragraph{Text: out.String(), HAlign: alignFromStyle(n)})

			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if paras == nil {
		var out strings.Builder
		extractText(root, 10, &out)
		if text := out.String(); text != "" {
			paras = append(paras, Paragraph{Text: text, HAlign: pivot.HAlignLeft})
		}
	}

	return paras
}

func alignFromStyle(n *html.Node) pivot.HAlign {
	style, _ := attrValue(n, "style")
	switch {
	case strings.Contains(style, "center"):
		return pivot.HAlignCenter
	case strings.Contains(style, "right"):
		return pivot.HAlignRight
	default:
		return pivot.HAlignLeft
	}
}
