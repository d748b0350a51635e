package render

import (
	"html/template"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gosimple/slug"
	"github.com/renderinc/spacetraveling/internal/content"
)

// anchors hands out unique heading ids within one page.
type anchors map[string]int

func (a anchors) next(text string) string {
	base := slug.Make(text)
	if base == "" {
		base = "secao"
	}
	a[base]++
	if n := a[base]; n > 1 {
		return base + "-" + strconv.Itoa(n)
	}
	return base
}

// RichTextHTML renders blocks as HTML. Consecutive list items are grouped
// into one list; unknown block types render as paragraphs. All text is
// escaped.
func RichTextHTML(blocks []content.Block) template.HTML {
	return richText(blocks, anchors{})
}

func richText(blocks []content.Block, ids anchors) template.HTML {
	var b strings.Builder
	list := ""
	closeList := func() {
		if list != "" {
			b.WriteString("</" + list + ">")
			list = ""
		}
	}

	for _, block := range blocks {
		switch block.Type {
		case "list-item", "o-list-item":
			want := "ul"
			if block.Type == "o-list-item" {
				want = "ol"
			}
			if list != want {
				closeList()
				b.WriteString("<" + want + ">")
				list = want
			}
			b.WriteString("<li>" + spansHTML(block.Text, block.Spans) + "</li>")
			continue
		}
		closeList()

		switch block.Type {
		case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
			tag := "h" + strings.TrimPrefix(block.Type, "heading")
			b.WriteString(`<` + tag + ` id="` + template.HTMLEscapeString(ids.next(block.Text)) + `">`)
			b.WriteString(spansHTML(block.Text, block.Spans))
			b.WriteString("</" + tag + ">")
		case "preformatted":
			b.WriteString("<pre>" + template.HTMLEscapeString(block.Text) + "</pre>")
		default:
			b.WriteString("<p>" + spansHTML(block.Text, block.Spans) + "</p>")
		}
	}
	closeList()

	return template.HTML(b.String())
}

// spansHTML applies strong, em and hyperlink spans to text. Offsets count
// UTF-16 code units. Overlapping spans are split at every boundary, so
// each segment is wrapped in the spans active over it.
func spansHTML(text string, spans []content.Span) string {
	if len(spans) == 0 {
		return template.HTMLEscapeString(text)
	}

	units := utf16.Encode([]rune(text))
	n := len(units)

	var valid []content.Span
	cuts := map[int]bool{0: true, n: true}
	for _, s := range spans {
		if s.Start < 0 || s.End > n || s.Start >= s.End {
			continue
		}
		switch s.Type {
		case "strong", "em", "hyperlink":
		default:
			continue
		}
		valid = append(valid, s)
		cuts[s.Start] = true
		cuts[s.End] = true
	}

	points := make([]int, 0, len(cuts))
	for p := range cuts {
		points = append(points, p)
	}
	sort.Ints(points)

	var b strings.Builder
	for i := 0; i+1 < len(points); i++ {
		from, to := points[i], points[i+1]
		segment := template.HTMLEscapeString(string(utf16.Decode(units[from:to])))

		var link string
		var strong, em bool
		for _, s := range valid {
			if s.Start <= from && to <= s.End {
				switch s.Type {
				case "strong":
					strong = true
				case "em":
					em = true
				case "hyperlink":
					link = s.URL
				}
			}
		}

		if em {
			segment = "<em>" + segment + "</em>"
		}
		if strong {
			segment = "<strong>" + segment + "</strong>"
		}
		if link != "" && safeURL(link) {
			segment = `<a href="` + template.HTMLEscapeString(link) + `" target="_blank" rel="noopener noreferrer">` + segment + "</a>"
		}
		b.WriteString(segment)
	}
	return b.String()
}

func safeURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "/")
}
