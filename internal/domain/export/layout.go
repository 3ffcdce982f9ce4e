package export

import (
	"strings"
)

// A4 portrait geometry in millimetres.
const (
	PageWidth    = 210.0
	PageHeight   = 297.0
	MarginLeft   = 15.0
	MarginRight  = 15.0
	BannerHeight = 25.0
	FirstPageTop = 35.0
	PageTop      = 20.0
	BreakAfter   = 270.0
	FooterY      = 290.0

	ContentWidth = PageWidth - MarginLeft - MarginRight
)

const (
	sectionGapBefore    = 5.0
	sectionGapAfter     = 2.0
	subsectionGapBefore = 3.0
	paragraphGap        = 3.0
	lineFactor          = 0.4
)

// FontSize returns the point size used for a style.
func FontSize(s Style) float64 {
	switch s {
	case StyleSection:
		return 12
	case StyleSubsection, StyleEmphasis:
		return 11
	default:
		return 10
	}
}

// Bold reports whether a style is set in bold.
func Bold(s Style) bool {
	return s != StyleText
}

// LineHeight is the vertical advance of one wrapped line.
func LineHeight(s Style) float64 {
	return FontSize(s) * lineFactor
}

// Measurer reports the printed width of text in millimetres.
type Measurer interface {
	Width(text string, style Style) float64
}

// Block is a wrapped paragraph placed at a vertical position.
type Block struct {
	Y     float64
	Lines []string
	Style Style
}

type Page struct {
	Number int
	Blocks []Block
}

// Layout is a document split into pages.
type Layout struct {
	Pages []Page
}

func (l Layout) PageCount() int { return len(l.Pages) }

// Paginate places lines top to bottom. The first page starts below the
// banner. A line that would run past BreakAfter opens a new page, so a long
// paragraph continues as a new block at PageTop.
func Paginate(lines []Line, m Measurer) Layout {
	pages := []Page{{Number: 1}}
	y := FirstPageTop
	for _, l := range lines {
		switch l.Style {
		case StyleSection:
			y += sectionGapBefore
		case StyleSubsection:
			y += subsectionGapBefore
		}
		lh := LineHeight(l.Style)
		blk := Block{Y: y, Style: l.Style}
		for _, text := range Wrap(l.Text, l.Style, ContentWidth, m) {
			cur := &pages[len(pages)-1]
			if y+lh > BreakAfter && (len(blk.Lines) > 0 || len(cur.Blocks) > 0) {
				if len(blk.Lines) > 0 {
					cur.Blocks = append(cur.Blocks, blk)
				}
				pages = append(pages, Page{Number: len(pages) + 1})
				y = PageTop
				blk = Block{Y: y, Style: l.Style}
			}
			blk.Lines = append(blk.Lines, text)
			y += lh
		}
		cur := &pages[len(pages)-1]
		cur.Blocks = append(cur.Blocks, blk)

		y += paragraphGap
		if l.Style == StyleSection {
			y += sectionGapAfter
		}
	}
	return Layout{Pages: pages}
}

// Wrap breaks text into lines no wider than width, splitting at spaces.
// Explicit newlines are kept. A word wider than width gets a line of its
// own.
func Wrap(text string, style Style, width float64, m Measurer) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if m.Width(candidate, style) > width {
				out = append(out, line)
				line = w
				continue
			}
			line = candidate
		}
		out = append(out, line)
	}
	return out
}
