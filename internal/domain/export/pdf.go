package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "Helvetica"

var (
	brandColor = [3]int{26, 123, 125}
	mutedColor = [3]int{128, 128, 128}
)

// Meta is printed around the laid-out content.
type Meta struct {
	Title       string
	GeneratedAt time.Time
	Location    *time.Location
}

// pdfMeasurer measures with the core font metrics of the document being
// written. Text is translated to the font's code page first.
type pdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (m pdfMeasurer) setFont(s Style) {
	style := ""
	if Bold(s) {
		style = "B"
	}
	m.pdf.SetFont(fontFamily, style, FontSize(s))
}

func (m pdfMeasurer) Width(text string, s Style) float64 {
	m.setFont(s)
	return m.pdf.GetStringWidth(m.tr(text))
}

// FooterLines returns the two footer texts of page i of n.
func FooterLines(i, n int, generated time.Time, loc *time.Location) (left, right string) {
	return "Generated at: " + generated.In(loc).Format("02/01/2006 15:04"), fmt.Sprintf("Page %d of %d", i, n)
}

// RenderPDF lays lines out on A4 pages and writes the PDF. It returns the
// document and its page count.
func RenderPDF(lines []Line, meta Meta) ([]byte, int, error) {
	loc := meta.Location
	if loc == nil {
		loc = time.UTC
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(MarginLeft, PageTop, MarginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(meta.Title, true)
	pdf.SetCreationDate(meta.GeneratedAt)
	m := pdfMeasurer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	layout := Paginate(lines, m)
	n := layout.PageCount()
	for _, page := range layout.Pages {
		pdf.AddPage()
		if page.Number == 1 {
			drawBanner(pdf, m, meta.Title)
		}
		for _, b := range page.Blocks {
			drawBlock(pdf, m, b)
		}
		left, right := FooterLines(page.Number, n, meta.GeneratedAt, loc)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(mutedColor[0], mutedColor[1], mutedColor[2])
		pdf.Text(MarginLeft, FooterY, m.tr(left))
		pdf.Text(PageWidth-MarginRight-pdf.GetStringWidth(m.tr(right)), FooterY, m.tr(right))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), n, nil
}

func drawBanner(pdf *fpdf.Fpdf, m pdfMeasurer, title string) {
	pdf.SetFillColor(brandColor[0], brandColor[1], brandColor[2])
	pdf.Rect(0, 0, PageWidth, BannerHeight, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(fontFamily, "B", 16)
	t := m.tr(strings.ToUpper(title))
	pdf.Text((PageWidth-pdf.GetStringWidth(t))/2, 15, t)
}

func drawBlock(pdf *fpdf.Fpdf, m pdfMeasurer, b Block) {
	if b.Style == StyleSection {
		pdf.SetFillColor(brandColor[0], brandColor[1], brandColor[2])
		pdf.Rect(MarginLeft, b.Y-5, ContentWidth, 8, "F")
		pdf.SetTextColor(255, 255, 255)
	} else {
		pdf.SetTextColor(0, 0, 0)
	}
	m.setFont(b.Style)
	for i, line := range b.Lines {
		pdf.Text(MarginLeft, b.Y+float64(i)*LineHeight(b.Style), m.tr(line))
	}
}
