package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monoMeasurer gives every character the same width.
type monoMeasurer float64

func (m monoMeasurer) Width(text string, _ Style) float64 {
	return float64(len([]rune(text))) * float64(m)
}

func TestWrap(t *testing.T) {
	got := Wrap("one two three four", StyleText, 9, monoMeasurer(1))
	assert.Equal(t, []string{"one two", "three", "four"}, got)

	got = Wrap("averyveryverylongword x", StyleText, 5, monoMeasurer(1))
	assert.Equal(t, []string{"averyveryverylongword", "x"}, got)

	got = Wrap("line one\nline two", StyleText, 100, monoMeasurer(1))
	assert.Equal(t, []string{"line one", "line two"}, got)
}

func TestPaginate_SinglePage(t *testing.T) {
	lines := []Line{{Text: "1. PATIENT DETAILS", Style: StyleSection}, {Text: "Name: Maria", Style: StyleEmphasis}}
	l := Paginate(lines, monoMeasurer(2))
	require.Equal(t, 1, l.PageCount())
	blocks := l.Pages[0].Blocks
	require.Len(t, blocks, 2)
	assert.Equal(t, FirstPageTop+5, blocks[0].Y)
	assert.InDelta(t, FirstPageTop+5+12*0.4+3+2, blocks[1].Y, 1e-9)
}

func TestPaginate_BreaksAndIsDeterministic(t *testing.T) {
	var lines []Line
	for i := 0; i < 60; i++ {
		lines = append(lines, Line{Text: "Subsection", Style: StyleSubsection}, Line{Text: strings.Repeat("word ", 40), Style: StyleText})
	}
	a := Paginate(lines, monoMeasurer(2))
	b := Paginate(lines, monoMeasurer(2))
	assert.Equal(t, a, b)
	require.Greater(t, a.PageCount(), 1)

	for i, p := range a.Pages {
		assert.Equal(t, i+1, p.Number)
		require.NotEmpty(t, p.Blocks)
		for _, blk := range p.Blocks {
			assert.Less(t, blk.Y, FooterY)
		}
	}
	// The tenth subsection heading would cross the break, so page two
	// opens with it.
	assert.Equal(t, PageTop, a.Pages[1].Blocks[0].Y)
	assert.Equal(t, StyleSubsection, a.Pages[1].Blocks[0].Style)
}

func TestPaginate_SplitsLongParagraphAcrossPages(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("lombalgia ", 3000))
	lines := []Line{{Text: "4.1 Clinical history", Style: StyleSubsection}, {Text: body, Style: StyleText}}
	m := monoMeasurer(2)

	l := Paginate(lines, m)
	require.Greater(t, l.PageCount(), 2)

	placed := 0
	for i, p := range l.Pages {
		require.NotEmpty(t, p.Blocks, "page %d", i+1)
		for _, blk := range p.Blocks {
			last := blk.Y + float64(len(blk.Lines))*LineHeight(blk.Style)
			assert.LessOrEqual(t, last, BreakAfter+1e-9, "page %d block at %.1f", i+1, blk.Y)
			if blk.Style == StyleText {
				placed += len(blk.Lines)
			}
		}
		if i > 0 {
			assert.Equal(t, PageTop, p.Blocks[0].Y)
			assert.Equal(t, StyleText, p.Blocks[0].Style)
		}
	}
	assert.Equal(t, len(Wrap(body, StyleText, ContentWidth, m)), placed)
}

func TestPaginate_ParagraphEndingAtBreakAddsNoPage(t *testing.T) {
	// 47 section lines end at 265.6 mm; the gaps after them pass the break
	// but nothing else follows.
	long := strings.TrimSuffix(strings.Repeat("x\n", 47), "\n")
	l := Paginate([]Line{{Text: long, Style: StyleSection}}, monoMeasurer(1))
	require.Equal(t, 1, l.PageCount())
	assert.Len(t, l.Pages[0].Blocks[0].Lines, 47)
}

func TestFooterLines(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	left, right := FooterLines(2, 3, time.Date(2024, 6, 3, 13, 5, 0, 0, time.UTC), loc)
	assert.Equal(t, "Generated at: 03/06/2024 10:05", left)
	assert.Equal(t, "Page 2 of 3", right)
}
