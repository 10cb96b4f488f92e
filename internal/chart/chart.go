// Package chart renders a NOVA percentage table as a horizontal stacked bar
// chart.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"novawatch/internal/fsutil"
	"novawatch/internal/nova"

	"golang.org/x/image/font/inconsolata"
)

const (
	// the chart is 10x8 inches at 150 dpi
	DefaultWidth  = 1500
	DefaultHeight = 1200

	// fraction of a row's band taken up by its bar
	barFraction = 0.5
	tickStep    = 20
)

type Options struct {
	Title       string
	XLabel      string
	YLabel      string
	LegendTitle string
	Width       int
	Height      int
}

// DefaultOptions labels the chart for brands sold in `country`.
func DefaultOptions(country string) Options {
	return Options{
		Title:       fmt.Sprintf("NOVA Classification of Products by Brand (%s)", country),
		XLabel:      "Percentage of Products",
		YLabel:      "Brand",
		LegendTitle: "NOVA Group",
		Width:       DefaultWidth,
		Height:      DefaultHeight,
	}
}

var (
	titleStyle  = textStyle{face: inconsolata.Bold8x16, scale: 2, color: color.Black}
	labelStyle  = textStyle{face: inconsolata.Regular8x16, scale: 1, color: color.Black}
	legendTitle = textStyle{face: inconsolata.Bold8x16, scale: 1, color: color.Black}

	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	axisColor  = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	frameColor = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
)

// ParseHex parses a "#rrggbb" color.
func ParseHex(hex string) (color.RGBA, error) {
	trimmed := strings.TrimPrefix(hex, "#")
	if len(trimmed) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func groupColors() (map[nova.Group]color.RGBA, error) {
	out := make(map[nova.Group]color.RGBA, len(nova.Groups))
	for _, g := range nova.Groups {
		c, err := ParseHex(nova.Colors[g])
		if err != nil {
			return nil, err
		}
		out[g] = c
	}
	return out, nil
}

type layout struct {
	width, height int
	plot          image.Rectangle
	legend        image.Rectangle
	rows          int
}

const (
	margin       = 24
	swatchSize   = 16
	legendPad    = 12
	legendRowGap = 8
)

func newLayout(opts Options, t nova.Table) layout {
	labelWidth := 0
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, labelStyle.size(row.Brand).X)
	}

	legendWidth := legendTitle.size(opts.LegendTitle).X
	for _, g := range nova.Groups {
		legendWidth = max(legendWidth, swatchSize+legendPad+labelStyle.size(string(g)).X)
	}
	legendWidth += 2 * legendPad
	lineHeight := labelStyle.size("X").Y
	legendHeight := legendPad*2 + lineHeight + len(nova.Groups)*(lineHeight+legendRowGap)

	top := margin + titleStyle.size(opts.Title).Y + margin
	bottom := opts.Height - margin - 2*lineHeight - 2*legendRowGap - margin
	left := margin + lineHeight + margin + labelWidth + legendPad
	right := opts.Width - margin - legendWidth - margin

	// not image.Rect, which would swap the corners of a negative-sized plot
	plot := image.Rectangle{Min: image.Pt(left, top), Max: image.Pt(right, bottom)}
	return layout{
		width:  opts.Width,
		height: opts.Height,
		plot:   plot,
		legend: image.Rect(right+margin, top, right+margin+legendWidth, top+legendHeight),
		rows:   len(t.Rows),
	}
}

// band returns the vertical extent of the i-th row's bar, rows go from top
// to bottom.
func (l layout) band(i int) (int, int) {
	bandHeight := float64(l.plot.Dy()) / float64(l.rows)
	center := float64(l.plot.Min.Y) + bandHeight*(float64(i)+0.5)
	half := bandHeight * barFraction / 2
	return int(math.Round(center - half)), int(math.Round(center + half))
}

func (l layout) bandCenter(i int) int {
	y0, y1 := l.band(i)
	return (y0 + y1) / 2
}

// x maps a percentage onto the plot's horizontal axis.
func (l layout) x(pct float64) int {
	pct = math.Max(0, math.Min(100, pct))
	return l.plot.Min.X + int(math.Round(pct/100*float64(l.plot.Dx())))
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Render draws the table as a PNG. Rows are drawn top to bottom in table
// order, each row's segments stack left to right in nova.Groups order.
func Render(w io.Writer, t nova.Table, opts Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid chart size %dx%d", opts.Width, opts.Height)
	}
	colors, err := groupColors()
	if err != nil {
		return err
	}

	l := newLayout(opts, t)
	if l.plot.Dx() <= 0 || l.plot.Dy() <= 0 {
		return fmt.Errorf("chart size %dx%d is too small for its labels", opts.Width, opts.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	fill(img, img.Bounds(), background)

	titleStyle.drawCentered(img, opts.Title, opts.Width/2, margin)

	lineHeight := labelStyle.size("X").Y

	// bars
	for i, row := range t.Rows {
		y0, y1 := l.band(i)
		var cumulative float64
		for _, g := range nova.Groups {
			v := row.Get(g)
			if v <= 0 {
				continue
			}
			x0 := l.x(cumulative)
			cumulative += v
			x1 := l.x(cumulative)
			fill(img, image.Rect(x0, y0, x1, y1), colors[g])
		}

		cy := l.bandCenter(i)
		fill(img, image.Rect(l.plot.Min.X-6, cy, l.plot.Min.X, cy+1), axisColor)
		labelStyle.drawRight(img, row.Brand, l.plot.Min.X-legendPad, cy-lineHeight/2)
	}

	// axes
	fill(img, image.Rect(l.plot.Min.X, l.plot.Min.Y, l.plot.Max.X, l.plot.Min.Y+1), frameColor)
	fill(img, image.Rect(l.plot.Max.X-1, l.plot.Min.Y, l.plot.Max.X, l.plot.Max.Y), frameColor)
	fill(img, image.Rect(l.plot.Min.X-1, l.plot.Min.Y, l.plot.Min.X, l.plot.Max.Y+1), axisColor)
	fill(img, image.Rect(l.plot.Min.X-1, l.plot.Max.Y, l.plot.Max.X, l.plot.Max.Y+1), axisColor)
	for pct := 0; pct <= 100; pct += tickStep {
		x := l.x(float64(pct))
		fill(img, image.Rect(x, l.plot.Max.Y, x+1, l.plot.Max.Y+6), axisColor)
		labelStyle.drawCentered(img, strconv.Itoa(pct), x, l.plot.Max.Y+legendRowGap)
	}

	labelStyle.drawCentered(
		img,
		opts.XLabel,
		l.plot.Min.X+l.plot.Dx()/2,
		l.plot.Max.Y+legendRowGap*2+lineHeight,
	)
	ylabel := labelStyle.size(opts.YLabel)
	labelStyle.drawVertical(
		img,
		opts.YLabel,
		image.Pt(margin, l.plot.Min.Y+l.plot.Dy()/2-ylabel.X/2),
	)

	drawLegend(img, l, opts, colors)

	return png.Encode(w, img)
}

func drawLegend(img draw.Image, l layout, opts Options, colors map[nova.Group]color.RGBA) {
	fill(img, l.legend, frameColor)
	fill(img, l.legend.Inset(1), background)

	lineHeight := labelStyle.size("X").Y
	legendTitle.drawCentered(img, opts.LegendTitle, l.legend.Min.X+l.legend.Dx()/2, l.legend.Min.Y+legendPad)

	y := l.legend.Min.Y + legendPad + lineHeight + legendRowGap
	for _, g := range nova.Groups {
		swatch := image.Rect(
			l.legend.Min.X+legendPad,
			y+(lineHeight-swatchSize)/2,
			l.legend.Min.X+legendPad+swatchSize,
			y+(lineHeight-swatchSize)/2+swatchSize,
		)
		fill(img, swatch, colors[g])
		labelStyle.draw(img, string(g), image.Pt(swatch.Max.X+legendPad, y))
		y += lineHeight + legendRowGap
	}
}

// SaveFile renders the chart to path, creating its directory if needed.
func SaveFile(path string, t nova.Table, opts Options) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		return Render(w, t, opts)
	})
}
