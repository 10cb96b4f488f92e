package chart

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// textStyle draws text with a bitmap face, scaled up by an integer factor.
type textStyle struct {
	face  font.Face
	scale int
	color color.Color
}

func (s textStyle) size(text string) image.Point {
	w := font.MeasureString(s.face, text).Ceil()
	h := s.face.Metrics().Height.Ceil()
	return image.Pt(w*s.scale, h*s.scale)
}

// render draws text at 1x on a transparent image the size of the text.
func (s textStyle) render(text string) *image.RGBA {
	metrics := s.face.Metrics()
	w := font.MeasureString(s.face, text).Ceil()
	img := image.NewRGBA(image.Rect(0, 0, w, metrics.Height.Ceil()))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(s.color),
		Face: s.face,
		Dot:  fixed.P(0, metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
	return img
}

func (s textStyle) blit(dst draw.Image, src *image.RGBA, at image.Point) {
	size := src.Bounds().Size().Mul(s.scale)
	xdraw.NearestNeighbor.Scale(
		dst,
		image.Rectangle{Min: at, Max: at.Add(size)},
		src,
		src.Bounds(),
		xdraw.Over,
		nil,
	)
}

// draw places the top-left corner of the text at `at`.
func (s textStyle) draw(dst draw.Image, text string, at image.Point) {
	if text == "" {
		return
	}
	s.blit(dst, s.render(text), at)
}

// drawCentered centers the text horizontally on x.
func (s textStyle) drawCentered(dst draw.Image, text string, x, y int) {
	s.draw(dst, text, image.Pt(x-s.size(text).X/2, y))
}

// drawRight aligns the end of the text on x.
func (s textStyle) drawRight(dst draw.Image, text string, x, y int) {
	s.draw(dst, text, image.Pt(x-s.size(text).X, y))
}

// drawVertical draws text rotated 90 degrees counter-clockwise, reading
// bottom to top, with the top-left corner of the rotated text at `at`.
func (s textStyle) drawVertical(dst draw.Image, text string, at image.Point) {
	if text == "" {
		return
	}
	src := s.render(text)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	rotated := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rotated.Set(y, w-1-x, src.At(x, y))
		}
	}
	s.blit(dst, rotated, at)
}
