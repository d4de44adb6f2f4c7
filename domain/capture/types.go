package capture

import (
	"image"
)

// Region is a sub-rectangle of the capture area expressed as fractions of its
// width and height. The zero value means the full area.
type Region struct {
	X, Y, W, H float64
}

// Full is the whole capture area.
var Full = Region{}

// IsFull reports whether r covers the whole capture area.
func (r Region) IsFull() bool {
	if r == Full {
		return true
	}
	return r.X == 0 && r.Y == 0 && r.W == 1 && r.H == 1
}

// Rect converts r into absolute coordinates inside area. Offsets and sizes are
// truncated toward zero.
func (r Region) Rect(area image.Rectangle) image.Rectangle {
	if r.IsFull() {
		return area
	}
	w, h := float64(area.Dx()), float64(area.Dy())
	x0 := area.Min.X + int(r.X*w)
	y0 := area.Min.Y + int(r.Y*h)
	return image.Rect(x0, y0, x0+int(r.W*w), y0+int(r.H*h)).Intersect(area)
}

// Detection is a single positive match in absolute capture coordinates.
type Detection struct {
	Name        string
	TopLeft     image.Point
	BottomRight image.Point
	Score       float64
}

// Center returns the midpoint of the detection box.
func (d Detection) Center() image.Point {
	return image.Point{
		X: d.TopLeft.X + (d.BottomRight.X-d.TopLeft.X)/2,
		Y: d.TopLeft.Y + (d.BottomRight.Y-d.TopLeft.Y)/2,
	}
}

// Translate shifts the detection by off.
func (d Detection) Translate(off image.Point) Detection {
	d.TopLeft = d.TopLeft.Add(off)
	d.BottomRight = d.BottomRight.Add(off)
	return d
}

// Grabber acquires raw pixels from the display.
type Grabber interface {
	// Bounds returns the default capture area in absolute screen coordinates.
	Bounds() (image.Rectangle, error)
	// Grab returns the pixels inside rect. The returned image may be recycled
	// by the caller with RecycleFrame.
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// Source supplies grayscale frames for a region of the capture area.
type Source interface {
	Area() (image.Rectangle, error)
	Capture(r Region) (*Frame, error)
}

// PatternSet resolves reference names to patterns.
type PatternSet interface {
	Get(name string) *Pattern
}
