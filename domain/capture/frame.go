package capture

import (
	"image"
	"image/draw"
	"sync"
)

// Frame is a grayscale capture of part of the screen. Origin is the absolute
// screen position of the frame's top-left pixel.
type Frame struct {
	Gray   *image.Gray
	Origin image.Point

	once sync.Once
	pre  *grayPrecomp

	levelMu sync.Mutex
	levels  []*Frame
}

// NewFrame wraps a grayscale image captured at origin.
func NewFrame(g *image.Gray, origin image.Point) *Frame {
	return &Frame{Gray: g, Origin: origin}
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	if f == nil || f.Gray == nil {
		return image.Point{}
	}
	return f.Gray.Bounds().Size()
}

// precomp builds the integral images on first use.
func (f *Frame) precomp() *grayPrecomp {
	f.once.Do(func() { f.pre = buildGrayPrecomp(f.Gray) })
	return f.pre
}

// level returns the frame halved i times, building missing levels on demand.
// It returns nil once a level would have no pixels.
func (f *Frame) level(i int) *Frame {
	if i == 0 {
		return f
	}
	f.levelMu.Lock()
	defer f.levelMu.Unlock()
	for len(f.levels) < i {
		prev := f
		if n := len(f.levels); n > 0 {
			prev = f.levels[n-1]
		}
		g := halve(prev.Gray)
		if g == nil {
			return nil
		}
		f.levels = append(f.levels, &Frame{Gray: g})
	}
	return f.levels[i-1]
}

// Pattern is an immutable grayscale reference image.
type Pattern struct {
	Name string
	Gray *image.Gray
	pre  *templatePrecomp

	levelOnce sync.Once
	levels    []*Pattern
}

// NewPattern converts img to grayscale and precomputes its statistics.
func NewPattern(name string, img image.Image) *Pattern {
	g := ToGray(img)
	return &Pattern{Name: name, Gray: g, pre: newTemplatePrecomp(g)}
}

// Size returns the pattern dimensions.
func (p *Pattern) Size() image.Point {
	if p == nil || p.Gray == nil {
		return image.Point{}
	}
	return p.Gray.Bounds().Size()
}

// ToGray returns img as a zero-origin *image.Gray.
func ToGray(img image.Image) *image.Gray {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		if b.Min == (image.Point{}) {
			return src
		}
	case *image.RGBA:
		return grayFromRGBA(src)
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// grayFromRGBA applies color.GrayModel's weights directly to the pixel
// buffer; draw.Draw has no fast path for a gray destination.
func grayFromRGBA(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[off : off+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range dst {
			r := uint32(row[4*x]) * 0x101
			g := uint32(row[4*x+1]) * 0x101
			bl := uint32(row[4*x+2]) * 0x101
			dst[x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 24)
		}
	}
	return out
}
