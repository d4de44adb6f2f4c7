package capture

import (
	"image"
	"sync"
	"sync/atomic"
)

// maxPooledBytes keeps oversized grabs (a full 4K desktop and up) out of the
// pool so one stray capture does not pin a large buffer.
const maxPooledBytes = 64 << 20

// rgbaPool recycles raw capture buffers. Raw RGBA grabs only live until the
// Source converts them to grayscale.
type rgbaPool struct {
	pool   sync.Pool
	reused atomic.Uint64
	fresh  atomic.Uint64
}

var rawFrames rgbaPool

func (p *rgbaPool) get(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	n := w * h * 4
	if v, ok := p.pool.Get().(*image.RGBA); ok && cap(v.Pix) >= n {
		p.reused.Add(1)
		v.Pix, v.Stride, v.Rect = v.Pix[:n], w*4, rect
		return v
	}
	p.fresh.Add(1)
	return &image.RGBA{Pix: make([]byte, n), Stride: w * 4, Rect: rect}
}

func (p *rgbaPool) put(img *image.RGBA) {
	if img == nil || img.Pix == nil || cap(img.Pix) > maxPooledBytes {
		return
	}
	p.pool.Put(img)
}

// acquireFrame returns an RGBA buffer covering rect with Stride w*4. Pixel
// contents are undefined.
func acquireFrame(rect image.Rectangle) *image.RGBA { return rawFrames.get(rect) }

// RecycleFrame hands img back for reuse. The caller must not touch it
// afterwards.
func RecycleFrame(img *image.RGBA) { rawFrames.put(img) }

// poolCounters reports how many acquisitions reused a buffer and how many
// allocated one.
func poolCounters() (reused, fresh uint64) {
	return rawFrames.reused.Load(), rawFrames.fresh.Load()
}
