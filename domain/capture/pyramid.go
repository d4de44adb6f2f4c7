package capture

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// maxPyramidDepth caps downscaling at 1/8 of the captured resolution.
	maxPyramidDepth = 3
	// minLevelSide keeps coarse patterns large enough to carry structure.
	minLevelSide = 4
	// coarseCandidates is how many separated coarse maxima are followed down.
	coarseCandidates = 4
	// refineRadius bounds the neighbourhood searched at each finer level.
	refineRadius = 2
)

// halve downsamples g to half its size with a box filter. It returns nil when
// either side would drop to zero.
func halve(g *image.Gray) *image.Gray {
	if g == nil {
		return nil
	}
	b := g.Bounds()
	w, h := b.Dx()/2, b.Dy()/2
	if w == 0 || h == 0 {
		return nil
	}
	n := imaging.Resize(g, w, h, imaging.Box)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := n.Pix[y*n.Stride : y*n.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range dst {
			// a gray source resamples to equal channels
			dst[x] = src[x*4]
		}
	}
	return out
}

// pyramid returns p followed by its halved copies, finest first. Halving
// stops at minLevelSide or when a level loses all contrast.
func (p *Pattern) pyramid() []*Pattern {
	p.levelOnce.Do(func() {
		p.levels = []*Pattern{p}
		g := p.Gray
		for range maxPyramidDepth {
			sz := g.Bounds().Size()
			if sz.X/2 < minLevelSide || sz.Y/2 < minLevelSide {
				break
			}
			g = halve(g)
			pc := newTemplatePrecomp(g)
			if pc == nil || pc.stdT <= flatEps {
				break
			}
			p.levels = append(p.levels, &Pattern{Name: p.Name, Gray: g, pre: pc})
		}
	})
	return p.levels
}

// scorePyramid searches coarse to fine. The coarsest level both images
// share is scanned exhaustively; the best separated offsets are then followed
// down one level at a time, searching only a small neighbourhood of the
// doubled position. The returned score is always the full-resolution one.
// Patterns that cannot be downscaled use the strided scan.
func scorePyramid(f *Frame, p *Pattern, stride int, refine bool) (float64, image.Point) {
	if p.pre == nil {
		return -1, image.Point{}
	}
	if p.pre.stdT <= flatEps {
		return scoreNCC(f, p, stride, refine)
	}
	levels := p.pyramid()
	top := len(levels) - 1
	var coarse *Frame
	for ; top > 0; top-- {
		if c := f.level(top); c != nil && fits(c, levels[top]) {
			coarse = c
			break
		}
	}
	if coarse == nil {
		return scoreNCC(f, p, stride, refine)
	}

	best, at := -1.0, image.Point{}
	for _, pt := range bestOffsets(coarse.precomp(), levels[top].pre, coarseCandidates) {
		score := -1.0
		for l := top - 1; l >= 0; l-- {
			score, pt = refineAt(f.level(l).Gray, levels[l].pre, pt.Mul(2))
		}
		if score > best {
			best, at = score, pt
		}
	}
	return best, at
}

// bestOffsets scans every offset and returns up to n local maxima, each at
// least refineRadius+1 apart, best first.
func bestOffsets(pre *grayPrecomp, pc *templatePrecomp, n int) []image.Point {
	cols, rows := pre.W-pc.W+1, pre.H-pc.H+1
	if cols <= 0 || rows <= 0 {
		return nil
	}
	scores := make([]float64, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			scores[y*cols+x] = nccAt(pre, pc, x, y)
		}
	}
	out := make([]image.Point, 0, n)
	for len(out) < n {
		bi, bs := -1, math.Inf(-1)
		for i, s := range scores {
			if s > bs {
				bi, bs = i, s
			}
		}
		if bi < 0 {
			break
		}
		bx, by := bi%cols, bi/cols
		out = append(out, image.Point{X: bx, Y: by})
		for y := max(0, by-refineRadius); y <= min(rows-1, by+refineRadius); y++ {
			for x := max(0, bx-refineRadius); x <= min(cols-1, bx+refineRadius); x++ {
				scores[y*cols+x] = math.Inf(-1)
			}
		}
	}
	return out
}

// refineAt searches the refineRadius neighbourhood of center in g.
func refineAt(g *image.Gray, pc *templatePrecomp, center image.Point) (float64, image.Point) {
	b := g.Bounds()
	maxX, maxY := b.Dx()-pc.W, b.Dy()-pc.H
	best, at := -1.0, image.Point{X: min(max(center.X, 0), max(maxX, 0)), Y: min(max(center.Y, 0), max(maxY, 0))}
	for y := max(0, center.Y-refineRadius); y <= min(maxY, center.Y+refineRadius); y++ {
		for x := max(0, center.X-refineRadius); x <= min(maxX, center.X+refineRadius); x++ {
			if s := nccDirect(g, pc, x, y); s > best {
				best, at = s, image.Point{X: x, Y: y}
			}
		}
	}
	return best, at
}
