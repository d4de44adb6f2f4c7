package capture

import (
	"image"
	"math"
)

// grayPrecomp stores per-frame grayscale values and their summed-area tables
// (integral images). The integrals allow O(1) window sum and variance queries.
type grayPrecomp struct {
	gray       []float64 // per pixel grayscale (length W*H)
	integral   []float64 // summed-area table of grayscale
	integralSq []float64 // summed-area table of grayscale squared
	W, H       int
}

// templatePrecomp caches grayscale pixels and summary statistics for a
// reference pattern.
type templatePrecomp struct {
	gray  []float64
	W, H  int
	meanT float64
	stdT  float64
}

const flatEps = 1e-9

func newTemplatePrecomp(g *image.Gray) *templatePrecomp {
	if g == nil {
		return nil
	}
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	gray := make([]float64, w*h)
	var sumT, sumT2 float64
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			f := float64(v)
			gray[y*w+x] = f
			sumT += f
			sumT2 += f * f
		}
	}
	n := float64(w * h)
	meanT := sumT / n
	varT := (sumT2 - sumT*sumT/n) / n
	stdT := 0.0
	if varT > 0 {
		stdT = math.Sqrt(varT)
	}
	return &templatePrecomp{gray: gray, W: w, H: h, meanT: meanT, stdT: stdT}
}

// buildGrayPrecomp computes grayscale values and their summed-area tables for
// a frame.
func buildGrayPrecomp(g *image.Gray) *grayPrecomp {
	if g == nil {
		return nil
	}
	b := g.Bounds()
	W, H := b.Dx(), b.Dy()
	need := W * H
	p := &grayPrecomp{
		gray:       make([]float64, need),
		integral:   make([]float64, need),
		integralSq: make([]float64, need),
		W:          W,
		H:          H,
	}
	for y := 0; y < H; y++ {
		var rowSum, rowSum2 float64
		row := g.Pix[y*g.Stride : y*g.Stride+W]
		for x, v := range row {
			gray := float64(v)
			off := y*W + x
			p.gray[off] = gray
			rowSum += gray
			rowSum2 += gray * gray
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[(y-1)*W+x] + rowSum
				p.integralSq[off] = p.integralSq[(y-1)*W+x] + rowSum2
			}
		}
	}
	return p
}

// integralSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1]
// from an integral image stored in row-major order with width W.
func integralSum(I []float64, W int, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	A := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return I[y*W+x]
	}
	return A(x1, y1) - A(x0-1, y1) - A(x1, y0-1) + A(x0-1, y0-1)
}

// nccAt returns the TM_CCOEFF_NORMED score of the template placed at (x, y).
// Windows without variance score 0.
func nccAt(pre *grayPrecomp, pc *templatePrecomp, x, y int) float64 {
	w, h := pc.W, pc.H
	sumF := integralSum(pre.integral, pre.W, x, y, x+w-1, y+h-1)
	sumF2 := integralSum(pre.integralSq, pre.W, x, y, x+w-1, y+h-1)
	var sumFT float64
	for py := 0; py < h; py++ {
		frow := pre.gray[(y+py)*pre.W+x : (y+py)*pre.W+x+w]
		trow := pc.gray[py*w : py*w+w]
		for i, fv := range frow {
			sumFT += fv * trow[i]
		}
	}
	return correlate(pc, sumF, sumF2, sumFT)
}

// nccDirect scores the window at (x, y) straight from the pixels, for callers
// that only visit a handful of offsets and have no integral images.
func nccDirect(g *image.Gray, pc *templatePrecomp, x, y int) float64 {
	w, h := pc.W, pc.H
	var sumF, sumF2, sumFT float64
	for py := 0; py < h; py++ {
		off := (y+py)*g.Stride + x
		frow := g.Pix[off : off+w]
		trow := pc.gray[py*w : py*w+w]
		for i, v := range frow {
			fv := float64(v)
			sumF += fv
			sumF2 += fv * fv
			sumFT += fv * trow[i]
		}
	}
	return correlate(pc, sumF, sumF2, sumFT)
}

func correlate(pc *templatePrecomp, sumF, sumF2, sumFT float64) float64 {
	n := float64(pc.W * pc.H)
	meanF := sumF / n
	varF := (sumF2 - sumF*sumF/n) / n
	if varF <= flatEps {
		return 0
	}
	denom := n * math.Sqrt(varF) * pc.stdT
	if denom <= 0 {
		return 0
	}
	score := (sumFT - n*meanF*pc.meanT) / denom
	// rounding can push a perfect match just past 1
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score
}

// scoreNCC computes normalized cross-correlation between a pattern and a frame
// and returns the best score with its top-left offset (frame-local). The frame
// must be at least as large as the pattern.
func scoreNCC(f *Frame, p *Pattern, stride int, refine bool) (float64, image.Point) {
	pre := f.precomp()
	pc := p.pre
	if pre == nil || pc == nil {
		return -1, image.Point{}
	}
	W, H := pre.W, pre.H
	w, h := pc.W, pc.H
	if W < w || H < h {
		return -1, image.Point{}
	}
	if pc.stdT <= flatEps {
		return exactFlat(pre, pc)
	}
	if stride <= 0 {
		stride = 1
	}
	bestX, bestY, bestScore := 0, 0, -1.0
	for y := 0; y <= H-h; y += stride {
		for x := 0; x <= W-w; x += stride {
			if s := nccAt(pre, pc, x, y); s > bestScore {
				bestScore, bestX, bestY = s, x, y
			}
		}
	}
	if refine && stride > 1 {
		minY := max(0, bestY-stride)
		maxY := min(H-h, bestY+stride)
		minX := max(0, bestX-stride)
		maxX := min(W-w, bestX+stride)
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				if s := nccAt(pre, pc, x, y); s > bestScore {
					bestScore, bestX, bestY = s, x, y
				}
			}
		}
	}
	return bestScore, image.Point{X: bestX, Y: bestY}
}

// exactFlat handles single-colour patterns, for which correlation is
// undefined: a window of identical pixels scores 1, anything else 0.
func exactFlat(pre *grayPrecomp, pc *templatePrecomp) (float64, image.Point) {
	ref := pc.gray[0]
	W := pre.W
	for y := 0; y <= pre.H-pc.H; y++ {
	window:
		for x := 0; x <= W-pc.W; x++ {
			for py := 0; py < pc.H; py++ {
				for px := 0; px < pc.W; px++ {
					if math.Abs(pre.gray[(y+py)*W+x+px]-ref) > flatEps {
						continue window
					}
				}
			}
			return 1, image.Point{X: x, Y: y}
		}
	}
	return 0, image.Point{}
}
