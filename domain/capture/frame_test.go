package capture

import (
	"image"
	"image/draw"
	"math/rand/v2"
	"testing"
)

func TestToGray_RGBAMatchesDraw(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	src := image.NewRGBA(image.Rect(5, 7, 45, 37))
	for i := range src.Pix {
		src.Pix[i] = uint8(r.IntN(256))
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	// a sub-image exercises the stride and offset handling
	sub := src.SubImage(image.Rect(9, 10, 40, 30)).(*image.RGBA)

	got := ToGray(sub)
	want := image.NewGray(image.Rect(0, 0, sub.Bounds().Dx(), sub.Bounds().Dy()))
	draw.Draw(want, want.Bounds(), sub, sub.Bounds().Min, draw.Src)
	if got.Bounds() != want.Bounds() {
		t.Fatalf("bounds %v, want %v", got.Bounds(), want.Bounds())
	}
	for y := 0; y < want.Bounds().Dy(); y++ {
		for x := 0; x < want.Bounds().Dx(); x++ {
			if g, w := got.GrayAt(x, y).Y, want.GrayAt(x, y).Y; g != w {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, g, w)
			}
		}
	}
}

func BenchmarkCaptureConversion(b *testing.B) {
	src := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	for b.Loop() {
		_ = grayFromRGBA(src)
	}
}
