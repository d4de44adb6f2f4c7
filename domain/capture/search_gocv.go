//go:build gocv

package capture

import (
	"image"

	"gocv.io/x/gocv"
)

var defaultSearch searchFunc = scoreGoCV

// scoreGoCV runs TM_CCOEFF_NORMED through OpenCV. Stride and refine do not
// apply; OpenCV always scans the full search space.
func scoreGoCV(f *Frame, p *Pattern, _ int, _ bool) (float64, image.Point) {
	frame, err := gocv.ImageGrayToMatGray(f.Gray)
	if err != nil {
		return -1, image.Point{}
	}
	defer frame.Close()
	tmpl, err := gocv.ImageGrayToMatGray(p.Gray)
	if err != nil {
		return -1, image.Point{}
	}
	defer tmpl.Close()
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(frame, tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return float64(maxVal), maxLoc
}
