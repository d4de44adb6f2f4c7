//go:build !gocv

package capture

var defaultSearch searchFunc = scorePyramid
