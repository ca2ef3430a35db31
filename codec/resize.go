package codec

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"pixbatch/models"
)

// Resize scales img to the target box with Catmull-Rom resampling. With
// keepAspect the result fits inside the box; otherwise it is stretched to
// the exact size. Up- and downscaling follow the same rule.
func Resize(img image.Image, target models.Resolution, keepAspect bool) image.Image {
	w, h := FitDimensions(img.Bounds().Dx(), img.Bounds().Dy(), target, keepAspect)
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// FitDimensions computes the output size for a source of srcW x srcH.
func FitDimensions(srcW, srcH int, target models.Resolution, keepAspect bool) (int, int) {
	if !keepAspect || srcW <= 0 || srcH <= 0 {
		return target.Width, target.Height
	}
	ratio := math.Min(float64(target.Width)/float64(srcW), float64(target.Height)/float64(srcH))
	w := int(math.Round(float64(srcW) * ratio))
	h := int(math.Round(float64(srcH) * ratio))
	return max(w, 1), max(h, 1)
}
