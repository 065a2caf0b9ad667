package pfpbuilder

import (
	"image"
	"image/color"
	"image/draw"
)

// DefaultSilhouetteThreshold keeps faint anti-aliased edges in the shape.
const DefaultSilhouetteThreshold uint8 = 10

var (
	silhouetteInk   = color.RGBA{0, 0, 0, 255}
	silhouettePaper = color.RGBA{255, 255, 255, 255}
)

// Silhouette returns a black/white copy of src: every pixel whose alpha is
// above threshold becomes opaque black, every other pixel opaque white.
// Only alpha is read. The second value is the number of black pixels; zero
// means the render produced nothing visible.
func Silhouette(src image.Image, threshold uint8) (*image.RGBA, int) {
	dst := copyRGBA(src)
	return dst, SilhouetteInPlace(dst, threshold)
}

// SilhouetteInPlace binarizes img in place and returns the black pixel count.
func SilhouetteInPlace(img *image.RGBA, threshold uint8) int {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	black := 0
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			px := row[x*4 : x*4+4 : x*4+4]
			c := silhouettePaper
			if px[3] > threshold {
				c = silhouetteInk
				black++
			}
			px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
		}
	}
	return black
}

// Resilhouette is Silhouette for images that may already be silhouettes:
// an input holding only opaque black and opaque white is returned as an
// unchanged copy, anything else goes through Silhouette. Fresh renders
// go through Silhouette.
func Resilhouette(src image.Image, threshold uint8) (*image.RGBA, int) {
	dst := copyRGBA(src)
	if black, ok := binaryInk(dst); ok {
		return dst, black
	}
	return dst, SilhouetteInPlace(dst, threshold)
}

func copyRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// binaryInk reports whether img only holds silhouette colours and, if so,
// how many of them are black.
func binaryInk(img *image.RGBA) (int, bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	black := 0
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			px := row[x*4 : x*4+4 : x*4+4]
			switch {
			case px[3] != 255:
				return 0, false
			case px[0] == 0 && px[1] == 0 && px[2] == 0:
				black++
			case px[0] == 255 && px[1] == 255 && px[2] == 255:
			default:
				return 0, false
			}
		}
	}
	return black, true
}
