package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is used when a quality outside 1..100 is requested.
const DefaultJPEGQuality = 90

// ReadImage decodes a png, jpeg, gif or webp file.
func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// SaveImage writes img in the format implied by the file extension.
func SaveImage(img image.Image, filename string) error {
	return imaging.Save(img, filename, imaging.JPEGQuality(DefaultJPEGQuality))
}

// Encode writes img to w in the format named by ext ("png", "jpg", ...).
// quality applies to jpeg only.
func Encode(w io.Writer, img image.Image, ext string, quality int) error {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return err
	}
	switch format {
	case imaging.JPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case imaging.PNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	default:
		return imaging.Encode(w, img, format)
	}
}

// SavePalette writes the palette as a strip of square tiles.
func SavePalette(palette []colorful.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}

	w := tileSize * len(palette)
	h := tileSize
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, c := range palette {
		r := uint8(max(0, min(255, c.R*255)))
		g := uint8(max(0, min(255, c.G*255)))
		b := uint8(max(0, min(255, c.B*255)))
		x0 := i * tileSize
		x1 := x0 + tileSize
		for y := range h {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
			}
		}
	}
	return SaveImage(img, filename)
}
