package output

import (
	"fmt"
	"image"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/goofoo/lumen/pkg/core"
	"golang.org/x/image/draw"
)

// WritePreview writes a tone-mapped (gamma 2.2, clamped) WebP preview of
// an HDR image, optionally downscaled by an integer factor.
func WritePreview(path string, width, height int, pixels []core.Vec3, downscale int) error {
	if len(pixels) != width*height {
		return fmt.Errorf("write preview: pixel count %d does not match %dx%d", len(pixels), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := pixels[y*width+x].Clamp(0, 1).GammaCorrect(2.2)
			offset := img.PixOffset(x, y)
			img.Pix[offset+0] = uint8(c.X*255 + 0.5)
			img.Pix[offset+1] = uint8(c.Y*255 + 0.5)
			img.Pix[offset+2] = uint8(c.Z*255 + 0.5)
			img.Pix[offset+3] = 255
		}
	}

	out := img
	if downscale > 1 {
		scaled := image.NewNRGBA(image.Rect(0, 0, width/downscale, height/downscale))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = scaled
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	defer f.Close()

	if err := nativewebp.Encode(f, out, nil); err != nil {
		return fmt.Errorf("write preview %s: %w", path, err)
	}
	return nil
}
