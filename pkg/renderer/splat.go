package renderer

import "github.com/goofoo/lumen/pkg/core"

// SplatXY is one light-to-camera contribution with its pixel coordinates
type SplatXY struct {
	X, Y  int
	Color core.Vec3
}

// splatBuffer collects the splats emitted while rendering one tile. Each
// buffer is owned by the worker tracing that tile, so appends need no
// lock; the driver applies the buffers in tile order at the frame
// barrier, which keeps the light image bit-identical regardless of the
// worker count.
type splatBuffer struct {
	splats []SplatXY
}

// add appends one splat
func (sb *splatBuffer) add(pixel core.Vec2, color core.Vec3) {
	sb.splats = append(sb.splats, SplatXY{X: int(pixel.X), Y: int(pixel.Y), Color: color})
}

// applyTo accumulates the buffer into the light image and clears it
func (sb *splatBuffer) applyTo(image []core.Vec3, width, height int) {
	for _, s := range sb.splats {
		if s.X < 0 || s.X >= width || s.Y < 0 || s.Y >= height {
			continue
		}
		index := s.Y*width + s.X
		image[index] = image[index].Add(s.Color)
	}
	sb.splats = sb.splats[:0]
}
