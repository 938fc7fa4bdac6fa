package output

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Meta is the per-frame metadata written alongside each rendered image
type Meta struct {
	Technique        string
	Samples          int
	NumIntersectRays uint64
	NumOccludedRays  uint64
	Width, Height    int
	Epsilon          float64
	TotalTime        time.Duration
}

// Format renders the metadata as key: value lines
func (m Meta) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "technique: %s\n", m.Technique)
	fmt.Fprintf(&b, "samples: %d\n", m.Samples)
	fmt.Fprintf(&b, "intersect rays: %d\n", m.NumIntersectRays)
	fmt.Fprintf(&b, "occluded rays: %d\n", m.NumOccludedRays)
	fmt.Fprintf(&b, "resolution: %dx%d\n", m.Width, m.Height)
	fmt.Fprintf(&b, "epsilon: %g\n", m.Epsilon)
	fmt.Fprintf(&b, "total time: %s\n", m.TotalTime)
	return b.String()
}

// WriteMeta writes the metadata file next to an image output
func WriteMeta(path string, m Meta) error {
	if err := os.WriteFile(path, []byte(m.Format()), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
