package output

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goofoo/lumen/pkg/core"
)

func TestEXRRoundTrip(t *testing.T) {
	width, height := 17, 9
	pixels := make([]core.Vec3, width*height)
	for i := range pixels {
		pixels[i] = core.NewVec3(
			float64(i)*0.25,
			float64(i%7)+0.5,
			17.0/(float64(i)+1),
		)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.exr")
	if err := WriteEXR(path, width, height, pixels); err != nil {
		t.Fatalf("write: %v", err)
	}

	gotWidth, gotHeight, got, err := ReadEXR(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if gotWidth != width || gotHeight != height {
		t.Fatalf("resolution %dx%d, want %dx%d", gotWidth, gotHeight, width, height)
	}

	for i := range pixels {
		// values survive a float32 round trip
		diff := got[i].Subtract(pixels[i])
		limit := pixels[i].L1Norm()*1e-6 + 1e-6
		if math.Abs(diff.X) > limit || math.Abs(diff.Y) > limit || math.Abs(diff.Z) > limit {
			t.Fatalf("pixel %d: %v != %v", i, got[i], pixels[i])
		}
	}
}

func TestEXRRejectsGarbage(t *testing.T) {
	if _, _, _, err := parseEXR([]byte("not an exr file")); err == nil {
		t.Error("garbage input accepted")
	}
	if _, _, _, err := parseEXR(nil); err == nil {
		t.Error("empty input accepted")
	}
}

func TestWriteEXRValidatesPixelCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.exr")
	if err := WriteEXR(path, 4, 4, make([]core.Vec3, 3)); err == nil {
		t.Error("mismatched pixel count accepted")
	}
}

func TestMetaFormat(t *testing.T) {
	meta := Meta{
		Technique:        "BPT1",
		Samples:          128,
		NumIntersectRays: 1000,
		NumOccludedRays:  500,
		Width:            512,
		Height:           512,
		Epsilon:          0.0025,
		TotalTime:        3 * time.Second,
	}

	text := meta.Format()
	for _, want := range []string{
		"technique: BPT1",
		"samples: 128",
		"resolution: 512x512",
		"epsilon: 0.0025",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metadata missing %q:\n%s", want, text)
		}
	}
}
