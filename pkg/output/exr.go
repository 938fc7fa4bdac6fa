// Package output persists render results: 32-bit float OpenEXR images,
// tone-mapped WebP previews and frame metadata text files.
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/goofoo/lumen/pkg/core"
)

// OpenEXR scanline format, uncompressed, FLOAT B/G/R channels. Only the
// subset this renderer writes is supported by the reader.
const (
	exrMagic   = 20000630
	exrVersion = 2

	pixelTypeFloat = 2
)

// WriteEXR writes a 32-bit float RGB image to an OpenEXR file
func WriteEXR(path string, width, height int, pixels []core.Vec3) error {
	if len(pixels) != width*height {
		return fmt.Errorf("write exr: pixel count %d does not match %dx%d", len(pixels), width, height)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write exr: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeEXRTo(w, width, height, pixels); err != nil {
		return fmt.Errorf("write exr %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write exr %s: %w", path, err)
	}
	return nil
}

func writeEXRTo(w io.Writer, width, height int, pixels []core.Vec3) error {
	le := binary.LittleEndian

	if err := binary.Write(w, le, int32(exrMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, le, int32(exrVersion)); err != nil {
		return err
	}

	// channel list: alphabetical order, FLOAT, sampling 1x1
	var chlist []byte
	for _, name := range []string{"B", "G", "R"} {
		chlist = append(chlist, name...)
		chlist = append(chlist, 0)
		chlist = le.AppendUint32(chlist, pixelTypeFloat)
		chlist = append(chlist, 0, 0, 0, 0) // pLinear + reserved
		chlist = le.AppendUint32(chlist, 1)
		chlist = le.AppendUint32(chlist, 1)
	}
	chlist = append(chlist, 0)

	box := make([]byte, 0, 16)
	box = le.AppendUint32(box, 0)
	box = le.AppendUint32(box, 0)
	box = le.AppendUint32(box, uint32(width-1))
	box = le.AppendUint32(box, uint32(height-1))

	float1 := le.AppendUint32(nil, math.Float32bits(1.0))
	v2f := make([]byte, 8)

	attrs := []struct {
		name, typ string
		value     []byte
	}{
		{"channels", "chlist", chlist},
		{"compression", "compression", []byte{0}},
		{"dataWindow", "box2i", box},
		{"displayWindow", "box2i", box},
		{"lineOrder", "lineOrder", []byte{0}},
		{"pixelAspectRatio", "float", float1},
		{"screenWindowCenter", "v2f", v2f},
		{"screenWindowWidth", "float", float1},
	}

	headerSize := 0
	for _, a := range attrs {
		headerSize += len(a.name) + 1 + len(a.typ) + 1 + 4 + len(a.value)
		if _, err := w.Write(append([]byte(a.name), 0)); err != nil {
			return err
		}
		if _, err := w.Write(append([]byte(a.typ), 0)); err != nil {
			return err
		}
		if err := binary.Write(w, le, int32(len(a.value))); err != nil {
			return err
		}
		if _, err := w.Write(a.value); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	headerSize++

	// scanline offset table, one uncompressed block per line
	tableStart := 8 + headerSize
	dataStart := tableStart + 8*height
	blockSize := 8 + 3*4*width
	for y := 0; y < height; y++ {
		if err := binary.Write(w, le, uint64(dataStart+y*blockSize)); err != nil {
			return err
		}
	}

	row := make([]byte, 3*4*width)
	for y := 0; y < height; y++ {
		if err := binary.Write(w, le, int32(y)); err != nil {
			return err
		}
		if err := binary.Write(w, le, int32(3*4*width)); err != nil {
			return err
		}
		for x := 0; x < width; x++ {
			p := pixels[y*width+x]
			le.PutUint32(row[x*4:], math.Float32bits(float32(p.Z)))
			le.PutUint32(row[(width+x)*4:], math.Float32bits(float32(p.Y)))
			le.PutUint32(row[(2*width+x)*4:], math.Float32bits(float32(p.X)))
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// ReadEXR reads an image previously written by WriteEXR
func ReadEXR(path string) (int, int, []core.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read exr: %w", err)
	}

	width, height, pixels, err := parseEXR(data)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read exr %s: %w", path, err)
	}
	return width, height, pixels, nil
}

func parseEXR(data []byte) (int, int, []core.Vec3, error) {
	le := binary.LittleEndian

	if len(data) < 8 || int32(le.Uint32(data)) != exrMagic {
		return 0, 0, nil, fmt.Errorf("not an OpenEXR file")
	}
	if le.Uint32(data[4:])&0xff != exrVersion {
		return 0, 0, nil, fmt.Errorf("unsupported version")
	}

	pos := 8
	readString := func() (string, error) {
		start := pos
		for pos < len(data) && data[pos] != 0 {
			pos++
		}
		if pos >= len(data) {
			return "", fmt.Errorf("truncated header")
		}
		s := string(data[start:pos])
		pos++
		return s, nil
	}

	var width, height int
	compressionOK := false
	channelsOK := false

	for {
		name, err := readString()
		if err != nil {
			return 0, 0, nil, err
		}
		if name == "" {
			break
		}
		if _, err := readString(); err != nil {
			return 0, 0, nil, err
		}
		if pos+4 > len(data) {
			return 0, 0, nil, fmt.Errorf("truncated header")
		}
		size := int(int32(le.Uint32(data[pos:])))
		pos += 4
		if pos+size > len(data) {
			return 0, 0, nil, fmt.Errorf("truncated attribute %s", name)
		}
		value := data[pos : pos+size]
		pos += size

		switch name {
		case "dataWindow":
			if size != 16 {
				return 0, 0, nil, fmt.Errorf("bad dataWindow")
			}
			xMin := int(int32(le.Uint32(value[0:])))
			yMin := int(int32(le.Uint32(value[4:])))
			xMax := int(int32(le.Uint32(value[8:])))
			yMax := int(int32(le.Uint32(value[12:])))
			width = xMax - xMin + 1
			height = yMax - yMin + 1
		case "compression":
			compressionOK = size == 1 && value[0] == 0
		case "channels":
			channelsOK = validateChannels(value)
		}
	}

	if width <= 0 || height <= 0 {
		return 0, 0, nil, fmt.Errorf("missing dataWindow")
	}
	if !compressionOK {
		return 0, 0, nil, fmt.Errorf("only uncompressed files are supported")
	}
	if !channelsOK {
		return 0, 0, nil, fmt.Errorf("only FLOAT B,G,R channels are supported")
	}

	// skip the offset table; blocks follow in line order
	pos += 8 * height

	pixels := make([]core.Vec3, width*height)
	rowBytes := 3 * 4 * width
	for y := 0; y < height; y++ {
		if pos+8+rowBytes > len(data) {
			return 0, 0, nil, fmt.Errorf("truncated scanline %d", y)
		}
		line := int(int32(le.Uint32(data[pos:])))
		pos += 8
		if line < 0 || line >= height {
			return 0, 0, nil, fmt.Errorf("scanline %d out of range", line)
		}
		for x := 0; x < width; x++ {
			b := math.Float32frombits(le.Uint32(data[pos+x*4:]))
			g := math.Float32frombits(le.Uint32(data[pos+(width+x)*4:]))
			r := math.Float32frombits(le.Uint32(data[pos+(2*width+x)*4:]))
			pixels[line*width+x] = core.NewVec3(float64(r), float64(g), float64(b))
		}
		pos += rowBytes
	}

	return width, height, pixels, nil
}

// validateChannels checks for exactly B, G, R FLOAT entries
func validateChannels(value []byte) bool {
	expected := []string{"B", "G", "R"}
	pos := 0
	for _, name := range expected {
		end := pos
		for end < len(value) && value[end] != 0 {
			end++
		}
		if end >= len(value) || string(value[pos:end]) != name {
			return false
		}
		pos = end + 1
		if pos+16 > len(value) {
			return false
		}
		if binary.LittleEndian.Uint32(value[pos:]) != pixelTypeFloat {
			return false
		}
		pos += 16
	}
	return pos < len(value) && value[pos] == 0
}
