package ept

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
)

type field struct {
	Dimension
	offset int
	scale  float64
	shift  float64
}

// layout locates every dimension inside one packed point.
type layout struct {
	fields    map[string]field
	pointSize int
}

func newLayout(m *Metadata) layout {
	l := layout{fields: make(map[string]field, len(m.Schema))}
	for _, d := range m.Schema {
		f := field{Dimension: d, offset: l.pointSize, scale: 1}
		if d.Scale != nil {
			f.scale, _ = d.Scale.Float64()
		}
		if d.Offset != nil {
			f.shift, _ = d.Offset.Float64()
		}
		l.fields[d.Name] = f
		l.pointSize += d.Size
	}
	return l
}

func (f field) read(point []byte) float64 {
	b := point[f.offset : f.offset+f.Size]
	var raw float64
	switch f.Type {
	case "signed":
		switch f.Size {
		case 1:
			raw = float64(int8(b[0]))
		case 2:
			raw = float64(int16(binary.LittleEndian.Uint16(b)))
		case 4:
			raw = float64(int32(binary.LittleEndian.Uint32(b)))
		case 8:
			raw = float64(int64(binary.LittleEndian.Uint64(b)))
		}
	case "unsigned":
		switch f.Size {
		case 1:
			raw = float64(b[0])
		case 2:
			raw = float64(binary.LittleEndian.Uint16(b))
		case 4:
			raw = float64(binary.LittleEndian.Uint32(b))
		case 8:
			raw = float64(binary.LittleEndian.Uint64(b))
		}
	case "float":
		if f.Size == 4 {
			raw = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		} else {
			raw = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return raw*f.scale + f.shift
}

func (f field) write(point []byte, value float64) {
	raw := (value - f.shift) / f.scale
	b := point[f.offset : f.offset+f.Size]
	switch f.Type {
	case "signed", "unsigned":
		v := int64(math.Round(raw))
		switch f.Size {
		case 1:
			b[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(b, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(b, uint64(v))
		}
	case "float":
		if f.Size == 4 {
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(raw)))
		} else {
			binary.LittleEndian.PutUint64(b, math.Float64bits(raw))
		}
	}
}

// DecodeBinary decodes a binary tile. Coordinates are returned in the dataset's native space.
// 16 bit colors are reduced to 8 bits.
func DecodeBinary(content []byte, m *Metadata) (data.Points, error) {
	l := newLayout(m)
	if l.pointSize == 0 {
		return nil, errors.New("ept schema is empty")
	}
	if len(content)%l.pointSize != 0 {
		return nil, errors.Errorf("tile of %d bytes is not a multiple of the %d byte point size", len(content), l.pointSize)
	}

	x, y, z := l.fields["X"], l.fields["Y"], l.fields["Z"]
	red, hasRed := l.fields["Red"]
	green, hasGreen := l.fields["Green"]
	blue, hasBlue := l.fields["Blue"]
	intensity, hasIntensity := l.fields["Intensity"]
	classification, hasClassification := l.fields["Classification"]
	hasColor := hasRed && hasGreen && hasBlue

	count := len(content) / l.pointSize
	points := make(data.Points, count)
	colors := make([]float64, 0, 3*count)
	for i := 0; i < count; i++ {
		raw := content[i*l.pointSize : (i+1)*l.pointSize]
		p := &points[i]
		p.X, p.Y, p.Z = x.read(raw), y.read(raw), z.read(raw)
		if hasColor {
			colors = append(colors, red.read(raw), green.read(raw), blue.read(raw))
		}
		if hasIntensity {
			p.Intensity = uint16(clamp(intensity.read(raw), math.MaxUint16))
		}
		if hasClassification {
			p.Classification = uint8(clamp(classification.read(raw), math.MaxUint8))
		}
	}

	if hasColor {
		divisor := 1.0
		for _, c := range colors {
			if c > 255 {
				divisor = 256
				break
			}
		}
		for i := range points {
			points[i].R = uint8(clamp(colors[3*i]/divisor, 255))
			points[i].G = uint8(clamp(colors[3*i+1]/divisor, 255))
			points[i].B = uint8(clamp(colors[3*i+2]/divisor, 255))
		}
	}
	return points, nil
}

// EncodeBinary packs points with the layout of m. Colors are written as stored in the points.
func EncodeBinary(points data.Points, m *Metadata) []byte {
	l := newLayout(m)
	out := make([]byte, len(points)*l.pointSize)
	for i, p := range points {
		raw := out[i*l.pointSize : (i+1)*l.pointSize]
		values := map[string]float64{
			"X": p.X, "Y": p.Y, "Z": p.Z,
			"Red": float64(p.R), "Green": float64(p.G), "Blue": float64(p.B),
			"Intensity": float64(p.Intensity), "Classification": float64(p.Classification),
		}
		for name, f := range l.fields {
			if v, ok := values[name]; ok {
				f.write(raw, v)
			}
		}
	}
	return out
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
