package data

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Column layouts of text point files, keyed by the number of values on a line:
//
//	3: x y z
//	4: x y z intensity
//	5: x y z intensity classification
//	6: x y z r g b
//	7: x y z r g b intensity
//	8: x y z r g b intensity classification
//
// Values may be separated by commas, semicolons or whitespace. Empty lines, lines starting with # and
// a non numeric first line (a header) are skipped.
func ReadText(r io.Reader) (Points, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		points Points
		colors []float64
		wide   bool
	)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		values, err := parseFloats(fields)
		if err != nil {
			if len(points) == 0 && lineNumber == 1 {
				continue
			}
			return nil, errors.Wrapf(err, "line %d", lineNumber)
		}

		var p Point
		p.X, p.Y, p.Z = values[0], values[1], values[2]
		rgb := []float64{0, 0, 0}
		switch len(values) {
		case 3:
		case 4:
			p.Intensity = uint16(clampTo(values[3], math.MaxUint16))
		case 5:
			p.Intensity = uint16(clampTo(values[3], math.MaxUint16))
			p.Classification = uint8(clampTo(values[4], math.MaxUint8))
		case 6, 7, 8:
			rgb = values[3:6]
			if len(values) >= 7 {
				p.Intensity = uint16(clampTo(values[6], math.MaxUint16))
			}
			if len(values) == 8 {
				p.Classification = uint8(clampTo(values[7], math.MaxUint8))
			}
		default:
			return nil, errors.Errorf("line %d has %d values, expected between 3 and 8", lineNumber, len(values))
		}
		for _, c := range rgb {
			if c > 255 {
				wide = true
			}
		}
		colors = append(colors, rgb...)
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading points")
	}

	// 16 bit colors are reduced to 8 bits when any value does not fit a byte
	divisor := 1.0
	if wide {
		divisor = 256
	}
	for i := range points {
		points[i].R = uint8(clampTo(colors[3*i]/divisor, 255))
		points[i].G = uint8(clampTo(colors[3*i+1]/divisor, 255))
		points[i].B = uint8(clampTo(colors[3*i+2]/divisor, 255))
	}
	return points, nil
}

func parseFloats(fields []string) ([]float64, error) {
	if len(fields) < 3 {
		return nil, errors.Errorf("expected at least 3 values, got %d", len(fields))
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Errorf("invalid number %q", f)
		}
		values[i] = v
	}
	return values, nil
}

func clampTo(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return math.Round(v)
}
