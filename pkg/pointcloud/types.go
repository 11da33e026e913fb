package pointcloud

import (
	"strconv"
	"strings"

	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
)

type PointSizeType string
type PointColorType string
type PointShape string

const (
	// Point size grows with the level of detail of the node it belongs to
	PointSizeAdaptive PointSizeType = "ADAPTIVE"
	// Point size is the same for every point, in pixels
	PointSizeFixed PointSizeType = "FIXED"
)

const (
	PointColorRgb            PointColorType = "RGB"
	PointColorDepth          PointColorType = "DEPTH"
	PointColorHeight         PointColorType = "HEIGHT"
	PointColorPointIndex     PointColorType = "POINT_INDEX"
	PointColorLevelOfDetail  PointColorType = "LOD"
	PointColorClassification PointColorType = "CLASSIFICATION"
	PointColorIntensity      PointColorType = "INTENSITY"
)

const (
	PointShapeCircle PointShape = "CIRCLE"
	PointShapeSquare PointShape = "SQUARE"
)

var (
	pointSizeTypes = map[PointSizeType]octree.PointSizeType{
		PointSizeAdaptive: octree.PointSizeAdaptive,
		PointSizeFixed:    octree.PointSizeFixed,
	}
	pointColorTypes = map[PointColorType]octree.PointColorType{
		PointColorRgb:            octree.PointColorRGB,
		PointColorDepth:          octree.PointColorDepth,
		PointColorHeight:         octree.PointColorHeight,
		PointColorPointIndex:     octree.PointColorPointIndex,
		PointColorLevelOfDetail:  octree.PointColorLOD,
		PointColorClassification: octree.PointColorClassification,
		PointColorIntensity:      octree.PointColorIntensity,
	}
	pointShapes = map[PointShape]octree.PointShape{
		PointShapeCircle: octree.PointShapeCircle,
		PointShapeSquare: octree.PointShapeSquare,
	}
)

func (t PointSizeType) String() string {
	return string(t)
}

func (t PointColorType) String() string {
	return string(t)
}

func (s PointShape) String() string {
	return string(s)
}

func normalize(value string) string {
	return strings.Trim(strings.ToUpper(value), " ")
}

// ParsePointSizeType returns an empty value for unknown names.
func ParsePointSizeType(value string) PointSizeType {
	t := PointSizeType(normalize(value))
	if _, ok := pointSizeTypes[t]; ok {
		return t
	}
	return ""
}

func ParsePointColorType(value string) PointColorType {
	t := PointColorType(normalize(value))
	if _, ok := pointColorTypes[t]; ok {
		return t
	}
	return ""
}

func ParsePointShape(value string) PointShape {
	s := PointShape(normalize(value))
	if _, ok := pointShapes[s]; ok {
		return s
	}
	return ""
}

// WellKnownAsprsPointClassCodes are the ASPRS LAS 1.4 standard classification codes.
type WellKnownAsprsPointClassCodes int

const (
	Created WellKnownAsprsPointClassCodes = iota
	Unclassified
	Ground
	LowVegetation
	MedVegetation
	HighVegetation
	Building
	LowPoint
	ReservedOrHighPoint
	Water
	Rail
	RoadSurface
	ReservedOrBridgeDeck
	WireGuard
	WireConductor
	TransmissionTower
	WireStructureConnector
	BridgeDeck
	HighNoise

	// First code available for user definable classes
	UserDefinableOffset WellKnownAsprsPointClassCodes = 64
)

var asprsClassNames = []string{
	"Created", "Unclassified", "Ground", "LowVegetation", "MedVegetation", "HighVegetation", "Building",
	"LowPoint", "ReservedOrHighPoint", "Water", "Rail", "RoadSurface", "ReservedOrBridgeDeck", "WireGuard",
	"WireConductor", "TransmissionTower", "WireStructureConnector", "BridgeDeck", "HighNoise",
}

// ClassName names a classification code, falling back to UserDefinedN and ReservedN.
func ClassName(code int) string {
	switch {
	case code >= 0 && code < len(asprsClassNames):
		return asprsClassNames[code]
	case code >= int(UserDefinableOffset):
		return "UserDefined" + strconv.Itoa(code-int(UserDefinableOffset))
	default:
		return "Reserved" + strconv.Itoa(code)
	}
}
