package octree

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

// Native enum values as the shader understands them. Callers outside the octree translate their own
// enums to these.
type PointColorType int

const (
	PointColorRGB            PointColorType = 0
	PointColorDepth          PointColorType = 2
	PointColorHeight         PointColorType = 3
	PointColorIntensity      PointColorType = 4
	PointColorLOD            PointColorType = 6
	PointColorPointIndex     PointColorType = 7
	PointColorClassification PointColorType = 8
)

type PointShape int

const (
	PointShapeSquare     PointShape = 0
	PointShapeCircle     PointShape = 1
	PointShapeParaboloid PointShape = 2
)

type PointSizeType int

const (
	PointSizeFixed      PointSizeType = 0
	PointSizeAttenuated PointSizeType = 1
	PointSizeAdaptive   PointSizeType = 2
)

// DefaultClassColor applies to codes missing from the classification table.
var DefaultClassColor = mgl64.Vec4{0.3, 0.6, 0.6, 0.5}

// ASPRS colors, the 4th component is the visibility weight.
var defaultClassification = map[int]mgl64.Vec4{
	0:  {0.5, 0.5, 0.5, 1},
	1:  {0.5, 0.5, 0.5, 1},
	2:  {0.63, 0.32, 0.18, 1},
	3:  {0, 1, 0, 1},
	4:  {0, 0.8, 0, 1},
	5:  {0, 0.6, 0, 1},
	6:  {1, 0.66, 0, 1},
	7:  {1, 0, 1, 1},
	8:  {1, 0, 0, 1},
	9:  {0, 0, 1, 1},
	12: {1, 1, 0, 1},
}

// classificationTextureSize is the number of codes addressable by the lookup texture.
const classificationTextureSize = 256

// Material holds the render settings of one octree. Only classes seen in the loaded tiles are listed
// in the classification table.
type Material struct {
	size      float64
	sizeType  PointSizeType
	shape     PointShape
	colorType PointColorType

	classification map[int]mgl64.Vec4
	// RGBA lookup indexed by classification code
	classificationTexture []uint8
	version               int

	sync.RWMutex
}

func NewMaterial() *Material {
	m := &Material{
		size:           1,
		sizeType:       PointSizeAdaptive,
		shape:          PointShapeSquare,
		colorType:      PointColorRGB,
		classification: make(map[int]mgl64.Vec4),
	}
	m.recomputeClassificationTexture()
	return m
}

func (m *Material) Size() float64 {
	m.RLock()
	defer m.RUnlock()
	return m.size
}

func (m *Material) SetSize(size float64) {
	m.Lock()
	defer m.Unlock()
	m.size = size
}

func (m *Material) SizeType() PointSizeType {
	m.RLock()
	defer m.RUnlock()
	return m.sizeType
}

func (m *Material) SetSizeType(t PointSizeType) {
	m.Lock()
	defer m.Unlock()
	m.sizeType = t
}

func (m *Material) Shape() PointShape {
	m.RLock()
	defer m.RUnlock()
	return m.shape
}

func (m *Material) SetShape(s PointShape) {
	m.Lock()
	defer m.Unlock()
	m.shape = s
}

func (m *Material) ColorType() PointColorType {
	m.RLock()
	defer m.RUnlock()
	return m.colorType
}

func (m *Material) SetColorType(t PointColorType) {
	m.Lock()
	defer m.Unlock()
	m.colorType = t
}

// AddClasses registers codes found in a tile. Known codes keep their current color and weight.
func (m *Material) AddClasses(codes map[int]struct{}) {
	m.Lock()
	defer m.Unlock()

	added := false
	for code := range codes {
		if _, ok := m.classification[code]; ok {
			continue
		}
		color, ok := defaultClassification[code]
		if !ok {
			color = mgl64.Vec4{DefaultClassColor[0], DefaultClassColor[1], DefaultClassColor[2], 1}
		}
		m.classification[code] = color
		added = true
	}
	if added {
		m.recomputeClassificationTexture()
	}
}

// Classification returns a copy of the classification table.
func (m *Material) Classification() map[int]mgl64.Vec4 {
	m.RLock()
	defer m.RUnlock()
	return lo.Assign(m.classification)
}

// Classes lists the codes of the classification table in ascending order.
func (m *Material) Classes() []int {
	m.RLock()
	defer m.RUnlock()
	codes := lo.Keys(m.classification)
	sort.Ints(codes)
	return codes
}

func (m *Material) ClassColor(code int) (mgl64.Vec4, bool) {
	m.RLock()
	defer m.RUnlock()
	color, ok := m.classification[code]
	return color, ok
}

// SetClassWeight sets the visibility weight of a known code and rebuilds the lookup texture.
func (m *Material) SetClassWeight(code int, weight float64) bool {
	m.Lock()
	defer m.Unlock()
	color, ok := m.classification[code]
	if !ok {
		return false
	}
	color[3] = weight
	m.classification[code] = color
	m.recomputeClassificationTexture()
	return true
}

// ClassVisible reports whether points of the code are drawn. Unknown codes use the default weight.
func (m *Material) ClassVisible(code int) bool {
	m.RLock()
	defer m.RUnlock()
	if code < 0 || code >= classificationTextureSize {
		return DefaultClassColor[3] > 0
	}
	return m.classificationTexture[4*code+3] > 0
}

// ClassificationTexture returns a copy of the RGBA lookup and its version, which changes on every
// rebuild.
func (m *Material) ClassificationTexture() ([]uint8, int) {
	m.RLock()
	defer m.RUnlock()
	return append([]uint8(nil), m.classificationTexture...), m.version
}

func (m *Material) recomputeClassificationTexture() {
	texture := make([]uint8, 4*classificationTextureSize)
	for code := 0; code < classificationTextureSize; code++ {
		color, ok := m.classification[code]
		if !ok {
			color = DefaultClassColor
		}
		for i := 0; i < 4; i++ {
			texture[4*code+i] = uint8(lo.Clamp(color[i], 0, 1) * 255)
		}
	}
	m.classificationTexture = texture
	m.version++
}
