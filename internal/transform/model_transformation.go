// Package transform builds the model matrices that place a stored model revision in the viewer's
// world space.
package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// cadFromCdfToThreeMatrix swaps the Z-up storage axes of CAD models into the viewer's Y-up space.
var cadFromCdfToThreeMatrix = geometry.ZUpToYUp

// RevisionTransform is the placement stored on a model revision. Missing fields act as identity.
type RevisionTransform struct {
	Rotation    []float64 `json:"rotation,omitempty"`    // XYZ euler angles in radians
	Translation []float64 `json:"translation,omitempty"` // meters
	Scale       []float64 `json:"scale,omitempty"`
}

// ModelTransformation pairs a model matrix with its inverse.
type ModelTransformation struct {
	Matrix  mgl64.Mat4
	Inverse mgl64.Mat4
}

func Identity() ModelTransformation {
	return ModelTransformation{Matrix: mgl64.Ident4(), Inverse: mgl64.Ident4()}
}

// NewModelTransformation computes Default(format) * T * R * S and its inverse.
func NewModelTransformation(revision RevisionTransform, format data.Format) (ModelTransformation, error) {
	matrix, err := revision.Matrix()
	if err != nil {
		return ModelTransformation{}, err
	}
	return FromMatrix(ApplyDefaultModelTransformation(matrix, format))
}

// FromMatrix fails for singular matrices since those cannot map points back into model space.
func FromMatrix(matrix mgl64.Mat4) (ModelTransformation, error) {
	if det := matrix.Det(); det > -1e-12 && det < 1e-12 {
		return ModelTransformation{}, errors.Errorf("model matrix is singular (det=%g)", det)
	}
	return ModelTransformation{Matrix: matrix, Inverse: matrix.Inv()}, nil
}

// ApplyDefaultModelTransformation premultiplies the axis correction of the given format.
// Point clouds are already stored in the viewer space, so their correction is the identity.
func ApplyDefaultModelTransformation(matrix mgl64.Mat4, format data.Format) mgl64.Mat4 {
	switch format {
	case data.CadModel:
		return cadFromCdfToThreeMatrix.Mul4(matrix)
	default:
		return matrix
	}
}

// DefaultModelTransformation is the axis correction alone.
func DefaultModelTransformation(format data.Format) mgl64.Mat4 {
	return ApplyDefaultModelTransformation(mgl64.Ident4(), format)
}

func (r RevisionTransform) Matrix() (mgl64.Mat4, error) {
	rotation, err := vec3OrDefault("rotation", r.Rotation, 0)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	translation, err := vec3OrDefault("translation", r.Translation, 0)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	scale, err := vec3OrDefault("scale", r.Scale, 1)
	if err != nil {
		return mgl64.Mat4{}, err
	}

	rotationMatrix := mgl64.HomogRotate3DX(rotation[0]).
		Mul4(mgl64.HomogRotate3DY(rotation[1])).
		Mul4(mgl64.HomogRotate3DZ(rotation[2]))

	return mgl64.Translate3D(translation[0], translation[1], translation[2]).
		Mul4(rotationMatrix).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2])), nil
}

func vec3OrDefault(name string, values []float64, fallback float64) (mgl64.Vec3, error) {
	switch len(values) {
	case 0:
		return mgl64.Vec3{fallback, fallback, fallback}, nil
	case 3:
		return mgl64.Vec3{values[0], values[1], values[2]}, nil
	}
	return mgl64.Vec3{}, errors.Errorf("%s must have 3 components, got %d", name, len(values))
}

// TransformPoint maps a model-space point into world space.
func (t ModelTransformation) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, t.Matrix)
}

func (t ModelTransformation) TransformBox(b geometry.Box3) geometry.Box3 {
	return b.ApplyMatrix4(t.Matrix)
}
