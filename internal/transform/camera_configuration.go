package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// CameraConfiguration is a suggested initial camera stored with a model revision.
type CameraConfiguration struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
}

// StoredCamera is the wire shape of a camera configuration.
type StoredCamera struct {
	Position []float64 `json:"position"`
	Target   []float64 `json:"target"`
}

// ToConfiguration returns nil when the stored camera is incomplete, which is how revisions without a
// camera are represented.
func (s *StoredCamera) ToConfiguration() (*CameraConfiguration, error) {
	if s == nil || (len(s.Position) == 0 && len(s.Target) == 0) {
		return nil, nil
	}
	if len(s.Position) != 3 || len(s.Target) != 3 {
		return nil, errors.Errorf("camera position and target must have 3 components, got %d and %d",
			len(s.Position), len(s.Target))
	}
	return &CameraConfiguration{
		Position: mgl64.Vec3{s.Position[0], s.Position[1], s.Position[2]},
		Target:   mgl64.Vec3{s.Target[0], s.Target[1], s.Target[2]},
	}, nil
}

// TransformCameraConfiguration moves a stored camera into the same space as the model matrix.
func TransformCameraConfiguration(camera *CameraConfiguration, matrix mgl64.Mat4) *CameraConfiguration {
	if camera == nil {
		return nil
	}
	return &CameraConfiguration{
		Position: mgl64.TransformCoordinate(camera.Position, matrix),
		Target:   mgl64.TransformCoordinate(camera.Target, matrix),
	}
}
