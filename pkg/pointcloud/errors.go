package pointcloud

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ecopia-map/pointcloud_streamer/internal/blob"
)

type (
	// TransportError is returned when the metadata or blob services fail or cannot be reached.
	TransportError = blob.TransportError
	// IncompatibleModelError is returned when a model has no output the streamer can read.
	IncompatibleModelError = blob.IncompatibleModelError
)

// UnknownClassError is returned for classification codes absent from the loaded data.
type UnknownClassError struct {
	Code int
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("point cloud has no class %d (%s)", e.Code, ClassName(e.Code))
}

// OrphanedIntersectionError is returned when a picked point belongs to none of the given nodes.
type OrphanedIntersectionError struct {
	ObjectID   uuid.UUID
	ObjectName string
}

func (e *OrphanedIntersectionError) Error() string {
	return fmt.Sprintf("intersected object %s (%s) does not belong to any of the given point clouds", e.ObjectName, e.ObjectID)
}

// MembershipError is returned when removing a point cloud from a group it is not part of.
type MembershipError struct {
	NodeID uuid.UUID
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("point cloud %s is not part of the group", e.NodeID)
}
