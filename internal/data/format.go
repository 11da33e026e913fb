package data

import "strings"

// Format identifies a stored binary representation of a 3D model revision.
type Format string

const (
	// Entwine point tiles, the octree point-cloud format
	EptPointCloud Format = "ept-pointcloud"

	// Reveal sector format used by triangle-mesh models
	CadModel Format = "reveal-directory"

	// Matches every output, used when listing
	AnyFormat Format = "all-outputs"
)

func (f Format) String() string {
	return string(f)
}

func ParseFormat(value string) Format {
	normalizedValue := strings.Trim(strings.ToLower(value), " ")
	switch normalizedValue {
	case "ept-pointcloud", "ept":
		return EptPointCloud
	case "reveal-directory", "cad":
		return CadModel
	case "all-outputs", "any", "":
		return AnyFormat
	}
	return ""
}
