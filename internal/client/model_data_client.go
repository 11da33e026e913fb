// Package client provides the data sources a model can be streamed from.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

// ModelIdentifier is the caller-chosen key of a model. Any comparable type carrying the output format
// it should be streamed as can be used.
type ModelIdentifier interface {
	comparable
	OutputFormat() data.Format
	String() string
}

// ModelDataClient fetches everything needed to stream a model. File names are relative to the base
// URL returned by GetModelURL.
type ModelDataClient[T ModelIdentifier] interface {
	GetModelURL(ctx context.Context, id T) (string, error)

	// GetModelMatrix returns the model matrix with the default axis correction of the format applied.
	GetModelMatrix(ctx context.Context, id T) (mgl64.Mat4, error)

	// GetModelCamera returns nil without error when no camera is stored for the model.
	GetModelCamera(ctx context.Context, id T) (*transform.CameraConfiguration, error)

	GetJSONFile(ctx context.Context, baseURL, fileName string) (json.RawMessage, error)
	GetBinaryFile(ctx context.Context, baseURL, fileName string) ([]byte, error)
}

// CdfModelIdentifier addresses a model revision stored in the cloud metadata service.
type CdfModelIdentifier struct {
	ModelID    int64
	RevisionID int64
	Format     data.Format
}

func (id CdfModelIdentifier) OutputFormat() data.Format {
	if id.Format == "" {
		return data.EptPointCloud
	}
	return id.Format
}

func (id CdfModelIdentifier) String() string {
	return fmt.Sprintf("model %d revision %d (%s)", id.ModelID, id.RevisionID, id.OutputFormat())
}

// LocalModelIdentifier addresses a model directory relative to the root of a LocalClient.
type LocalModelIdentifier struct {
	Path   string
	Format data.Format
}

func (id LocalModelIdentifier) OutputFormat() data.Format {
	if id.Format == "" {
		return data.EptPointCloud
	}
	return id.Format
}

func (id LocalModelIdentifier) String() string {
	return fmt.Sprintf("local model %s (%s)", id.Path, id.OutputFormat())
}
