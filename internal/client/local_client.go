package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

// CameraFileName is the optional camera stored next to the root file of a local model.
const CameraFileName = "camera.json"

// LocalClient reads models from a directory tree. Models are placed at the origin without any
// stored transformation.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) *LocalClient {
	return &LocalClient{root: root}
}

func (c *LocalClient) GetModelURL(ctx context.Context, id LocalModelIdentifier) (string, error) {
	dir := filepath.Join(c.root, id.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.Wrapf(err, "model directory of %s", id)
	}
	if !info.IsDir() {
		return "", errors.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}

func (c *LocalClient) GetModelMatrix(ctx context.Context, id LocalModelIdentifier) (mgl64.Mat4, error) {
	return transform.DefaultModelTransformation(id.OutputFormat()), nil
}

func (c *LocalClient) GetModelCamera(ctx context.Context, id LocalModelIdentifier) (*transform.CameraConfiguration, error) {
	content, err := os.ReadFile(filepath.Join(c.root, id.Path, CameraFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading camera of %s", id)
	}

	var stored transform.StoredCamera
	if err := json.Unmarshal(content, &stored); err != nil {
		return nil, errors.Wrapf(err, "decoding camera of %s", id)
	}
	return stored.ToConfiguration()
}

func (c *LocalClient) GetJSONFile(ctx context.Context, baseURL, fileName string) (json.RawMessage, error) {
	content, err := c.GetBinaryFile(ctx, baseURL, fileName)
	if err != nil {
		return nil, err
	}
	if !json.Valid(content) {
		return nil, errors.Errorf("%s is not valid json", filepath.Join(baseURL, fileName))
	}
	return content, nil
}

func (c *LocalClient) GetBinaryFile(ctx context.Context, baseURL, fileName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(baseURL, filepath.FromSlash(fileName)))
	if err != nil {
		return nil, errors.Wrap(err, "reading model file")
	}
	return content, nil
}
