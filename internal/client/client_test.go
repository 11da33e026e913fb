package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/blob"
	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

func newCdfServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer secret" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/projects/demo/3d/models/1/revisions/2", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"id":2,"rotation":[0,0,1.5707963267948966],"camera":{"position":[1,0,0],"target":[0,0,0]}}`))
	})
	r.Get("/projects/demo/3d/models/1/revisions/3", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"id":3}`))
	})
	r.Get("/projects/demo/3d/models/1/revisions/2/outputs", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"blobId":7,"format":"ept-pointcloud","version":1}]}`))
	})
	r.Get("/projects/demo/3d/files/7/ept.json", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"points":10}`))
	})
	r.Get("/projects/demo/3d/files/7/ept-data/0-0-0-0.bin", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte{1, 2, 3})
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestCdfClient(t *testing.T) {
	server := newCdfServer(t)
	ctx := context.Background()
	c := NewCdfClient(ctx, server.URL, "demo", "secret", server.Client())
	id := CdfModelIdentifier{ModelID: 1, RevisionID: 2}

	modelURL, err := c.GetModelURL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/projects/demo/3d/files/7", modelURL)

	matrix, err := c.GetModelMatrix(ctx, id)
	require.NoError(t, err)
	rotated := mgl64.TransformCoordinate(mgl64.Vec3{1, 0, 0}, matrix)
	assert.True(t, rotated.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9), "got %v", rotated)

	camera, err := c.GetModelCamera(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, camera)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, camera.Position)

	root, err := c.GetJSONFile(ctx, modelURL, "ept.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":10}`, string(root))

	tile, err := c.GetBinaryFile(ctx, modelURL+"/", "ept-data/0-0-0-0.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, tile)
}

func TestCdfClientRevisionWithoutCamera(t *testing.T) {
	server := newCdfServer(t)
	ctx := context.Background()
	c := NewCdfClient(ctx, server.URL, "demo", "secret", server.Client())

	camera, err := c.GetModelCamera(ctx, CdfModelIdentifier{ModelID: 1, RevisionID: 3})
	require.NoError(t, err)
	assert.Nil(t, camera)

	matrix, err := c.GetModelMatrix(ctx, CdfModelIdentifier{ModelID: 1, RevisionID: 3, Format: data.CadModel})
	require.NoError(t, err)
	assert.Equal(t, transform.DefaultModelTransformation(data.CadModel), matrix)
}

func TestCdfClientBadToken(t *testing.T) {
	server := newCdfServer(t)
	ctx := context.Background()
	c := NewCdfClient(ctx, server.URL, "demo", "wrong", server.Client())

	_, err := c.GetModelURL(ctx, CdfModelIdentifier{ModelID: 1, RevisionID: 2})
	var transport *blob.TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode)
}

func TestLocalClient(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "scan")
	require.NoError(t, os.MkdirAll(filepath.Join(modelDir, "ept-data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ept.json"), []byte(`{"points":3}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ept-data", "0-0-0-0.bin"), []byte{9}, 0o644))

	ctx := context.Background()
	c := NewLocalClient(root)
	id := LocalModelIdentifier{Path: "scan"}

	modelURL, err := c.GetModelURL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, modelDir, modelURL)

	matrix, err := c.GetModelMatrix(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mgl64.Ident4(), matrix)

	camera, err := c.GetModelCamera(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, camera)

	stored, err := json.Marshal(transform.StoredCamera{Position: []float64{0, 0, 10}, Target: []float64{0, 0, 0}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, CameraFileName), stored, 0o644))
	camera, err = c.GetModelCamera(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, camera)
	assert.Equal(t, 10.0, camera.Position.Z())

	root2, err := c.GetJSONFile(ctx, modelURL, "ept.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":3}`, string(root2))

	tile, err := c.GetBinaryFile(ctx, modelURL, "ept-data/0-0-0-0.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, tile)

	_, err = c.GetModelURL(ctx, LocalModelIdentifier{Path: "missing"})
	assert.Error(t, err)
}
