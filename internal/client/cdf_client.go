package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/ecopia-map/pointcloud_streamer/internal/blob"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

// CdfClient reads models from the cloud metadata service. Every request carries the bearer token
// the client was created with.
type CdfClient struct {
	httpClient        *http.Client
	baseURL           string
	project           string
	resolver          *blob.OutputResolver
	supportedVersions []int
}

type CdfClientOption func(*CdfClient)

// WithSupportedVersions restricts output resolution to the given format versions.
func WithSupportedVersions(versions ...int) CdfClientOption {
	return func(c *CdfClient) {
		c.supportedVersions = versions
	}
}

// NewCdfClient builds a client authenticated with a static token. base is the transport used below
// the token layer, nil selects http.DefaultClient.
func NewCdfClient(ctx context.Context, baseURL, project, token string, base *http.Client, opts ...CdfClientOption) *CdfClient {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	baseURL = strings.TrimSuffix(baseURL, "/")
	c := &CdfClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		project:    project,
		resolver:   blob.NewOutputResolver(httpClient, baseURL, project),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolver exposes the output resolver sharing this client's transport.
func (c *CdfClient) Resolver() *blob.OutputResolver {
	return c.resolver
}

func (c *CdfClient) GetModelURL(ctx context.Context, id CdfModelIdentifier) (string, error) {
	return c.resolver.GetModelURL(ctx, id.ModelID, id.RevisionID, id.OutputFormat(), c.supportedVersions...)
}

type revisionResponse struct {
	ID int64 `json:"id"`
	transform.RevisionTransform
	Camera *transform.StoredCamera `json:"camera,omitempty"`
}

func (c *CdfClient) getRevision(ctx context.Context, id CdfModelIdentifier) (*revisionResponse, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/3d/models/%d/revisions/%d",
		c.baseURL, url.PathEscape(c.project), id.ModelID, id.RevisionID)
	var revision revisionResponse
	if err := blob.GetJSON(ctx, c.httpClient, endpoint, &revision); err != nil {
		return nil, err
	}
	return &revision, nil
}

func (c *CdfClient) GetModelMatrix(ctx context.Context, id CdfModelIdentifier) (mgl64.Mat4, error) {
	revision, err := c.getRevision(ctx, id)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	mt, err := transform.NewModelTransformation(revision.RevisionTransform, id.OutputFormat())
	if err != nil {
		return mgl64.Mat4{}, errors.Wrapf(err, "invalid transformation on %s", id)
	}
	return mt.Matrix, nil
}

func (c *CdfClient) GetModelCamera(ctx context.Context, id CdfModelIdentifier) (*transform.CameraConfiguration, error) {
	revision, err := c.getRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	camera, err := revision.Camera.ToConfiguration()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid camera on %s", id)
	}
	if camera == nil {
		glog.V(2).Infof("%s has no stored camera", id)
	}
	return camera, nil
}

func (c *CdfClient) GetJSONFile(ctx context.Context, baseURL, fileName string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := blob.GetJSON(ctx, c.httpClient, joinURL(baseURL, fileName), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *CdfClient) GetBinaryFile(ctx context.Context, baseURL, fileName string) ([]byte, error) {
	return blob.Get(ctx, c.httpClient, joinURL(baseURL, fileName))
}

func joinURL(baseURL, fileName string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(fileName, "/")
}
