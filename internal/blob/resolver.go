package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
)

// maximum number of body bytes kept on a TransportError
const maxErrorBody = 4096

// OutputResolver queries the model outputs endpoint of the metadata service.
type OutputResolver struct {
	httpClient *http.Client
	baseURL    string
	project    string
}

func NewOutputResolver(httpClient *http.Client, baseURL, project string) *OutputResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OutputResolver{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		project:    project,
	}
}

type outputsResponse struct {
	Items OutputList `json:"items"`
}

// GetOutputs lists the outputs of a revision. AnyFormat lists every output.
func (r *OutputResolver) GetOutputs(ctx context.Context, modelID, revisionID int64, format data.Format) (OutputList, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/3d/models/%d/revisions/%d/outputs",
		r.baseURL, url.PathEscape(r.project), modelID, revisionID)
	if format != data.AnyFormat && format != "" {
		endpoint += "?" + url.Values{"format": []string{format.String()}}.Encode()
	}

	var response outputsResponse
	if err := GetJSON(ctx, r.httpClient, endpoint, &response); err != nil {
		return nil, err
	}
	glog.V(2).Infof("model %d revision %d has %d outputs", modelID, revisionID, len(response.Items))
	return response.Items, nil
}

// GetModelURL resolves the base URL of the most recent compatible output blob.
func (r *OutputResolver) GetModelURL(ctx context.Context, modelID, revisionID int64, format data.Format, supportedVersions ...int) (string, error) {
	outputs, err := r.GetOutputs(ctx, modelID, revisionID, format)
	if err != nil {
		return "", err
	}
	output, ok := outputs.FindMostRecentOutput(format.String(), supportedVersions...)
	if !ok {
		return "", &IncompatibleModelError{
			ModelID:           modelID,
			RevisionID:        revisionID,
			Format:            format.String(),
			SupportedVersions: supportedVersions,
		}
	}
	return r.BlobURL(output.BlobID), nil
}

func (r *OutputResolver) BlobURL(blobID int64) string {
	return fmt.Sprintf("%s/projects/%s/3d/files/%d", r.baseURL, url.PathEscape(r.project), blobID)
}

// GetJSON fetches endpoint and decodes the body into out. Every failure to obtain a success response
// is reported as a *TransportError.
func GetJSON(ctx context.Context, httpClient *http.Client, endpoint string, out interface{}) error {
	body, err := Get(ctx, httpClient, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decoding response of %s", endpoint)
	}
	return nil
}

// Get fetches endpoint and returns the whole body.
func Get(ctx context.Context, httpClient *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", endpoint)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, NewTransportError(endpoint, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(endpoint, resp.StatusCode, "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, NewTransportError(endpoint, resp.StatusCode, string(body), nil)
	}
	return body, nil
}
