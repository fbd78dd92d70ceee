package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"

	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/models"
)

// Paths names the endpoints a Client calls, relative to its base URL.
type Paths struct {
	Describe string
	RunAgent string
	Samples  string
}

// ProxyPaths targets this server's proxy routes.
var ProxyPaths = Paths{
	Describe: "/api/image-descriptor",
	RunAgent: "/api/run-agent",
	Samples:  "/api/getSampleImages",
}

// BackendPaths targets the vision/agent backend.
var BackendPaths = Paths{
	Describe: "/imageDescriptor",
	RunAgent: "/runAgent",
}

// Client implements claim.Gateway, claim.SampleFetcher and
// claim.SampleLister over HTTP.
type Client struct {
	baseURL string
	paths   Paths
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses NewHTTPClient.
func New(baseURL string, paths Paths, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   paths,
		http:    httpClient,
	}
}

// Describe posts img as multipart and returns the streamed description.
// The caller must close the returned body.
func (c *Client) Describe(ctx context.Context, img claim.Image) (io.ReadCloser, error) {
	body, contentType, err := img.FormData()
	if err != nil {
		return nil, claim.Wrap(claim.KindValidation, "describe", "failed to build upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.paths.Describe, body)
	if err != nil {
		return nil, fmt.Errorf("building describe request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, claim.StatusError("describe", resp.StatusCode, readErrorDetails(resp.Body))
	}
	return resp.Body, nil
}

// RunAgent triggers the agent workflow and decodes its claim document.
func (c *Client) RunAgent(ctx context.Context) (*models.AgentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.paths.RunAgent, nil)
	if err != nil {
		return nil, fmt.Errorf("building agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, claim.StatusError("run_agent", resp.StatusCode, readErrorDetails(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, claim.Wrap(claim.KindTransport, "run_agent", "failed to read agent response", err)
	}
	var result models.AgentResult
	if err := sonic.Unmarshal(data, &result); err != nil {
		return nil, claim.Wrap(claim.KindDecode, "run_agent", "invalid agent response", err)
	}
	return &result, nil
}

// ListSamples returns the sample image names.
func (c *Client) ListSamples(ctx context.Context) ([]string, error) {
	if c.paths.Samples == "" {
		return nil, claim.NewError(claim.KindValidation, "samples.list", "sample listing is not available")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.paths.Samples, nil)
	if err != nil {
		return nil, fmt.Errorf("building samples request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, claim.StatusError("samples.list", resp.StatusCode, readErrorDetails(resp.Body))
	}

	var payload models.SampleImages
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, claim.Wrap(claim.KindDecode, "samples.list", "invalid sample list", err)
	}
	return payload.Images, nil
}

// FetchSample downloads a sample image. ref may be a path on the base URL
// or an absolute URL.
func (c *Client) FetchSample(ctx context.Context, ref string) (claim.Image, error) {
	url := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(ref, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return claim.Image{}, fmt.Errorf("building sample request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return claim.Image{}, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return claim.Image{}, claim.StatusError("samples.fetch", resp.StatusCode, readErrorDetails(resp.Body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return claim.Image{}, claim.Wrap(claim.KindTransport, "samples.fetch", "failed to read sample image", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	return claim.Image{
		Name:        claim.SampleFileName,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Details any    `json:"details"`
	Detail  any    `json:"detail"`
}

// readErrorDetails extracts the most specific message from an error body:
// the proxy's "details", the backend's "detail", or the raw text.
func readErrorDetails(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return "Unknown error"
	}
	var env errorEnvelope
	if err := sonic.Unmarshal(data, &env); err == nil {
		if s, ok := env.Details.(string); ok && s != "" {
			return s
		}
		if s, ok := env.Detail.(string); ok && s != "" {
			return s
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return strings.TrimSpace(string(data))
}
