package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/util/httputil"
	"github.com/wkalt/i3s/util/log"
)

/*
The HTTP backend reads a layer from an I3S SceneServer. The descriptor lives at
{base}/layers/{id} and node pages at {base}/layers/{id}/nodepages/{n}. Every
request carries the caller's context; concurrent fetches are independent.
*/

////////////////////////////////////////////////////////////////////////////////

// HTTPSource reads a layer from a SceneServer endpoint.
type HTTPSource struct {
	base      string
	layerID   uint64
	client    *http.Client
	sharedKey string
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithLayerID selects the layer to read. The default is 0.
func WithLayerID(id uint64) HTTPOption {
	return func(s *HTTPSource) {
		s.layerID = id
	}
}

// WithHTTPClient sets the client used for requests. Timeouts configured on the
// client apply to every fetch.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithSharedKey sends the key as a bearer token on every request.
func WithSharedKey(key string) HTTPOption {
	return func(s *HTTPSource) {
		s.sharedKey = key
	}
}

// NewHTTPSource constructs a source for the SceneServer at base.
func NewHTTPSource(base string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %s: unsupported scheme %q", base, u.Scheme)
	}
	s := &HTTPSource{
		base:   base,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DescriptorURL returns the URL of the layer descriptor.
func (s *HTTPSource) DescriptorURL() string {
	u, _ := url.JoinPath(s.base, "layers", strconv.FormatUint(s.layerID, 10))
	return u
}

// NodePageURL returns the URL of a node page.
func (s *HTTPSource) NodePageURL(page uint64) string {
	u, _ := url.JoinPath(s.DescriptorURL(), "nodepages", strconv.FormatUint(page, 10))
	return u
}

func (s *HTTPSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.sharedKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.sharedKey)
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, TransportError{URL: target, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError{URL: target, Err: err}
	}
	log.Debugw(ctx, "fetched resource",
		"url", target, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError{URL: target, Code: resp.StatusCode, Detail: errorDetail(body)}
	}
	return body, nil
}

// errorDetail extracts a message from an error body in the format the REST
// server in this module writes.
func errorDetail(body []byte) string {
	var response httputil.ErrorResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ""
	}
	if response.Detail != "" {
		return response.Error + ": " + response.Detail
	}
	return response.Error
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// RawDescriptor fetches the descriptor document.
func (s *HTTPSource) RawDescriptor(ctx context.Context) ([]byte, error) {
	return s.get(ctx, s.DescriptorURL())
}

// RawNodePage fetches a node page document.
func (s *HTTPSource) RawNodePage(ctx context.Context, page uint64) ([]byte, error) {
	return s.get(ctx, s.NodePageURL(page))
}

// Descriptor fetches and parses the descriptor.
func (s *HTTPSource) Descriptor(ctx context.Context) (*layer.Descriptor, error) {
	data, err := s.RawDescriptor(ctx)
	if err != nil {
		return nil, err
	}
	return parseDescriptor(data, s.DescriptorURL())
}

// NodePage fetches and parses a node page.
func (s *HTTPSource) NodePage(ctx context.Context, page uint64) (*layer.NodePage, error) {
	data, err := s.RawNodePage(ctx, page)
	if err != nil {
		return nil, err
	}
	return parseNodePage(data, s.NodePageURL(page))
}

// Close is a no-op; the HTTP client is not owned by the source.
func (s *HTTPSource) Close() error {
	return nil
}

func (s *HTTPSource) String() string {
	return fmt.Sprintf("http(%s)", s.DescriptorURL())
}
