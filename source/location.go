package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/wkalt/i3s/storage"
)

// Config carries what Open needs to reach remote locations.
type Config struct {
	// S3 is the client used for s3:// locations.
	S3 *minio.Client
	// SharedKey is sent as a bearer token to http(s) locations.
	SharedKey string
	// LayerID selects the layer of a SceneServer location.
	LayerID uint64
	// HTTPClient is used for http(s) locations. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// ErrNoS3Client is returned when an s3:// location is opened without a client.
var ErrNoS3Client = errors.New("no S3 client configured")

// Open resolves a location to a backend. Supported forms are a local SLPK path,
// s3://bucket/key for an SLPK in object storage, and an http(s) SceneServer
// base URL.
func Open(ctx context.Context, location string, config Config) (Backend, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		opts := []HTTPOption{WithLayerID(config.LayerID)}
		if config.SharedKey != "" {
			opts = append(opts, WithSharedKey(config.SharedKey))
		}
		if config.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(config.HTTPClient))
		}
		return NewHTTPSource(location, opts...)
	case strings.HasPrefix(location, "s3://"):
		store, key, err := Store(location, config)
		if err != nil {
			return nil, err
		}
		return OpenArchiveFromStore(ctx, store, key)
	default:
		return OpenArchive(location)
	}
}

// Store resolves an archive location to the storage provider holding it and
// the object's ID there. A local path maps to a directory store rooted at the
// file's directory. SceneServer URLs are not archives and are rejected.
func Store(location string, config Config) (storage.Provider, string, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return nil, "", fmt.Errorf("%s is a SceneServer endpoint, not an archive", location)
	case strings.HasPrefix(location, "s3://"):
		if config.S3 == nil {
			return nil, "", ErrNoS3Client
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, "", fmt.Errorf("invalid S3 location %s: expected s3://bucket/key", location)
		}
		return storage.NewS3Store(config.S3, bucket), key, nil
	default:
		return storage.NewDirectoryStore(filepath.Dir(location)), filepath.Base(location), nil
	}
}
