package service

import (
	"errors"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wkalt/i3s/util/log"
	"gopkg.in/yaml.v3"
)

/*
A manifest is a YAML file describing what the service serves:

	serviceName: city
	port: 8089
	allowedOrigins: ["*"]
	sharedKey: sesame
	cachePages: 256
	s3:
	  endpoint: localhost:9000
	  accessKeyID: minioadmin
	  secretAccessKey: minioadmin
	layers:
	  - id: 0
	    location: ./city.slpk
	  - id: 1
	    location: s3://layers/terrain.slpk

Fields left out keep the service defaults. Options given alongside a manifest
are applied after it and override it.
*/

////////////////////////////////////////////////////////////////////////////////

// Manifest is the YAML service configuration.
type Manifest struct {
	ServiceName    string          `yaml:"serviceName"`
	Port           int             `yaml:"port"`
	LogLevel       string          `yaml:"logLevel"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	SharedKey      string          `yaml:"sharedKey"`
	CachePages     int             `yaml:"cachePages"`
	S3             *S3Config       `yaml:"s3"`
	Layers         []ManifestLayer `yaml:"layers"`
}

// S3Config holds the connection settings for s3:// locations.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Secure          bool   `yaml:"secure"`
}

// ManifestLayer is one served layer.
type ManifestLayer struct {
	ID       uint64 `yaml:"id"`
	Location string `yaml:"location"`
}

// ErrDuplicateLayer is returned when a manifest lists a layer ID twice.
var ErrDuplicateLayer = errors.New("duplicate layer ID")

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	seen := map[uint64]bool{}
	for _, l := range m.Layers {
		if seen[l.ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateLayer, l.ID)
		}
		if l.Location == "" {
			return nil, fmt.Errorf("layer %d has no location", l.ID)
		}
		seen[l.ID] = true
	}
	return m, nil
}

// Options converts the manifest into service options.
func (m *Manifest) Options() ([]Option, error) {
	var opts []Option
	if m.ServiceName != "" {
		opts = append(opts, WithServiceName(m.ServiceName))
	}
	if m.Port != 0 {
		opts = append(opts, WithPort(m.Port))
	}
	if m.LogLevel != "" {
		level, err := log.ParseLevel(m.LogLevel)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		opts = append(opts, WithLogLevel(level))
	}
	if m.AllowedOrigins != nil {
		opts = append(opts, WithAllowedOrigins(m.AllowedOrigins))
	}
	if m.SharedKey != "" {
		opts = append(opts, WithSharedKey(m.SharedKey))
	}
	if m.CachePages != 0 {
		opts = append(opts, WithCachePages(m.CachePages))
	}
	if m.S3 != nil {
		client, err := minio.New(m.S3.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(m.S3.AccessKeyID, m.S3.SecretAccessKey, ""),
			Secure: m.S3.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		opts = append(opts, WithS3Client(client))
	}
	for _, l := range m.Layers {
		opts = append(opts, WithLayer(l.ID, l.Location))
	}
	return opts, nil
}
