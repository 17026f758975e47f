package service

import (
	"log/slog"

	"github.com/minio/minio-go/v7"
)

// Option is a functional option for the layer service.
type Option func(*Options)

// Options contains options for the layer service.
type Options struct {
	ServiceName    string
	Port           int
	LogLevel       slog.Level
	AllowedOrigins []string
	SharedKey      string
	CachePages     int
	Layers         map[uint64]string
	S3             *minio.Client
}

// WithServiceName sets the name reported at the service root.
func WithServiceName(name string) Option {
	return func(opts *Options) {
		opts.ServiceName = name
	}
}

// WithPort sets the port to listen on.
func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level slog.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithAllowedOrigins sets the origins allowed to make cross-origin requests.
func WithAllowedOrigins(origins []string) Option {
	return func(opts *Options) {
		opts.AllowedOrigins = origins
	}
}

// WithSharedKey requires clients to present key as a bearer token.
func WithSharedKey(key string) Option {
	return func(opts *Options) {
		opts.SharedKey = key
	}
}

// WithCachePages sets how many node pages are cached per layer.
func WithCachePages(pages int) Option {
	return func(opts *Options) {
		opts.CachePages = pages
	}
}

// WithLayer serves the layer at location under the given ID. Locations are
// anything source.Open accepts.
func WithLayer(id uint64, location string) Option {
	return func(opts *Options) {
		opts.Layers[id] = location
	}
}

// WithS3Client sets the client used for s3:// layer locations.
func WithS3Client(client *minio.Client) Option {
	return func(opts *Options) {
		opts.S3 = client
	}
}
