package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/session"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/log"
)

var (
	logLevel  string
	sharedKey string
	layerID   uint64

	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
	s3UseTLS    bool
	s3Region    string
)

var rootCmd = &cobra.Command{
	Use:   "i3s",
	Short: "Inspect and serve I3S scene layers",
	Long: `i3s reads I3S scene layers from SLPK archives (local or s3://bucket/key)
and SceneServer endpoints, reconstructs their node trees, and serves them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := log.ParseLevel(logLevel)
		checkErr(err)
		slog.SetLogLoggerLevel(level)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func bailf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func checkErr(err error) {
	if err != nil {
		bailf("error: %v", err)
	}
}

func s3Client() (*minio.Client, error) {
	if s3Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(s3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3AccessKey, s3SecretKey, ""),
		Secure: s3UseTLS,
		Region: s3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating S3 client: %w", err)
	}
	return client, nil
}

// openBackend opens a location using the global connection flags.
func openBackend(ctx context.Context, location string) source.Backend {
	client, err := s3Client()
	checkErr(err)
	backend, err := source.Open(ctx, location, source.Config{
		S3:        client,
		SharedKey: sharedKey,
		LayerID:   layerID,
	})
	checkErr(err)
	return backend
}

// openSession opens a location and its descriptor.
func openSession(ctx context.Context, location string, opts ...session.Option) (source.Backend, *session.Session) {
	backend := openBackend(ctx, location)
	s, err := session.Open(ctx, backend, opts...)
	if err != nil {
		_ = backend.Close()
		bailf("failed to open %s: %v", location, err)
	}
	return backend, s
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "warn", "Log level")
	rootCmd.PersistentFlags().StringVarP(&sharedKey, "shared-key", "", "", "Shared key sent to SceneServer endpoints")
	rootCmd.PersistentFlags().Uint64VarP(&layerID, "layer", "", 0, "Layer ID of a SceneServer endpoint")

	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint (for s3:// locations)")
	rootCmd.PersistentFlags().StringVar(&s3AccessKey, "s3-access-key-id", "", "S3 access key ID")
	rootCmd.PersistentFlags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().BoolVar(&s3UseTLS, "s3-tls", false, "Use TLS for S3")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "S3 region")
}
