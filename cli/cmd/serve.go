package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/service"
	"github.com/wkalt/i3s/util/log"
)

var (
	serveConfig         string
	servePort           int
	serveLayers         []string
	serveAllowedOrigins []string
	serveServiceName    string
	serveSharedKey      string
	serveCachePages     int
)

// parseLayerFlag parses id=location.
func parseLayerFlag(s string) (uint64, string, error) {
	rawID, location, ok := strings.Cut(s, "=")
	id, err := strconv.ParseUint(rawID, 10, 64)
	if !ok || location == "" || err != nil {
		return 0, "", fmt.Errorf("invalid layer %q: expected id=location", s)
	}
	return id, location, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scene layers over HTTP",
	Long: `Serve SLPK archives and proxied SceneServer layers with the SceneServer
REST layout:

  GET /                                   service and layer list
  GET /layers/{layer}                     layer descriptor
  GET /layers/{layer}/nodepages/{page}    node page

Layers come from a YAML manifest (--config), from --layer flags, or both.
Flags override the manifest.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var opts []service.Option
		if serveConfig != "" {
			manifest, err := service.LoadManifest(serveConfig)
			checkErr(err)
			manifestOpts, err := manifest.Options()
			checkErr(err)
			opts = append(opts, manifestOpts...)
		}
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			level, err := log.ParseLevel(logLevel)
			checkErr(err)
			opts = append(opts, service.WithLogLevel(level))
		}
		if flags.Changed("port") {
			opts = append(opts, service.WithPort(servePort))
		}
		if flags.Changed("service-name") {
			opts = append(opts, service.WithServiceName(serveServiceName))
		}
		if flags.Changed("shared-key-required") {
			opts = append(opts, service.WithSharedKey(serveSharedKey))
		}
		if flags.Changed("cache-pages") {
			opts = append(opts, service.WithCachePages(serveCachePages))
		}
		if len(serveAllowedOrigins) > 0 {
			opts = append(opts, service.WithAllowedOrigins(serveAllowedOrigins))
		}
		client, err := s3Client()
		checkErr(err)
		if client != nil {
			opts = append(opts, service.WithS3Client(client))
		}
		for _, raw := range serveLayers {
			id, location, err := parseLayerFlag(raw)
			checkErr(err)
			opts = append(opts, service.WithLayer(id, location))
		}

		svc, err := service.New(ctx, opts...)
		checkErr(err)
		defer svc.Close()
		if err := svc.Start(ctx); err != nil {
			bailf("Shutdown error: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "YAML manifest")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8089, "Port to listen on")
	serveCmd.Flags().StringArrayVar(&serveLayers, "layer-location", nil, "Layer to serve, as id=location (repeatable)")
	serveCmd.Flags().StringSliceVarP(&serveAllowedOrigins, "allowed-origins", "o", []string{}, "Allowed origins")
	serveCmd.Flags().StringVar(&serveServiceName, "service-name", "i3s", "Service name")
	serveCmd.Flags().StringVar(&serveSharedKey, "shared-key-required", "", "Require this bearer token from clients")
	serveCmd.Flags().IntVar(&serveCachePages, "cache-pages", 256, "Node pages cached per layer")
}
