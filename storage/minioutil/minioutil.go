package minioutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/madmin-go"
	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	minio "github.com/minio/minio/cmd"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/util/testutils"
)

/*
minioutil runs a real minio server inside the test process so the S3 provider
and s3:// archive locations can be exercised without external services.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	accessKeyID     = "minioadmin"
	secretAccessKey = "minioadmin"
	bucket          = "layers"
	startupTimeout  = 10 * time.Second
)

// Server is a running test server with one empty bucket.
type Server struct {
	Client *mclient.Client
	Bucket string
	Addr   string
}

// NewServer starts minio on an open port and creates a bucket. Shutdown is
// registered with t.Cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	port, err := testutils.GetOpenPort()
	require.NoError(t, err)
	addr := fmt.Sprintf("localhost:%d", port)

	admin, err := madmin.New(addr, accessKeyID, secretAccessKey, false)
	require.NoError(t, err)

	dir, err := os.MkdirTemp("", "i3s-minio")
	require.NoError(t, err)

	go minio.Main([]string{"minio", "server", "--quiet", "--address", addr, dir})

	deadline := time.Now().Add(startupTimeout)
	for {
		if _, err := admin.ServerInfo(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for minio to start")
		}
		time.Sleep(100 * time.Millisecond)
	}

	mc, err := mclient.New(addr, &mclient.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, mc.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{}))

	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(dir))
		// minio calls os.Exit when stopped, so stop it only after the test
		// binary has had time to finish.
		go func() {
			time.Sleep(5 * time.Second)
			if err := admin.ServiceStop(ctx); err != nil {
				t.Log(err)
			}
		}()
	})
	return &Server{Client: mc, Bucket: bucket, Addr: addr}
}
