package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/storage"
)

var copyCmd = &cobra.Command{
	Use:   "copy [from] [to]",
	Short: "Copy an SLPK archive between local paths and S3",
	Long: `Copy an archive, for example to publish a local package:

  i3s copy city.slpk s3://layers/city.slpk --s3-endpoint localhost:9000 ...

The copy is opened afterwards to confirm it reads as a scene layer.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, err := s3Client()
		checkErr(err)
		config := source.Config{S3: client}
		src, srcID, err := source.Store(args[0], config)
		checkErr(err)
		dst, dstID, err := source.Store(args[1], config)
		checkErr(err)
		checkErr(storage.Copy(ctx, dst, dstID, src, srcID))

		archive, err := source.OpenArchiveFromStore(ctx, dst, dstID)
		checkErr(err)
		defer archive.Close()
		descriptor, err := archive.Descriptor(ctx)
		checkErr(err)
		fmt.Printf("copied %s (%s) to %s\n", descriptor.Name, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
}
