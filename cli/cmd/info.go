package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util"
)

var infoEntries bool

func descriptorRows(d *layer.Descriptor) [][]string {
	rows := [][]string{
		{"id", fmt.Sprint(d.ID)},
		{"name", d.Name},
		{"layer type", d.LayerType},
		{"profile", d.Store.Profile},
		{"store version", d.Store.Version},
		{"nodes per page", fmt.Sprint(d.NodePages.NodesPerPage)},
		{"root index", fmt.Sprint(d.NodePages.RootIndex)},
		{"lod metric", d.NodePages.LODSelectionMetricType},
	}
	if d.Alias != "" {
		rows = append(rows, []string{"alias", d.Alias})
	}
	if len(d.Capabilities) > 0 {
		rows = append(rows, []string{"capabilities", strings.Join(d.Capabilities, ", ")})
	}
	if sr := d.SpatialReference; sr != nil && sr.WKID != nil {
		rows = append(rows, []string{"wkid", fmt.Sprint(*sr.WKID)})
	}
	if e := d.FullExtent; e != nil {
		extent := fmt.Sprintf("[%g %g] [%g %g] [%g %g]", e.XMin, e.XMax, e.YMin, e.YMax, e.ZMin, e.ZMax)
		if !e.WellFormed() {
			extent += " (malformed)"
		}
		rows = append(rows, []string{"extent", extent})
	}
	return rows
}

var infoCmd = &cobra.Command{
	Use:   "info [location]",
	Short: "Describe a scene layer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		location := args[0]
		backend := openBackend(ctx, location)
		defer backend.Close()

		descriptor, err := backend.Descriptor(ctx)
		checkErr(err)
		rows := descriptorRows(descriptor)
		rows = append(rows, []string{"source", backend.String()})
		if stat, err := os.Stat(location); err == nil {
			rows = append(rows, []string{"size", util.HumanBytes(uint64(stat.Size()))})
		}

		archive, ok := backend.(*source.ArchiveSource)
		if ok {
			pages := archive.NodePageNumbers()
			rows = append(rows, []string{"node pages", fmt.Sprint(len(pages))})
			metadata, err := archive.Metadata(ctx)
			switch {
			case err == nil:
				rows = append(rows,
					[]string{"i3s version", metadata.I3SVersion},
					[]string{"node count", fmt.Sprint(metadata.NodeCount)},
				)
			case !errors.Is(err, source.ErrNotFound):
				checkErr(err)
			}
		}
		printTable(os.Stdout, []string{"Field", "Value"}, rows)

		if infoEntries && ok {
			fmt.Println()
			entries := archive.Entries()
			data := make([][]string, len(entries))
			for i, name := range entries {
				data[i] = []string{name}
			}
			printTable(os.Stdout, []string{"Entry"}, data)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVarP(&infoEntries, "entries", "e", false, "List archive entries")
}
