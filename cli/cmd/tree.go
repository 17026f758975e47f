package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/ql"
	"github.com/wkalt/i3s/session"
)

var (
	treeFilter   string
	treeMaxDepth int
	treeWorkers  int
	treeLenient  bool
)

var colors = []*color.Color{
	color.New(color.FgRed),
	color.New(color.FgBlue),
	color.New(color.FgYellow),
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgMagenta),
	color.New(color.FgWhite),
	color.New(color.FgHiRed),
	color.New(color.FgHiBlue),
	color.New(color.FgHiYellow),
	color.New(color.FgHiCyan),
	color.New(color.FgHiGreen),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiWhite),
}

func depthColor(depth int) *color.Color {
	return colors[depth%len(colors)]
}

// describeNode renders the one-line summary used by tree and shell.
func describeNode(node *layer.Node) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%d", node.Index)
	if node.LODThreshold != nil {
		fmt.Fprintf(sb, " lod=%g", *node.LODThreshold)
	}
	if len(node.Children) > 0 {
		fmt.Fprintf(sb, " children=%d", len(node.Children))
	}
	if node.Mesh != nil {
		fmt.Fprintf(sb, " vertices=%d", node.Mesh.Geometry.VertexCount)
	}
	return sb.String()
}

func printTree(ctx context.Context, w io.Writer, s *session.Session, filter *ql.Filter, maxDepth int) error {
	refine := func(_ *layer.Node, depth int) bool {
		return maxDepth < 0 || depth < maxDepth
	}
	visit := func(node *layer.Node, depth int) error {
		target := ql.Target{Node: node, Depth: depth, Page: s.PageOf(node.Index)}
		if filter != nil && !filter.Match(target) {
			return nil
		}
		line := strings.Repeat("  ", depth) + describeNode(node)
		_, err := depthColor(depth).Fprintln(w, line)
		return err //nolint:wrapcheck
	}
	return s.Traverse(ctx, refine, visit)
}

var treeCmd = &cobra.Command{
	Use:   "tree [location]",
	Short: "Print the node tree of a scene layer",
	Long: `Print the node tree depth first from the root, fetching node pages as
the walk reaches them. A filter restricts which nodes are printed without
pruning the walk. Example:

  i3s tree city.slpk --max-depth 3 --filter 'leaf = false and lod > 100'

Filter fields: ` + strings.Join(ql.Fields(), ", "),
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var filter *ql.Filter
		if treeFilter != "" {
			var err error
			filter, err = ql.Compile(treeFilter)
			checkErr(err)
		}
		opts := []session.Option{session.WithWorkers(treeWorkers)}
		if treeLenient {
			opts = append(opts, session.WithContinueOnError())
		}
		backend, s := openSession(ctx, args[0], opts...)
		defer backend.Close()
		checkErr(printTree(ctx, os.Stdout, s, filter, treeMaxDepth))
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().StringVarP(&treeFilter, "filter", "f", "", "Only print nodes matching this expression")
	treeCmd.Flags().IntVarP(&treeMaxDepth, "max-depth", "d", -1, "Stop descending below this depth (-1 for no limit)")
	treeCmd.Flags().IntVarP(&treeWorkers, "workers", "w", 8, "Concurrent page fetches")
	treeCmd.Flags().BoolVar(&treeLenient, "continue-on-error", false, "Skip nodes on pages that fail to load")
}
