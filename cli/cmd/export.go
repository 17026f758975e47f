package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/catalog"
	"github.com/wkalt/i3s/ql"
	"github.com/wkalt/i3s/session"
)

var (
	exportDBPath  string
	exportFilter  string
	exportWorkers int
	exportList    bool
)

func openCatalog(path string) (*sql.DB, *catalog.Catalog) {
	db, err := sql.Open("sqlite3", path)
	checkErr(err)
	c, err := catalog.New(db)
	checkErr(err)
	return db, c
}

func listCatalog(ctx context.Context, c *catalog.Catalog) {
	layers, err := c.Layers(ctx)
	checkErr(err)
	rows := make([][]string, len(layers))
	for i, l := range layers {
		rows[i] = []string{l.Location, l.Name, l.LayerType, fmt.Sprint(l.NodesPerPage), fmt.Sprint(l.NodeCount)}
	}
	printTable(os.Stdout, []string{"Location", "Name", "Type", "Per page", "Nodes"}, rows)
}

var exportCmd = &cobra.Command{
	Use:   "export [location]",
	Short: "Write the node tree of a layer to a sqlite catalog",
	Long: `Load a whole layer and record its nodes in a sqlite database. Exporting a
location again replaces its previous rows. With --list, print the layers
already in the catalog instead.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db, c := openCatalog(exportDBPath)
		defer db.Close()
		if exportList {
			listCatalog(ctx, c)
			return
		}
		if len(args) != 1 {
			bailf("export requires a location")
		}
		var filter *ql.Filter
		if exportFilter != "" {
			var err error
			filter, err = ql.Compile(exportFilter)
			checkErr(err)
		}
		backend, s := openSession(ctx, args[0], session.WithWorkers(exportWorkers))
		defer backend.Close()
		checkErr(s.LoadAll(ctx))
		n, err := c.Export(ctx, args[0], s, filter)
		checkErr(err)
		fmt.Printf("exported %d nodes to %s\n", n, exportDBPath)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDBPath, "db", "", "i3s.db", "Catalog database path")
	exportCmd.Flags().StringVarP(&exportFilter, "filter", "f", "", "Only export nodes matching this expression")
	exportCmd.Flags().IntVarP(&exportWorkers, "workers", "w", 8, "Concurrent page fetches")
	exportCmd.Flags().BoolVar(&exportList, "list", false, "List exported layers")
}
