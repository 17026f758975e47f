package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/scenetree"
	"github.com/wkalt/i3s/session"
	"github.com/wkalt/i3s/util"
)

var checkWorkers int

// checkLayer loads every reachable page and reports problems. It returns the
// number of problems found.
func checkLayer(ctx context.Context, s *session.Session) (int, error) {
	if err := s.LoadAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to load layer: %w", err)
	}
	tree := s.Tree()
	warn := color.New(color.FgYellow)
	problems := 0

	fmt.Printf("%d nodes on %d pages\n", tree.Len(), len(s.LoadedPages()))
	root, err := tree.Root()
	var multi scenetree.MultipleRootsError
	switch {
	case err == nil:
		fmt.Printf("root: %d\n", root.Index)
	case errors.As(err, &multi):
		problems++
		warn.Printf("multiple roots: %v\n", multi.Indices)
	default:
		problems++
		warn.Printf("root: %v\n", err)
	}
	if root != nil && root.Index != s.Descriptor().NodePages.RootIndex {
		problems++
		warn.Printf("root %d differs from declared root index %d\n", root.Index, s.Descriptor().NodePages.RootIndex)
	}

	failures := s.Failures()
	for _, page := range util.Okeys(failures) {
		problems++
		warn.Printf("page %d: %v\n", page, failures[page])
	}
	if pending := tree.Pending(); len(pending) > 0 {
		problems += len(pending)
		warn.Printf("%d referenced nodes never loaded: %v\n", len(pending), pending)
	}
	for _, linkErr := range tree.Check() {
		problems++
		warn.Println(linkErr.Error())
	}
	return problems, nil
}

var checkCmd = &cobra.Command{
	Use:   "check [location]",
	Short: "Load a whole layer and report structural problems",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		backend, s := openSession(ctx, args[0],
			session.WithWorkers(checkWorkers),
			session.WithContinueOnError(),
		)
		defer backend.Close()
		problems, err := checkLayer(ctx, s)
		checkErr(err)
		if problems > 0 {
			bailf("%d problems found", problems)
		}
		color.Green("ok")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntVarP(&checkWorkers, "workers", "w", 8, "Concurrent page fetches")
}
