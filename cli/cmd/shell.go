package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/ql"
	"github.com/wkalt/i3s/session"
)

const shellHelp = `Commands:
  ls                 list the children of the current node
  cd <index>         move to a node (loads its page if needed)
  up                 move to the parent node
  root               move to the root node
  info               print the current node as JSON
  path               print the indices from the root to the current node
  load               load every page of the layer
  find <filter>      list loaded nodes matching a filter expression
  pending            list referenced nodes whose pages are not loaded
  help               print this text
  exit               leave the shell

Filter fields: `

// browser is the state of an interactive shell over one session.
type browser struct {
	s       *session.Session
	current *layer.Node
}

var errExit = errors.New("exit")

func newBrowser(ctx context.Context, s *session.Session) (*browser, error) {
	root, err := s.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load root: %w", err)
	}
	return &browser{s: s, current: root}, nil
}

func (b *browser) prompt() string {
	return fmt.Sprintf("i3s:%d # ", b.current.Index)
}

func (b *browser) depth() string {
	depth, err := b.s.Tree().Depth(b.current)
	if err != nil {
		return "?"
	}
	return strconv.Itoa(depth)
}

func (b *browser) exec(ctx context.Context, w io.Writer, line string) error {
	command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	tree := b.s.Tree()
	switch command {
	case "":
		return nil
	case "help":
		fmt.Fprintln(w, shellHelp+strings.Join(ql.Fields(), ", "))
	case "exit", "quit":
		return errExit
	case "ls":
		for _, child := range tree.ChildrenOf(b.current) {
			if child.Pending() {
				fmt.Fprintf(w, "%d (page %d not loaded)\n", child.Index, b.s.PageOf(child.Index))
				continue
			}
			fmt.Fprintln(w, describeNode(child.Node))
		}
	case "cd":
		index, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node index: %q", arg)
		}
		node, err := b.s.EnsureNode(ctx, index)
		if err != nil {
			return err //nolint:wrapcheck
		}
		b.current = node
	case "up":
		if b.current.IsRoot() {
			return errors.New("already at a root")
		}
		parent, err := b.s.EnsureNode(ctx, *b.current.ParentIndex)
		if err != nil {
			return err //nolint:wrapcheck
		}
		b.current = parent
	case "root":
		root, err := b.s.Root(ctx)
		if err != nil {
			return err //nolint:wrapcheck
		}
		b.current = root
	case "info":
		data, err := json.MarshalIndent(b.current, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		fmt.Fprintf(w, "page: %d depth: %s\n%s\n", b.s.PageOf(b.current.Index), b.depth(), data)
	case "path":
		path := []string{}
		for node := b.current; node != nil; {
			path = append([]string{strconv.FormatUint(node.Index, 10)}, path...)
			parent, err := tree.ParentOf(node)
			if err != nil {
				break
			}
			node = parent
		}
		fmt.Fprintln(w, strings.Join(path, " / "))
	case "load":
		if err := b.s.LoadAll(ctx); err != nil {
			return err //nolint:wrapcheck
		}
		fmt.Fprintf(w, "%d nodes on %d pages\n", tree.Len(), len(b.s.LoadedPages()))
	case "find":
		filter, err := ql.Compile(arg)
		if err != nil {
			return err //nolint:wrapcheck
		}
		for _, index := range tree.Indices() {
			node, _ := tree.Get(index)
			depth, err := tree.Depth(node)
			if err != nil {
				depth = -1
			}
			if filter.Match(ql.Target{Node: node, Depth: depth, Page: b.s.PageOf(index)}) {
				fmt.Fprintln(w, describeNode(node))
			}
		}
	case "pending":
		fmt.Fprintln(w, tree.Pending())
	default:
		return fmt.Errorf("unrecognized command: %s", command)
	}
	return nil
}

func runShell(ctx context.Context, b *browser) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	l, err := readline.NewEx(&readline.Config{
		Prompt:          b.prompt(),
		HistoryFile:     filepath.Join(home, ".i3s-history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer l.Close()
	l.CaptureExitSignal()
	fmt.Println(`Type "help" for help.`)

	for {
		line, err := l.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read line: %w", err)
		}
		if err := b.exec(ctx, os.Stdout, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Println("ERROR: " + err.Error())
		}
		l.SetPrompt(b.prompt())
	}
}

var shellCmd = &cobra.Command{
	Use:   "shell [location]",
	Short: "Browse a scene layer interactively",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		backend, s := openSession(ctx, args[0], session.WithContinueOnError())
		defer backend.Close()
		b, err := newBrowser(ctx, s)
		checkErr(err)
		checkErr(runShell(ctx, b))
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
