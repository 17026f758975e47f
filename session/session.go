package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/nodepage"
	"github.com/wkalt/i3s/scenetree"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/log"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

/*
Package session loads a scene layer from a source into a scene tree. The
descriptor is fetched first, when the session is opened, because page
addressing depends on its page capacity. Node pages are fetched afterwards on
demand, concurrently, and merged into the tree in whatever order they arrive.

Each page is fetched at most once per session unless it failed, in which case a
later request fetches it again. Concurrent requests for the same page share a
single fetch. A fetch abandoned through its context never reaches the tree.
*/

////////////////////////////////////////////////////////////////////////////////

// Session is one opened layer and the tree of nodes loaded from it so far.
type Session struct {
	src        source.Source
	descriptor *layer.Descriptor
	tree       *scenetree.Tree
	config     config
	group      *singleflight.Group

	mtx      *sync.Mutex
	loaded   map[uint64]struct{}
	failures map[uint64]error
}

// pageLister is implemented by sources that can list the node pages they hold.
type pageLister interface {
	NodePageNumbers() []uint64
}

// listerOf finds a pageLister in src or in the backends it wraps.
func listerOf(src source.Source) (pageLister, bool) {
	for {
		if lister, ok := src.(pageLister); ok {
			return lister, true
		}
		wrapper, ok := src.(interface{ Unwrap() source.Backend })
		if !ok {
			return nil, false
		}
		src = wrapper.Unwrap()
	}
}

// Open fetches and validates the layer descriptor of src.
func Open(ctx context.Context, src source.Source, opts ...Option) (*Session, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	descriptor, err := src.Descriptor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load layer descriptor: %w", err)
	}
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layer descriptor: %w", err)
	}
	log.Debugw(ctx, "opened layer",
		"name", descriptor.Name,
		"nodesPerPage", descriptor.NodePages.NodesPerPage,
		"rootIndex", descriptor.NodePages.RootIndex,
	)
	return &Session{
		src:        src,
		descriptor: descriptor,
		tree:       scenetree.New(),
		config:     config,
		group:      &singleflight.Group{},
		mtx:        &sync.Mutex{},
		loaded:     make(map[uint64]struct{}),
		failures:   make(map[uint64]error),
	}, nil
}

// Descriptor returns the layer descriptor.
func (s *Session) Descriptor() *layer.Descriptor {
	return s.descriptor
}

// Tree returns the scene tree. It grows as pages are loaded.
func (s *Session) Tree() *scenetree.Tree {
	return s.tree
}

// PageOf returns the node page holding a global index in this layer.
func (s *Session) PageOf(index uint64) uint64 {
	return nodepage.PageOf(index, s.descriptor.NodePages.NodesPerPage)
}

func (s *Session) isLoaded(page uint64) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.loaded[page]
	return ok
}

// LoadedPages returns the pages merged into the tree, in ascending order.
func (s *Session) LoadedPages() []uint64 {
	s.mtx.Lock()
	pages := maps.Keys(s.loaded)
	s.mtx.Unlock()
	slices.Sort(pages)
	return pages
}

// Failures returns the error of every page whose last fetch failed.
func (s *Session) Failures() map[uint64]error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return maps.Clone(s.failures)
}

// EnsurePage fetches a node page and merges it into the tree, unless it is
// already loaded.
func (s *Session) EnsurePage(ctx context.Context, page uint64) error {
	if s.isLoaded(page) {
		return nil
	}
	_, err, _ := s.group.Do(strconv.FormatUint(page, 10), func() (any, error) {
		if s.isLoaded(page) {
			return nil, nil
		}
		start := time.Now()
		nodes, err := s.src.NodePage(ctx, page)
		if err != nil {
			if ctx.Err() == nil {
				s.mtx.Lock()
				s.failures[page] = err
				s.mtx.Unlock()
			}
			return nil, fmt.Errorf("failed to load node page %d: %w", page, err)
		}
		conflicts := s.tree.Insert(ctx, nodes)
		s.mtx.Lock()
		s.loaded[page] = struct{}{}
		delete(s.failures, page)
		s.mtx.Unlock()
		log.Debugw(ctx, "loaded node page",
			"page", page,
			"nodes", len(nodes.Nodes),
			"conflicts", conflicts,
			"elapsed", time.Since(start),
		)
		return nil, nil
	})
	return err //nolint:wrapcheck
}

// EnsureNode returns a node, loading its page first if needed. A node missing
// from the page that should hold it is reported as source.ErrNotFound.
func (s *Session) EnsureNode(ctx context.Context, index uint64) (*layer.Node, error) {
	if node, ok := s.tree.Get(index); ok {
		return node, nil
	}
	page := s.PageOf(index)
	if err := s.EnsurePage(ctx, page); err != nil {
		return nil, err
	}
	node, ok := s.tree.Get(index)
	if !ok {
		return nil, fmt.Errorf("node %d absent from node page %d: %w", index, page, source.ErrNotFound)
	}
	return node, nil
}

// Root returns the root node named by the descriptor, loading its page if
// needed.
func (s *Session) Root(ctx context.Context) (*layer.Node, error) {
	return s.EnsureNode(ctx, s.descriptor.NodePages.RootIndex)
}

// ensurePages loads pages concurrently, bounded by the worker count. With
// continueOnError set, page failures other than cancellation are logged and
// skipped.
func (s *Session) ensurePages(ctx context.Context, pages []uint64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.workers)
	for _, page := range pages {
		g.Go(func() error {
			err := s.EnsurePage(gctx, page)
			if err == nil {
				return nil
			}
			if s.config.continueOnError && gctx.Err() == nil && !isCancellation(err) {
				log.Warnw(gctx, "skipping node page", "page", page, "error", err)
				return nil
			}
			return err
		})
	}
	return g.Wait() //nolint:wrapcheck
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// LoadAll loads the whole layer. Sources that can list their pages have every
// listed page fetched. Otherwise pages are discovered from the root by
// following references to unloaded nodes until none remain that can be
// resolved.
func (s *Session) LoadAll(ctx context.Context) error {
	start := time.Now()
	if lister, ok := listerOf(s.src); ok && s.config.enumerate {
		if err := s.ensurePages(ctx, lister.NodePageNumbers()); err != nil {
			return err
		}
	} else if err := s.expand(ctx); err != nil {
		return err
	}
	log.Infow(ctx, "loaded layer",
		"nodes", s.tree.Len(),
		"pages", len(s.LoadedPages()),
		"failed", len(s.Failures()),
		"elapsed", time.Since(start),
	)
	return nil
}

func (s *Session) expand(ctx context.Context) error {
	attempted := map[uint64]struct{}{}
	frontier := []uint64{s.PageOf(s.descriptor.NodePages.RootIndex)}
	for len(frontier) > 0 {
		for _, page := range frontier {
			attempted[page] = struct{}{}
		}
		if err := s.ensurePages(ctx, frontier); err != nil {
			return err
		}
		frontier = frontier[:0]
		for _, index := range s.tree.Pending() {
			page := s.PageOf(index)
			if _, ok := attempted[page]; ok {
				continue
			}
			attempted[page] = struct{}{}
			frontier = append(frontier, page)
		}
		slices.Sort(frontier)
	}
	return nil
}

// RefineFunc decides whether traversal descends into a node's children.
type RefineFunc func(node *layer.Node, depth int) bool

// VisitFunc is called on every node reached by a traversal. Returning an error
// stops the traversal and returns that error.
type VisitFunc func(node *layer.Node, depth int) error

// Traverse walks the tree depth first from the root, visiting each node before
// its children and descending only where refine returns true. Pages holding
// children are fetched as the walk reaches them. A node reachable twice is
// visited once.
func (s *Session) Traverse(ctx context.Context, refine RefineFunc, visit VisitFunc) error {
	root, err := s.Root(ctx)
	if err != nil {
		return err
	}
	visited := map[uint64]struct{}{}
	return s.descend(ctx, root, 0, refine, visit, visited)
}

func (s *Session) descend(
	ctx context.Context,
	node *layer.Node,
	depth int,
	refine RefineFunc,
	visit VisitFunc,
	visited map[uint64]struct{},
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("traversal abandoned: %w", err)
	}
	if _, ok := visited[node.Index]; ok {
		log.Warnw(ctx, "node reached twice during traversal", "index", node.Index)
		return nil
	}
	visited[node.Index] = struct{}{}
	if err := visit(node, depth); err != nil {
		return err
	}
	if node.IsLeaf() || !refine(node, depth) {
		return nil
	}
	children := s.tree.ChildrenOf(node)
	var missing []uint64
	for _, child := range children {
		if child.Pending() {
			if page := s.PageOf(child.Index); !slices.Contains(missing, page) {
				missing = append(missing, page)
			}
		}
	}
	if err := s.ensurePages(ctx, missing); err != nil {
		return err
	}
	for _, child := range children {
		next := child.Node
		if next == nil {
			var ok bool
			if next, ok = s.tree.Get(child.Index); !ok {
				if s.config.continueOnError {
					log.Warnw(ctx, "skipping unavailable node", "index", child.Index, "parent", node.Index)
					continue
				}
				return fmt.Errorf("child %d of node %d: %w", child.Index, node.Index, source.ErrNotFound)
			}
		}
		if err := s.descend(ctx, next, depth+1, refine, visit, visited); err != nil {
			return err
		}
	}
	return nil
}
