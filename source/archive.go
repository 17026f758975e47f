package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/storage"
	"github.com/wkalt/i3s/util/log"
)

/*
The archive backend reads SLPK packages: zip containers whose entries are JSON
documents, usually gzip-compressed and named with a .gz suffix. Entry names are
normalized to forward slashes since packages written on Windows sometimes use
backslashes.

Only one entry is read at a time per ArchiveSource. The underlying ReaderAt may
be a file or a storage object, and serializing reads keeps a single handle
safe to share between goroutines.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	// DescriptorEntry is the archive entry holding the layer descriptor.
	DescriptorEntry = "3dSceneLayer.json.gz"

	// MetadataEntry is the archive entry holding package metadata.
	MetadataEntry = "metadata.json"

	nodePagePrefix = "nodepages/"
)

var gzipMagic = []byte{0x1f, 0x8b}

// NodePageEntry returns the archive entry name of a node page.
func NodePageEntry(page uint64) string {
	return fmt.Sprintf("%s%d.json.gz", nodePagePrefix, page)
}

// ArchiveSource reads a layer from an SLPK package.
type ArchiveSource struct {
	name    string
	entries map[string]*zip.File
	closer  io.Closer
	mtx     *sync.Mutex
}

// NewArchiveSource reads the zip directory from r. The name is used in logs and
// error messages only.
func NewArchiveSource(r io.ReaderAt, size int64, name string) (*ArchiveSource, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, layer.NewDecodeError(name, fmt.Errorf("not a zip archive: %w", err))
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[strings.ReplaceAll(f.Name, `\`, "/")] = f
	}
	return &ArchiveSource{
		name:    name,
		entries: entries,
		mtx:     &sync.Mutex{},
	}, nil
}

// OpenArchive opens an SLPK file on disk. The file stays open until Close.
func OpenArchive(path string) (*ArchiveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	archive, err := NewArchiveSource(f, info.Size(), path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	archive.closer = f
	return archive, nil
}

// OpenArchiveFromStore opens an SLPK object held by a storage provider. Entries
// are read with ranged requests, so the package is never downloaded whole.
func OpenArchiveFromStore(ctx context.Context, provider storage.Provider, id string) (*ArchiveSource, error) {
	r, err := storage.NewReaderAt(ctx, provider, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return NewArchiveSource(r, r.Size(), fmt.Sprintf("%s/%s", provider, id))
}

func (a *ArchiveSource) lookup(name string) (*zip.File, string, bool) {
	candidates := []string{name}
	if plain, ok := strings.CutSuffix(name, ".gz"); ok {
		candidates = append(candidates, plain)
	} else {
		candidates = append(candidates, name+".gz")
	}
	for _, candidate := range candidates {
		if f, ok := a.entries[candidate]; ok {
			return f, candidate, true
		}
	}
	return nil, "", false
}

// ReadEntry returns the decompressed contents of a named entry. A missing
// ".gz" suffix, or an unexpected one, is tolerated.
func (a *ArchiveSource) ReadEntry(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read of %s abandoned: %w", name, err)
	}
	f, entry, ok := a.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, a.name, ErrNotFound)
	}
	start := time.Now()
	a.mtx.Lock()
	data, err := readZipFile(f)
	a.mtx.Unlock()
	if err != nil {
		return nil, layer.NewDecodeError(entry, err)
	}
	if strings.HasSuffix(entry, ".gz") || bytes.HasPrefix(data, gzipMagic) {
		data, err = gunzip(data)
		if err != nil {
			return nil, layer.NewDecodeError(entry, err)
		}
	}
	log.Debugw(ctx, "read archive entry", "entry", entry, "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	return data, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// RawDescriptor returns the decompressed descriptor document.
func (a *ArchiveSource) RawDescriptor(ctx context.Context) ([]byte, error) {
	return a.ReadEntry(ctx, DescriptorEntry)
}

// RawNodePage returns the decompressed node page document.
func (a *ArchiveSource) RawNodePage(ctx context.Context, page uint64) ([]byte, error) {
	return a.ReadEntry(ctx, NodePageEntry(page))
}

// Descriptor reads and parses the layer descriptor.
func (a *ArchiveSource) Descriptor(ctx context.Context) (*layer.Descriptor, error) {
	data, err := a.RawDescriptor(ctx)
	if err != nil {
		return nil, err
	}
	return parseDescriptor(data, DescriptorEntry)
}

// NodePage reads and parses a node page.
func (a *ArchiveSource) NodePage(ctx context.Context, page uint64) (*layer.NodePage, error) {
	data, err := a.RawNodePage(ctx, page)
	if err != nil {
		return nil, err
	}
	return parseNodePage(data, NodePageEntry(page))
}

// Metadata reads and parses metadata.json.
func (a *ArchiveSource) Metadata(ctx context.Context) (*layer.Metadata, error) {
	data, err := a.ReadEntry(ctx, MetadataEntry)
	if err != nil {
		return nil, err
	}
	metadata, err := layer.ParseMetadata(data)
	if err != nil {
		return nil, decodeFailure(MetadataEntry, err)
	}
	return metadata, nil
}

// NodePageNumbers lists the node pages present in the archive in ascending
// order. Entries under nodepages/ whose names are not page numbers are skipped.
func (a *ArchiveSource) NodePageNumbers() []uint64 {
	pages := []uint64{}
	for name := range a.entries {
		rest, ok := strings.CutPrefix(name, nodePagePrefix)
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, ".gz")
		rest, ok = strings.CutSuffix(rest, ".json")
		if !ok {
			continue
		}
		page, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			continue
		}
		pages = append(pages, page)
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// Entries returns the normalized names of all archive entries, sorted.
func (a *ArchiveSource) Entries() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases the underlying file, if the archive owns one.
func (a *ArchiveSource) Close() error {
	if a.closer == nil {
		return nil
	}
	if err := a.closer.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func (a *ArchiveSource) String() string {
	return fmt.Sprintf("slpk(%s)", a.name)
}
