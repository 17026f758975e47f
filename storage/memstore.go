package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

/*
MemStore is an in-memory storage provider backed by a map. It is used in tests
and for archives fetched once over the network.
*/

////////////////////////////////////////////////////////////////////////////////

// MemStore is an in-memory store.
type MemStore struct {
	data map[string][]byte
	mtx  *sync.RWMutex
}

// NewMemStore returns a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
		mtx:  &sync.RWMutex{},
	}
}

func (m *MemStore) lookup(id string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

// Put stores an object in the store.
func (m *MemStore) Put(_ context.Context, id string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[id] = data
	return nil
}

// Get returns a reader over an object.
func (m *MemStore) Get(_ context.Context, id string) (io.ReadCloser, error) {
	data, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// GetRange returns a reader over part of an object. Ranges running past the
// end are truncated.
func (m *MemStore) GetRange(_ context.Context, id string, offset int64, length int64) (io.ReadCloser, error) {
	data, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(bytes.NewReader(data), offset, length)), nil
}

// Size returns the size of an object.
func (m *MemStore) Size(_ context.Context, id string) (int64, error) {
	data, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Delete removes an object from the store.
func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MemStore) String() string {
	return "memory"
}
