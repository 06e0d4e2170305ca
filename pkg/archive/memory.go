package archive

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string
	children map[string][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
	}
}

func (m *MemoryStore) Put(_ context.Context, node *Node) (bool, error) {
	if node == nil {
		return false, errNilNode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[node.Hash]; ok {
		return false, nil
	}
	cp := *node
	m.nodes[node.Hash] = &cp
	m.order = append(m.order, node.Hash)
	if node.ParentHash != nil {
		m.children[*node.ParentHash] = append(m.children[*node.ParentHash], node.Hash)
	}
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, hash string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	cp := *node
	return &cp, nil
}

func (m *MemoryStore) Has(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[hash]
	return ok, nil
}

func (m *MemoryStore) Children(_ context.Context, hash string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.children[hash]), nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.order), nil
}

func (m *MemoryStore) Roots(_ context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hashes []string
	for _, h := range m.order {
		if m.nodes[h].ParentHash == nil {
			hashes = append(hashes, h)
		}
	}
	return m.collect(hashes), nil
}

func (m *MemoryStore) Leaves(_ context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hashes []string
	for _, h := range m.order {
		if len(m.children[h]) == 0 {
			hashes = append(hashes, h)
		}
	}
	return m.collect(hashes), nil
}

func (m *MemoryStore) Ancestry(ctx context.Context, hash string) ([]*Node, error) {
	return ancestry(ctx, hash, m.Get)
}

func (m *MemoryStore) Depth(ctx context.Context, hash string) (int, error) {
	path, err := m.Ancestry(ctx, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// collect copies the nodes for hashes; callers hold the read lock.
func (m *MemoryStore) collect(hashes []string) []*Node {
	out := make([]*Node, 0, len(hashes))
	for _, h := range hashes {
		cp := *m.nodes[h]
		out = append(out, &cp)
	}
	return out
}
