package archive

import (
	"context"
	"errors"
)

// Store persists and traverses archive nodes. Putting a node that already
// exists is a no-op, so identical histories deduplicate automatically.
type Store interface {
	// Put stores a node and reports whether it was new.
	Put(ctx context.Context, node *Node) (bool, error)

	// Get retrieves a node by hash. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, hash string) (*Node, error)

	// Has checks whether a node exists.
	Has(ctx context.Context, hash string) (bool, error)

	// Children returns the nodes whose parent is hash.
	Children(ctx context.Context, hash string) ([]*Node, error)

	// List returns all nodes in insertion order.
	List(ctx context.Context) ([]*Node, error)

	// Roots returns all image roots.
	Roots(ctx context.Context) ([]*Node, error)

	// Leaves returns all nodes without children.
	Leaves(ctx context.Context) ([]*Node, error)

	// Ancestry returns the path from a node back to its root (node first, root last).
	Ancestry(ctx context.Context, hash string) ([]*Node, error)

	// Depth returns the depth of a node (0 for roots).
	Depth(ctx context.Context, hash string) (int, error)

	Close() error
}

// ErrNotFound is returned when a node doesn't exist in the store.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	if e.Hash == "" {
		return "node not found"
	}
	return "node not found: " + e.Hash
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

var errNilNode = errors.New("cannot put nil node")

// Open returns a SQLite store for path, or a memory store when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}

// ancestry walks parent links using get; shared by the store implementations.
func ancestry(ctx context.Context, hash string, get func(context.Context, string) (*Node, error)) ([]*Node, error) {
	var path []*Node
	for {
		node, err := get(ctx, hash)
		if err != nil {
			return nil, err
		}
		path = append(path, node)
		if node.ParentHash == nil {
			return path, nil
		}
		hash = *node.ParentHash
	}
}
