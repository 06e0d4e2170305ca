package archive

import "context"

// History is one archived conversation, oldest entry first.
type History struct {
	// HeadHash is the hash of the node the history was built from.
	HeadHash string `json:"head_hash"`

	// ImageDigest identifies the image the conversation was about.
	ImageDigest string `json:"image_digest,omitempty"`

	Turns []HistoryTurn `json:"turns"`

	// Depth is the number of nodes in the history, including the image root.
	Depth int `json:"depth"`
}

// HistoryTurn is a conversation turn in a History.
type HistoryTurn struct {
	Hash       string  `json:"hash"`
	ParentHash *string `json:"parent_hash,omitempty"`
	Role       string  `json:"role"`
	Text       string  `json:"text"`
	Model      string  `json:"model,omitempty"`
}

// BuildHistory reconstructs the conversation leading up to hash.
func BuildHistory(ctx context.Context, store Store, hash string) (*History, error) {
	// Ancestry is newest first
	path, err := store.Ancestry(ctx, hash)
	if err != nil {
		return nil, err
	}

	h := &History{
		HeadHash: hash,
		Turns:    []HistoryTurn{},
		Depth:    len(path),
	}
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		switch node.Entry.Type {
		case TypeImage:
			h.ImageDigest = node.Entry.ImageDigest
		case TypeMessage:
			h.Turns = append(h.Turns, HistoryTurn{
				Hash:       node.Hash,
				ParentHash: node.ParentHash,
				Role:       node.Entry.Role,
				Text:       node.Entry.Text,
				Model:      node.Entry.Model,
			})
		}
	}
	return h, nil
}

// Histories builds one History per leaf. Leaves whose ancestry is broken are skipped.
func Histories(ctx context.Context, store Store) ([]*History, error) {
	leaves, err := store.Leaves(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*History, 0, len(leaves))
	for _, leaf := range leaves {
		h, err := BuildHistory(ctx, store, leaf.Hash)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Stats summarises the archive.
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	RootCount  int `json:"root_count"`
	LeafCount  int `json:"leaf_count"`
}

// Summarize counts nodes, roots and leaves.
func Summarize(ctx context.Context, store Store) (*Stats, error) {
	nodes, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	roots, err := store.Roots(ctx)
	if err != nil {
		return nil, err
	}
	leaves, err := store.Leaves(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalNodes: len(nodes), RootCount: len(roots), LeafCount: len(leaves)}, nil
}
