// Package archive keeps conversations about images in a content-addressed
// Merkle DAG. An image is a root; every turn is a child of the entry before it.
// Identical histories share nodes, and restarting a conversation about the
// same image branches from the same root.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EntryType distinguishes image roots from conversation turns.
type EntryType string

const (
	TypeImage   EntryType = "image"
	TypeMessage EntryType = "message"
)

// Entry is the hashable content of a node.
type Entry struct {
	Type        EntryType `json:"type"`
	Role        string    `json:"role,omitempty"`
	Text        string    `json:"text,omitempty"`
	ImageDigest string    `json:"image_digest,omitempty"`
	Model       string    `json:"model,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// ImageEntry is the root entry for a conversation about an image.
func ImageEntry(digest, source string) Entry {
	return Entry{Type: TypeImage, ImageDigest: digest, Source: source}
}

// MessageEntry is a conversation turn. Model is set for assistant turns.
func MessageEntry(role, text, model string) Entry {
	return Entry{Type: TypeMessage, Role: role, Text: text, Model: model}
}

// Node represents a single content-addressed entry in the DAG.
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node; nil for image roots.
	ParentHash *string `json:"parent_hash"`

	Entry Entry `json:"entry"`
}

// NewNode creates a node for entry under parentHash. An empty parentHash makes a root.
func NewNode(entry Entry, parentHash string) *Node {
	n := &Node{Entry: entry}
	if parentHash != "" {
		p := parentHash
		n.ParentHash = &p
	}
	n.Hash = n.computeHash()
	return n
}

type hashInput struct {
	Entry  Entry  `json:"entry"`
	Parent string `json:"parent,omitempty"`
}

func (n *Node) computeHash() string {
	in := hashInput{Entry: n.Entry}
	if n.ParentHash != nil {
		in.Parent = *n.ParentHash
	}

	// Struct field order makes the encoding canonical.
	data, err := json.Marshal(in)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports whether the hash matches the node's content.
func (n *Node) Verify() bool {
	return n.Hash == n.computeHash()
}
