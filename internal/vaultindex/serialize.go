package vaultindex

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wireNode is the JSON-serializable form of a Node. Child lists are arrays
// in insertion order; binary fields are base64. This is the plaintext of
// the encrypted index blob, so its shape is part of the on-disk format.
type wireNode struct {
	Type        string      `json:"type"` // "folder" or "file"
	Name        string      `json:"name"`
	Children    []*wireNode `json:"children,omitempty"`
	FileID      string      `json:"file_id,omitempty"`
	ContentHash string      `json:"content_hash,omitempty"`
}

func toWire(n *Node) *wireNode {
	w := &wireNode{Name: n.Name}
	switch n.Kind {
	case KindFolder:
		w.Type = "folder"
		for _, c := range n.Children {
			w.Children = append(w.Children, toWire(c))
		}
	case KindFile:
		w.Type = "file"
		w.FileID = base64.StdEncoding.EncodeToString(n.ID[:])
		if n.HasHash {
			w.ContentHash = base64.StdEncoding.EncodeToString(n.ContentHash[:])
		}
	}
	return w
}

func fromWire(w *wireNode) (*Node, error) {
	switch w.Type {
	case "folder":
		n := NewFolder(w.Name)
		for _, wc := range w.Children {
			c, err := fromWire(wc)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
		return n, nil
	case "file":
		idBytes, err := base64.StdEncoding.DecodeString(w.FileID)
		if err != nil || len(idBytes) != 16 {
			return nil, fmt.Errorf("vaultindex: invalid file_id for %q", w.Name)
		}
		var id FileID
		copy(id[:], idBytes)

		var hash [32]byte
		hasHash := false
		if w.ContentHash != "" {
			hashBytes, err := base64.StdEncoding.DecodeString(w.ContentHash)
			if err != nil || len(hashBytes) != 32 {
				return nil, fmt.Errorf("vaultindex: invalid content_hash for %q", w.Name)
			}
			copy(hash[:], hashBytes)
			hasHash = true
		}
		n := NewFile(w.Name, id, hash)
		n.HasHash = hasHash
		return n, nil
	default:
		return nil, fmt.Errorf("vaultindex: unknown node type %q", w.Type)
	}
}

// MarshalJSON serializes the tree rooted at t.Root.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(t.Root))
}

// UnmarshalJSON deserializes a tree and rebuilds its FileID reverse map.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	root, err := fromWire(&w)
	if err != nil {
		return err
	}
	t.Root = root
	t.RebuildIndex()
	return nil
}
