// Package vaultindex implements the encrypted index's in-memory tree: a
// root Folder containing Folder and File children, plus a flat reverse map
// from FileIdentifier to File node for O(1) lookup. The tree is the single
// authoritative source of vault names and structure; everything else on
// disk is opaque ciphertext keyed by identifier.
package vaultindex

import (
	"fmt"
	"sort"
	"strings"
)

// NodeKind tags an IndexNode as a Folder or a File. Visitors switch on Kind
// rather than using type assertions, keeping the tagged-variant discipline
// the format calls for.
type NodeKind uint8

const (
	KindFolder NodeKind = iota
	KindFile
)

// FileID is a file's 16-byte opaque identifier, independent of its
// human-readable name. Renaming never changes it.
type FileID [16]byte

func (id FileID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// Node is either a Folder or a File, selected by Kind. Folder fields are
// valid only when Kind==KindFolder; File fields only when Kind==KindFile.
type Node struct {
	Kind NodeKind
	Name string

	// Folder fields.
	Children []*Node

	// File fields.
	ID           FileID
	ContentHash  [32]byte
	HasHash      bool
}

// NewFolder creates an empty folder node named name ("" for the root).
func NewFolder(name string) *Node {
	return &Node{Kind: KindFolder, Name: name}
}

// NewFile creates a file node with the given name, identifier, and recorded
// content hash.
func NewFile(name string, id FileID, contentHash [32]byte) *Node {
	return &Node{Kind: KindFile, Name: name, ID: id, ContentHash: contentHash, HasHash: true}
}

// Tree is the index: a root Folder plus the FileID reverse map.
type Tree struct {
	Root    *Node
	byID    map[FileID]*Node
}

// NewTree creates an empty index whose root folder is named rootName.
func NewTree(rootName string) *Tree {
	return &Tree{Root: NewFolder(rootName), byID: make(map[FileID]*Node)}
}

// ByID looks up a File node by its identifier.
func (t *Tree) ByID(id FileID) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// splitPath splits a POSIX-style relative path into components, ignoring
// empty segments so "" and "/" both resolve to no components (the root).
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// FindByPath resolves a forward-slash relative path from the root. An empty
// path resolves to the root folder. Name comparisons are byte-exact.
func (t *Tree) FindByPath(path string) (*Node, bool) {
	cur := t.Root
	for _, part := range splitPath(path) {
		next := childNamed(cur, part)
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func childNamed(folder *Node, name string) *Node {
	for _, c := range folder.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddFolder adds an empty subfolder named name under parentPath. Returns
// ErrExists if a sibling with the same name already exists there.
func (t *Tree) AddFolder(parentPath, name string) (*Node, error) {
	parent, ok := t.FindByPath(parentPath)
	if !ok || parent.Kind != KindFolder {
		return nil, ErrNoSuchFolder
	}
	if childNamed(parent, name) != nil {
		return nil, ErrExists
	}
	n := NewFolder(name)
	parent.Children = append(parent.Children, n)
	return n, nil
}

// AddFile adds a file named name under parentPath with the given identifier
// and content hash. Returns ErrExists if a sibling with the same name
// already exists there.
func (t *Tree) AddFile(parentPath, name string, id FileID, contentHash [32]byte) (*Node, error) {
	parent, ok := t.FindByPath(parentPath)
	if !ok || parent.Kind != KindFolder {
		return nil, ErrNoSuchFolder
	}
	if childNamed(parent, name) != nil {
		return nil, ErrExists
	}
	n := NewFile(name, id, contentHash)
	parent.Children = append(parent.Children, n)
	t.byID[id] = n
	return n, nil
}

// EnsureFolders walks path from the root, creating any missing folders
// along the way, and returns the folder node at path.
func (t *Tree) EnsureFolders(path string) (*Node, error) {
	cur := t.Root
	var built strings.Builder
	for _, part := range splitPath(path) {
		next := childNamed(cur, part)
		if next == nil {
			next = NewFolder(part)
			cur.Children = append(cur.Children, next)
		} else if next.Kind != KindFolder {
			return nil, fmt.Errorf("vaultindex: %s%s is a file, not a folder", built.String(), part)
		}
		cur = next
		built.WriteString(part)
		built.WriteByte('/')
	}
	return cur, nil
}

// Remove removes the node at path from the tree. For a Folder it also
// removes every descendant from the reverse map. Returns the FileIDs that
// became unreferenced, which the caller must delete the ciphertext for.
func (t *Tree) Remove(path string) ([]FileID, error) {
	parentPath, name := splitLast(path)
	parent, ok := t.FindByPath(parentPath)
	if !ok || parent.Kind != KindFolder {
		return nil, ErrNotFound
	}
	idx := -1
	for i, c := range parent.Children {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotFound
	}
	removed := parent.Children[idx]
	parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)

	var unreferenced []FileID
	collectFileIDs(removed, &unreferenced)
	for _, id := range unreferenced {
		delete(t.byID, id)
	}
	return unreferenced, nil
}

func collectFileIDs(n *Node, out *[]FileID) {
	if n.Kind == KindFile {
		*out = append(*out, n.ID)
		return
	}
	for _, c := range n.Children {
		collectFileIDs(c, out)
	}
}

// Rename changes the name of the node at path to newName without touching
// any ciphertext. Returns ErrExists if a sibling already has newName.
func (t *Tree) Rename(path, newName string) error {
	parentPath, _ := splitLast(path)
	parent, ok := t.FindByPath(parentPath)
	if !ok || parent.Kind != KindFolder {
		return ErrNotFound
	}
	node, ok := t.FindByPath(path)
	if !ok {
		return ErrNotFound
	}
	if sib := childNamed(parent, newName); sib != nil && sib != node {
		return ErrExists
	}
	node.Name = newName
	return nil
}

func splitLast(path string) (parent, name string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", ""
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}

// Walk visits every node in the tree in depth-first, name-sorted order,
// calling fn with the node's full POSIX path relative to the root (empty
// string for the root itself).
func (t *Tree) Walk(fn func(path string, n *Node)) {
	walk(t.Root, "", fn)
}

func walk(n *Node, path string, fn func(string, *Node)) {
	fn(path, n)
	if n.Kind != KindFolder {
		return
	}
	children := append([]*Node{}, n.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	for _, c := range children {
		childPath := c.Name
		if path != "" {
			childPath = path + "/" + c.Name
		}
		walk(c, childPath, fn)
	}
}

// RebuildIndex rebuilds the byID reverse map by walking the tree. Used
// after deserializing a tree from JSON, where the map itself isn't
// serialized.
func (t *Tree) RebuildIndex() {
	t.byID = make(map[FileID]*Node)
	t.Walk(func(_ string, n *Node) {
		if n.Kind == KindFile {
			t.byID[n.ID] = n
		}
	})
}
