// Package models defines the domain types for Arbor.
package models

import (
	"encoding/json"
	"fmt"
)

// Kind tags the two node variants.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Default names given to freshly added nodes.
const (
	DefaultFolderName = "New Folder"
	DefaultFileName   = "New File.md"
)

// Node is a folder or a markdown file in the document tree.
//
// Nodes reachable from a Forest are shared between revisions and must be
// treated as immutable: derive changed copies with the With* helpers or the
// tree package instead of assigning fields.
type Node struct {
	ID   string
	Kind Kind
	Name string

	// Children is only meaningful for folders and is never nil for them.
	Children []*Node
	// Content holds markdown source and is only meaningful for files.
	Content string
}

// Forest is the ordered sequence of root-level nodes.
type Forest []*Node

// NewFolder returns an empty folder.
func NewFolder(id, name string) *Node {
	return &Node{ID: id, Kind: KindFolder, Name: name, Children: []*Node{}}
}

// NewFile returns a file holding content.
func NewFile(id, name, content string) *Node {
	return &Node{ID: id, Kind: KindFile, Name: name, Content: content}
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// IsFile reports whether n is a file.
func (n *Node) IsFile() bool { return n.Kind == KindFile }

// WithName returns a shallow copy of n carrying name.
func (n *Node) WithName(name string) *Node {
	c := *n
	c.Name = name
	return &c
}

// WithContent returns a shallow copy of n carrying content.
func (n *Node) WithContent(content string) *Node {
	c := *n
	c.Content = content
	return &c
}

// WithChildren returns a shallow copy of n carrying children.
func (n *Node) WithChildren(children []*Node) *Node {
	c := *n
	c.Children = children
	return &c
}

type wireNode struct {
	ID       string   `json:"id"`
	Type     Kind     `json:"type"`
	Name     string   `json:"name"`
	Children *[]*Node `json:"children,omitempty"`
	Content  *string  `json:"content,omitempty"`
}

// MarshalJSON writes the persisted layout: folders carry "children" (always
// an array), files carry "content".
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{ID: n.ID, Type: n.Kind, Name: n.Name}
	switch n.Kind {
	case KindFolder:
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		w.Children = &children
	case KindFile:
		content := n.Content
		w.Content = &content
	default:
		return nil, fmt.Errorf("models: node %q has unknown type %q", n.ID, n.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the persisted layout and rejects unknown variants.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("models: node %q has an empty id", w.Name)
	}
	switch w.Type {
	case KindFolder:
		children := []*Node{}
		if w.Children != nil && *w.Children != nil {
			children = *w.Children
		}
		*n = Node{ID: w.ID, Kind: KindFolder, Name: w.Name, Children: children}
	case KindFile:
		var content string
		if w.Content != nil {
			content = *w.Content
		}
		*n = Node{ID: w.ID, Kind: KindFile, Name: w.Name, Content: content}
	default:
		return fmt.Errorf("models: node %q has unknown type %q", w.ID, w.Type)
	}
	return nil
}
