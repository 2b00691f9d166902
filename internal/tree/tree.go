// Package tree implements the pure forest operations behind the editor.
//
// Every function takes a forest and returns a new one; the input is never
// modified. Only the nodes on the path from the root to the target are
// copied, all other subtrees are shared with the previous revision. When an
// operation fails the input forest is returned together with the error, so
// callers can keep using the result unconditionally.
package tree

import (
	"errors"
	"fmt"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/models"
)

// RootID is the synthetic parent id denoting the top level of the forest.
const RootID = "root"

// Lookup returns the first node in pre-order whose id matches.
func Lookup(f models.Forest, id string) (*models.Node, bool) {
	for _, n := range f {
		if n.ID == id {
			return n, true
		}
		if n.IsFolder() {
			if found, ok := Lookup(n.Children, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Insert appends n to the children of the folder parentID, or to the top
// level when parentID is RootID.
func Insert(f models.Forest, parentID string, n *models.Node) (models.Forest, error) {
	if n == nil {
		return f, fmt.Errorf("tree: insert into %s: nil node", parentID)
	}
	if err := checkFresh(f, n); err != nil {
		return f, err
	}
	if parentID == RootID {
		return appendNode(f, n), nil
	}
	out, err := replace(f, parentID, func(p *models.Node) (*models.Node, error) {
		if !p.IsFolder() {
			return nil, apperr.ErrNotFolder
		}
		return p.WithChildren(appendNode(p.Children, n)), nil
	})
	if err != nil {
		return f, fmt.Errorf("tree: insert into %s: %w", parentID, err)
	}
	return out, nil
}

// Rename replaces the name of node id.
func Rename(f models.Forest, id, name string) (models.Forest, error) {
	out, err := replace(f, id, func(n *models.Node) (*models.Node, error) {
		return n.WithName(name), nil
	})
	if err != nil {
		return f, fmt.Errorf("tree: rename %s: %w", id, err)
	}
	return out, nil
}

// UpdateContent replaces the content of file id. Folders are rejected.
func UpdateContent(f models.Forest, id, content string) (models.Forest, error) {
	out, err := replace(f, id, func(n *models.Node) (*models.Node, error) {
		if !n.IsFile() {
			return nil, apperr.ErrNotFile
		}
		return n.WithContent(content), nil
	})
	if err != nil {
		return f, fmt.Errorf("tree: update content %s: %w", id, err)
	}
	return out, nil
}

// Delete removes node id together with its whole subtree.
func Delete(f models.Forest, id string) (models.Forest, error) {
	out, _, ok := detach(f, id)
	if !ok {
		return f, fmt.Errorf("tree: delete %s: %w", id, apperr.ErrNotFound)
	}
	return out, nil
}

// Move reparents node id under targetID (a folder or RootID), appending it
// after the target's existing children. Moving a node into itself or into
// one of its descendants is rejected and leaves the forest unchanged.
func Move(f models.Forest, id, targetID string) (models.Forest, error) {
	if _, ok := Lookup(f, id); !ok {
		return f, fmt.Errorf("tree: move %s: %w", id, apperr.ErrNotFound)
	}
	if targetID == id {
		return f, fmt.Errorf("tree: move %s into itself: %w", id, apperr.ErrStructuralViolation)
	}
	if targetID != RootID {
		target, ok := Lookup(f, targetID)
		if !ok {
			return f, fmt.Errorf("tree: move %s to %s: %w", id, targetID, apperr.ErrNotFound)
		}
		if !target.IsFolder() {
			return f, fmt.Errorf("tree: move %s to %s: %w", id, targetID, apperr.ErrNotFolder)
		}
		if IsDescendant(f, id, targetID) {
			return f, fmt.Errorf("tree: move %s into its descendant %s: %w", id, targetID, apperr.ErrStructuralViolation)
		}
	}

	detached, node, _ := detach(f, id)
	out, err := Insert(detached, targetID, node)
	if err != nil {
		return f, err
	}
	return out, nil
}

// IsDescendant reports whether id lies strictly below ancestorID.
func IsDescendant(f models.Forest, ancestorID, id string) bool {
	a, ok := Lookup(f, ancestorID)
	if !ok || !a.IsFolder() {
		return false
	}
	_, found := Lookup(a.Children, id)
	return found
}

// Path returns the chain of nodes from the top level down to id, inclusive.
func Path(f models.Forest, id string) ([]*models.Node, bool) {
	for _, n := range f {
		if n.ID == id {
			return []*models.Node{n}, true
		}
		if n.IsFolder() {
			if rest, ok := Path(n.Children, id); ok {
				return append([]*models.Node{n}, rest...), true
			}
		}
	}
	return nil, false
}

// Walk visits every node in pre-order. Returning false from fn stops the walk.
func Walk(f models.Forest, fn func(n *models.Node, depth int) bool) {
	walk(f, 0, fn)
}

func walk(nodes []*models.Node, depth int, fn func(*models.Node, int) bool) bool {
	for _, n := range nodes {
		if !fn(n, depth) {
			return false
		}
		if n.IsFolder() && !walk(n.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// IDs lists every id in pre-order.
func IDs(f models.Forest) []string {
	var out []string
	Walk(f, func(n *models.Node, _ int) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

// Validate checks the invariants a decoded forest must hold: no nil nodes,
// known variants only, files without children and globally unique ids.
func Validate(f models.Forest) error {
	seen := make(map[string]struct{})
	var err error
	var check func(nodes []*models.Node) bool
	check = func(nodes []*models.Node) bool {
		for _, n := range nodes {
			if n == nil {
				err = fmt.Errorf("tree: nil node: %w", apperr.ErrInvalidTree)
				return false
			}
			if _, dup := seen[n.ID]; dup {
				err = fmt.Errorf("tree: duplicate id %s: %w", n.ID, apperr.ErrInvalidTree)
				return false
			}
			seen[n.ID] = struct{}{}
			switch n.Kind {
			case models.KindFolder:
				if !check(n.Children) {
					return false
				}
			case models.KindFile:
				if len(n.Children) > 0 {
					err = fmt.Errorf("tree: file %s has children: %w", n.ID, apperr.ErrInvalidTree)
					return false
				}
			default:
				err = fmt.Errorf("tree: node %s has unknown kind %q: %w", n.ID, n.Kind, apperr.ErrInvalidTree)
				return false
			}
		}
		return true
	}
	check(f)
	return err
}

// checkFresh rejects inserting a subtree whose ids already occur in f.
func checkFresh(f models.Forest, n *models.Node) error {
	existing := make(map[string]struct{})
	Walk(f, func(x *models.Node, _ int) bool {
		existing[x.ID] = struct{}{}
		return true
	})
	var dup string
	Walk(models.Forest{n}, func(x *models.Node, _ int) bool {
		if _, ok := existing[x.ID]; ok {
			dup = x.ID
			return false
		}
		return true
	})
	if dup != "" {
		return fmt.Errorf("tree: insert: id %s already present: %w", dup, apperr.ErrInvalidTree)
	}
	return nil
}

func appendNode(nodes []*models.Node, n *models.Node) []*models.Node {
	out := make([]*models.Node, len(nodes), len(nodes)+1)
	copy(out, nodes)
	return append(out, n)
}

// replace swaps the node id for fn's result, copying only its ancestors.
func replace(nodes []*models.Node, id string, fn func(*models.Node) (*models.Node, error)) ([]*models.Node, error) {
	for i, n := range nodes {
		var repl *models.Node
		switch {
		case n.ID == id:
			r, err := fn(n)
			if err != nil {
				return nil, err
			}
			repl = r
		case n.IsFolder():
			children, err := replace(n.Children, id, fn)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			repl = n.WithChildren(children)
		default:
			continue
		}
		out := make([]*models.Node, len(nodes))
		copy(out, nodes)
		out[i] = repl
		return out, nil
	}
	return nil, apperr.ErrNotFound
}

// detach removes id and reports the removed node.
func detach(nodes []*models.Node, id string) ([]*models.Node, *models.Node, bool) {
	for i, n := range nodes {
		if n.ID == id {
			out := make([]*models.Node, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			out = append(out, nodes[i+1:]...)
			return out, n, true
		}
		if n.IsFolder() {
			if children, removed, ok := detach(n.Children, id); ok {
				out := make([]*models.Node, len(nodes))
				copy(out, nodes)
				out[i] = n.WithChildren(children)
				return out, removed, true
			}
		}
	}
	return nil, nil, false
}
