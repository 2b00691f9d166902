package editor

import (
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/tree"
)

// Selection holds the file currently open for editing. It refers to the
// file by id; the cached node is refreshed from every committed forest and
// dropped once the file is no longer reachable.
type Selection struct {
	node *models.Node
}

// Node returns the selected file, if any.
func (s Selection) Node() (*models.Node, bool) {
	return s.node, s.node != nil
}

// ID returns the selected file id or "".
func (s Selection) ID() string {
	if s.node == nil {
		return ""
	}
	return s.node.ID
}

// reconcile refreshes the selection against f and reports whether the
// visible selection changed.
func (s *Selection) reconcile(f models.Forest) bool {
	if s.node == nil {
		return false
	}
	n, ok := tree.Lookup(f, s.node.ID)
	if !ok || !n.IsFile() {
		s.node = nil
		return true
	}
	changed := n != s.node
	s.node = n
	return changed
}

func (s *Selection) set(n *models.Node) bool {
	changed := n != s.node
	s.node = n
	return changed
}
