// Package nodeservice is the action surface shared by the HTTP API and the
// MCP server: editor commands plus search, previews and persistence status.
package nodeservice

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/parser"
	"github.com/starford/arbor/internal/persist"
	"github.com/starford/arbor/internal/render"
	"github.com/starford/arbor/internal/tree"
)

// Crumb is one step of the root→node chain.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NodeDetail is the full representation of a node.
type NodeDetail struct {
	Node     *models.Node     `json:"node"`
	Path     []Crumb          `json:"path"`
	Title    string           `json:"title,omitempty"`
	Tags     []string         `json:"tags"`
	Headings []parser.Heading `json:"headings"`
	Selected bool             `json:"selected"`
	Revision uint64           `json:"revision"`
}

// TreeView is the whole forest as one consistent snapshot.
type TreeView struct {
	Revision   uint64        `json:"revision"`
	Forest     models.Forest `json:"forest"`
	SelectedID string        `json:"selectedId,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables indexed search. Without it search scans the forest.
func WithIndex(idx index.NodeIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// WithStatus wires the persistence status reporter.
func WithStatus(fn func() persist.Status) Option {
	return func(s *Service) { s.status = fn }
}

// Service coordinates the editor, the index and the renderer.
type Service struct {
	ed     *editor.Editor
	idx    index.NodeIndex
	html   *render.HTMLRenderer
	status func() persist.Status
}

// New creates a service over ed.
func New(ed *editor.Editor, opts ...Option) *Service {
	s := &Service{ed: ed, html: render.NewHTML()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Editor exposes the underlying editor.
func (s *Service) Editor() *editor.Editor { return s.ed }

// Tree returns the current forest and revision.
func (s *Service) Tree(_ context.Context) TreeView {
	f, rev := s.ed.Snapshot()
	if f == nil {
		f = models.Forest{}
	}
	v := TreeView{Revision: rev, Forest: f}
	if sel, ok := s.ed.Selected(); ok {
		v.SelectedID = sel.ID
	}
	return v
}

// GetNode returns node id with its breadcrumb path and, for files, the
// parsed title, tags and headings.
func (s *Service) GetNode(_ context.Context, id string) (*NodeDetail, error) {
	f, rev := s.ed.Snapshot()
	chain, ok := tree.Path(f, id)
	if !ok {
		return nil, fmt.Errorf("nodeservice: get %s: %w", id, apperr.ErrNotFound)
	}
	n := chain[len(chain)-1]

	d := &NodeDetail{
		Node:     n,
		Path:     make([]Crumb, len(chain)),
		Tags:     []string{},
		Headings: []parser.Heading{},
		Revision: rev,
	}
	for i, c := range chain {
		d.Path[i] = Crumb{ID: c.ID, Name: c.Name}
	}
	if n.IsFile() {
		res := parser.Parse(n.Content)
		d.Title = res.Title
		d.Tags = nonNilSlice(res.Tags)
		d.Headings = nonNilSlice(res.Headings)
	}
	if sel, ok := s.ed.Selected(); ok && sel.ID == id {
		d.Selected = true
	}
	return d, nil
}

// Create adds a folder or file with the default name under parentID.
func (s *Service) Create(ctx context.Context, parentID string, kind models.Kind) (*models.Node, error) {
	return s.CreateNode(ctx, parentID, editor.NewNode{Kind: kind})
}

// CreateNode adds a node with its name and content set in a single revision.
func (s *Service) CreateNode(_ context.Context, parentID string, spec editor.NewNode) (*models.Node, error) {
	if parentID == "" {
		parentID = tree.RootID
	}
	return s.ed.Add(parentID, spec)
}

// Rename sets the name of node id.
func (s *Service) Rename(_ context.Context, id, name string) (*models.Node, error) {
	return s.ed.Rename(id, name)
}

// Delete removes node id and its subtree.
func (s *Service) Delete(_ context.Context, id string) error {
	return s.ed.Delete(id)
}

// Move reparents node id under targetID (tree.RootID for the top level).
func (s *Service) Move(_ context.Context, id, targetID string) (*models.Node, error) {
	if targetID == "" {
		targetID = tree.RootID
	}
	return s.ed.Move(id, targetID)
}

// UpdateContent replaces the content of file id.
func (s *Service) UpdateContent(_ context.Context, id, content string) (*models.Node, error) {
	return s.ed.UpdateContent(id, content)
}

// Open selects file id.
func (s *Service) Open(_ context.Context, id string) (*models.Node, error) {
	return s.ed.OpenFile(id)
}

// Close clears the selection.
func (s *Service) Close(_ context.Context) {
	s.ed.CloseFile()
}

// Selection returns the open file, if any.
func (s *Service) Selection(_ context.Context) (*models.Node, bool) {
	return s.ed.Selected()
}

// Preview renders file id as sanitized HTML.
func (s *Service) Preview(_ context.Context, id string) (string, error) {
	n, ok := s.ed.Lookup(id)
	if !ok {
		return "", fmt.Errorf("nodeservice: preview %s: %w", id, apperr.ErrNotFound)
	}
	if !n.IsFile() {
		return "", fmt.Errorf("nodeservice: preview %s: %w", id, apperr.ErrNotFile)
	}
	return s.html.Render(n.Content)
}

// Search finds nodes matching query. Without an index every term must
// occur, case-folded, in the node's name, path or content.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("nodeservice: search: empty query: %w", apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	if s.idx != nil {
		return s.idx.Search(query, limit)
	}
	return scan(s.ed.Forest(), query, limit), nil
}

// Tagged lists the files carrying tag, ordered by path.
func (s *Service) Tagged(_ context.Context, tag string) ([]index.NodeRow, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return nil, fmt.Errorf("nodeservice: tagged: empty tag: %w", apperr.ErrInvalidInput)
	}
	if s.idx != nil {
		return s.idx.ListByTag(tag)
	}
	var out []index.NodeRow
	var walk func(nodes []*models.Node, parent string)
	walk = func(nodes []*models.Node, parent string) {
		for _, n := range nodes {
			path := joinPath(parent, n.Name)
			if n.IsFile() {
				res := parser.Parse(n.Content)
				if slices.Contains(res.Tags, tag) {
					out = append(out, index.NodeRow{ID: n.ID, Kind: n.Kind, Name: n.Name, Path: path, Title: title(n), Tags: res.Tags})
				}
			}
			walk(n.Children, path)
		}
	}
	walk(s.ed.Forest(), "")
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Status reports how far persistence has caught up.
func (s *Service) Status(_ context.Context) persist.Status {
	if s.status == nil {
		rev := s.ed.Revision()
		return persist.Status{PendingRevision: rev}
	}
	return s.status()
}

func scan(f models.Forest, query string, limit int) []index.SearchResult {
	terms := strings.Fields(index.Fold(query))
	var out []index.SearchResult
	var walk func(nodes []*models.Node, parent string)
	walk = func(nodes []*models.Node, parent string) {
		for _, n := range nodes {
			path := joinPath(parent, n.Name)
			hay := index.Fold(path + "\n" + n.Content)
			match := true
			for _, t := range terms {
				if !strings.Contains(hay, t) {
					match = false
					break
				}
			}
			if match {
				out = append(out, index.SearchResult{ID: n.ID, Kind: n.Kind, Name: n.Name, Path: path, Title: title(n)})
			}
			walk(n.Children, path)
		}
	}
	walk(f, "")
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func title(n *models.Node) string {
	if n.IsFile() {
		if t := parser.Parse(n.Content).Title; t != "" {
			return t
		}
	}
	return strings.TrimSuffix(n.Name, ".md")
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
