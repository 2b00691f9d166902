// Package editor composes the forest, the selection and id generation into
// the command surface used by the HTTP API, the MCP server and the CLI.
package editor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/identity"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/tree"
)

// ChangeKind names what a committed change did.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeRenamed   ChangeKind = "renamed"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeMoved     ChangeKind = "moved"
	ChangeUpdated   ChangeKind = "updated"
	ChangeReplaced  ChangeKind = "replaced"
	ChangeSelection ChangeKind = "selection"
)

// Change describes one committed state transition. Forest and Revision are
// the state after the change; a ChangeSelection keeps the revision as is.
type Change struct {
	Kind             ChangeKind
	NodeID           string
	Revision         uint64
	Forest           models.Forest
	Selected         *models.Node
	SelectionChanged bool
}

// Observer receives every committed change in commit order. It runs while
// the editor is locked, so it must not block or call back into the editor.
type Observer func(Change)

// Option configures an Editor.
type Option func(*Editor)

// WithForest seeds the editor with a rehydrated forest.
func WithForest(f models.Forest) Option {
	return func(e *Editor) {
		e.forest = f
	}
}

// WithGenerator sets the id generator. Defaults to identity.NewClock.
func WithGenerator(g identity.Generator) Option {
	return func(e *Editor) {
		e.ids = g
	}
}

// WithObserver registers an observer.
func WithObserver(fn Observer) Option {
	return func(e *Editor) {
		e.observers = append(e.observers, fn)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// Editor owns the canonical forest. Mutations are serialized; each one
// derives a new forest, swaps it in, reconciles the selection and notifies
// observers before the next mutation starts.
type Editor struct {
	mu        sync.Mutex
	forest    models.Forest
	selection Selection
	revision  uint64
	ids       identity.Generator
	observers []Observer
	logger    *slog.Logger
}

// New builds an editor. A seeded forest must satisfy tree.Validate.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.forest == nil {
		e.forest = models.Forest{}
	}
	if e.ids == nil {
		e.ids = identity.NewClock()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if err := tree.Validate(e.forest); err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}
	e.observe(e.forest)
	return e, nil
}

// Forest returns the current forest. The value is an immutable snapshot.
func (e *Editor) Forest() models.Forest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forest
}

// Snapshot returns the current forest together with its revision.
func (e *Editor) Snapshot() (models.Forest, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forest, e.revision
}

// Revision counts committed forest mutations since start.
func (e *Editor) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// Lookup finds a node in the current forest.
func (e *Editor) Lookup(id string) (*models.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tree.Lookup(e.forest, id)
}

// Selected returns the open file, if any.
func (e *Editor) Selected() (*models.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection.Node()
}

// NewNode describes a node added in a single commit. A nil Name means the
// default name for Kind. Content is only allowed on files.
type NewNode struct {
	Kind    models.Kind
	Name    *string
	Content string
}

// AddFolder creates an empty folder under parentID (tree.RootID for the top level).
func (e *Editor) AddFolder(parentID string) (*models.Node, error) {
	return e.Add(parentID, NewNode{Kind: models.KindFolder})
}

// AddFile creates an empty markdown file under parentID.
func (e *Editor) AddFile(parentID string) (*models.Node, error) {
	return e.Add(parentID, NewNode{Kind: models.KindFile})
}

// Add creates the node described by spec under parentID as one revision.
func (e *Editor) Add(parentID string, spec NewNode) (*models.Node, error) {
	var build func(id string) *models.Node
	switch spec.Kind {
	case models.KindFolder:
		if spec.Content != "" {
			return nil, fmt.Errorf("editor: add folder with content: %w", apperr.ErrNotFile)
		}
		name := models.DefaultFolderName
		if spec.Name != nil {
			name = *spec.Name
		}
		build = func(id string) *models.Node { return models.NewFolder(id, name) }
	case models.KindFile:
		name := models.DefaultFileName
		if spec.Name != nil {
			name = *spec.Name
		}
		build = func(id string) *models.Node { return models.NewFile(id, name, spec.Content) }
	default:
		return nil, fmt.Errorf("editor: add: unknown type %q: %w", spec.Kind, apperr.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := build(e.freshID())
	next, err := tree.Insert(e.forest, parentID, n)
	if err != nil {
		return nil, err
	}
	e.commit(next, ChangeCreated, n.ID)
	return n, nil
}

// Rename sets the display name of node id.
func (e *Editor) Rename(id, name string) (*models.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := tree.Rename(e.forest, id, name)
	if err != nil {
		return nil, err
	}
	e.commit(next, ChangeRenamed, id)
	n, _ := tree.Lookup(next, id)
	return n, nil
}

// Delete removes node id and its subtree. A selection inside the removed
// subtree is cleared in the same step.
func (e *Editor) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := tree.Delete(e.forest, id)
	if err != nil {
		return err
	}
	e.commit(next, ChangeDeleted, id)
	return nil
}

// Move reparents node id under targetID. It is the drag-and-drop entry point.
func (e *Editor) Move(id, targetID string) (*models.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := tree.Move(e.forest, id, targetID)
	if err != nil {
		return nil, err
	}
	e.commit(next, ChangeMoved, id)
	n, _ := tree.Lookup(next, id)
	return n, nil
}

// UpdateContent replaces the markdown source of file id.
func (e *Editor) UpdateContent(id, content string) (*models.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := tree.UpdateContent(e.forest, id, content)
	if err != nil {
		return nil, err
	}
	e.commit(next, ChangeUpdated, id)
	n, _ := tree.Lookup(next, id)
	return n, nil
}

// OpenFile selects file id. Unknown ids and folders leave the selection as is.
func (e *Editor) OpenFile(id string) (*models.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := tree.Lookup(e.forest, id)
	if !ok {
		return nil, fmt.Errorf("editor: open %s: %w", id, apperr.ErrNotFound)
	}
	if !n.IsFile() {
		return nil, fmt.Errorf("editor: open %s: %w", id, apperr.ErrNotFile)
	}
	if e.selection.set(n) {
		e.notify(Change{Kind: ChangeSelection, NodeID: id, SelectionChanged: true})
	}
	return n, nil
}

// CloseFile clears the selection.
func (e *Editor) CloseFile() {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.selection.ID()
	if e.selection.set(nil) {
		e.notify(Change{Kind: ChangeSelection, NodeID: prev, SelectionChanged: true})
	}
}

// Replace swaps in a forest loaded from outside, e.g. after the persisted
// copy was edited by another process.
func (e *Editor) Replace(f models.Forest) error {
	if f == nil {
		f = models.Forest{}
	}
	if err := tree.Validate(f); err != nil {
		return fmt.Errorf("editor: replace: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.observe(f)
	e.commit(f, ChangeReplaced, "")
	return nil
}

// freshID asks the generator until it yields an id unused in the forest.
func (e *Editor) freshID() string {
	for {
		id := e.ids.NewID()
		if id == tree.RootID {
			continue
		}
		if _, taken := tree.Lookup(e.forest, id); !taken {
			return id
		}
	}
}

func (e *Editor) observe(f models.Forest) {
	if o, ok := e.ids.(identity.Observer); ok {
		o.Observe(tree.IDs(f)...)
	}
}

func (e *Editor) commit(next models.Forest, kind ChangeKind, id string) {
	e.forest = next
	e.revision++
	selChanged := e.selection.reconcile(next)

	e.logger.Debug("tree committed",
		slog.String("kind", string(kind)),
		slog.String("node_id", id),
		slog.Uint64("revision", e.revision))

	e.notify(Change{
		Kind:             kind,
		NodeID:           id,
		SelectionChanged: selChanged,
	})
}

// notify fills in the current state and hands the change to every observer.
func (e *Editor) notify(c Change) {
	c.Revision = e.revision
	c.Forest = e.forest
	c.Selected, _ = e.selection.Node()
	for _, fn := range e.observers {
		fn(c)
	}
}
