package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/nodeservice"
)

// CreateNodeRequest is the request body for adding a folder or file.
// An empty ParentID means the top level.
type CreateNodeRequest struct {
	ParentID string      `json:"parentId" example:"root"`
	Type     models.Kind `json:"type" example:"file"`
}

// Validate implements validation.Validatable.
func (r *CreateNodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.In(models.KindFolder, models.KindFile)),
	)
}

// RenameRequest is the request body for renaming a node. Any string is a
// valid name, including the empty one; only a missing field is rejected.
type RenameRequest struct {
	Name *string `json:"name" example:"notes.md"`
}

// Validate implements validation.Validatable.
func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NotNil),
	)
}

// MoveRequest is the request body for the drag-and-drop move.
type MoveRequest struct {
	TargetID string `json:"targetId" example:"1712345678901"`
}

// Validate implements validation.Validatable.
func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TargetID, validation.Required),
	)
}

// ContentRequest is the request body for replacing a file's content.
// Content may be empty but must be present.
type ContentRequest struct {
	Content *string `json:"content" example:"# Hello"`
}

// Validate implements validation.Validatable.
func (r *ContentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.NotNil),
	)
}

// SelectRequest is the request body for opening a file.
type SelectRequest struct {
	ID string `json:"id"`
}

// Validate implements validation.Validatable.
func (r *SelectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
	)
}

// NodeDetail is the full node response type (aliased from the domain layer).
type NodeDetail = nodeservice.NodeDetail

// TreeResponse is the forest snapshot response (aliased from the domain layer).
type TreeResponse = nodeservice.TreeView

// SelectionResponse reports the open file; Node is null when none is open.
type SelectionResponse struct {
	Node *models.Node `json:"node"`
}

// PreviewResponse carries rendered HTML for the preview pane.
type PreviewResponse struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}
