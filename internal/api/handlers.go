package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/nodeservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *nodeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *nodeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetTree handles GET /api/tree.
//
//	@Summary	Get the whole forest with its revision
//	@Tags		tree
//	@Produce	json
//	@Success	200	{object}	TreeResponse
//	@Router		/tree [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Tree(r.Context()))
}

// GetNode handles GET /api/nodes/{id}.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateNode handles POST /api/nodes.
//
//	@Summary	Add a folder or file with the default name
//	@Tags		nodes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateNodeRequest	true	"Parent and type"
//	@Success	201		{object}	models.Node
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/nodes [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.Create(r.Context(), req.ParentID, req.Type)
	if err != nil {
		writeError(w, "create node", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// RenameNode handles PATCH /api/nodes/{id}.
func (h *Handler) RenameNode(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.Rename(r.Context(), chi.URLParam(r, "id"), *req.Name)
	if err != nil {
		writeError(w, "rename node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNode handles DELETE /api/nodes/{id}.
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNode handles POST /api/nodes/{id}/move, the drag-and-drop entry point.
//
//	@Summary	Move a node under another folder or to the top level ("root")
//	@Tags		nodes
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string		true	"Node id"
//	@Param		body	body		MoveRequest	true	"Target folder"
//	@Success	200		{object}	models.Node
//	@Failure	404		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/nodes/{id}/move [post]
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.Move(r.Context(), chi.URLParam(r, "id"), req.TargetID)
	if err != nil {
		writeError(w, "move node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateContent handles PUT /api/nodes/{id}/content.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.UpdateContent(r.Context(), chi.URLParam(r, "id"), *req.Content)
	if err != nil {
		writeError(w, "update content", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Preview handles GET /api/nodes/{id}/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	html, err := h.svc.Preview(r.Context(), id)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{ID: id, HTML: html})
}

// GetSelection handles GET /api/selection.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	n, _ := h.svc.Selection(r.Context())
	writeJSON(w, http.StatusOK, SelectionResponse{Node: n})
}

// OpenFile handles PUT /api/selection.
func (h *Handler) OpenFile(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.Open(r.Context(), req.ID)
	if err != nil {
		writeError(w, "open file", err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{Node: n})
}

// CloseFile handles DELETE /api/selection.
func (h *Handler) CloseFile(w http.ResponseWriter, r *http.Request) {
	h.svc.Close(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary	Search node names, paths and content
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	map[string]any
//	@Failure	400		{object}	errResponse
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": nonNil(results),
	})
}

// Tagged handles GET /api/tags/{tag}.
func (h *Handler) Tagged(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Tagged(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, "tagged", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nonNil(rows),
	})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
