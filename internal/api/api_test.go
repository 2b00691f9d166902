package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/nodeservice"
	"github.com/starford/arbor/internal/testutil"
)

// testEnv builds a router over the sample forest. An empty token means
// auth is disabled.
func testEnv(t *testing.T, token string) (*editor.Editor, http.Handler) {
	t.Helper()
	return testEnvFull(t, RouterConfig{AuthEnabled: token != "", Token: token})
}

func testEnvFull(t *testing.T, cfg RouterConfig) (*editor.Editor, http.Handler) {
	t.Helper()
	ed := testutil.TestEditor(t, testutil.SampleForest())
	return ed, NewRouter(nodeservice.New(ed), cfg)
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "decode %s", w.Body.String())
	return v
}

func ptr(s string) *string { return &s }

func TestGetTree(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)

	tr := decode[TreeResponse](t, w)
	require.Len(t, tr.Forest, 2)
	assert.Equal(t, "docs", tr.Forest[0].Name)
	assert.Contains(t, w.Body.String(), `"type":"folder"`)
}

// The add/open/edit scenario end to end over HTTP.
func TestScenario_AddOpenEdit(t *testing.T) {
	ed, router := testEnvFull(t, RouterConfig{})
	require.NoError(t, ed.Replace(models.Forest{}))

	w := do(t, router, http.MethodPost, "/nodes", CreateNodeRequest{ParentID: "root", Type: models.KindFolder})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	folder := decode[models.Node](t, w)
	assert.Equal(t, "New Folder", folder.Name)
	assert.True(t, folder.IsFolder())

	w = do(t, router, http.MethodPost, "/nodes", CreateNodeRequest{ParentID: folder.ID, Type: models.KindFile})
	require.Equal(t, http.StatusCreated, w.Code)
	file := decode[models.Node](t, w)
	assert.Equal(t, "New File.md", file.Name)
	assert.Empty(t, file.Content)

	w = do(t, router, http.MethodPut, "/selection", SelectRequest{ID: file.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPut, "/nodes/"+file.ID+"/content", ContentRequest{Content: ptr("# Hi")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sel := decode[SelectionResponse](t, do(t, router, http.MethodGet, "/selection", nil))
	require.NotNil(t, sel.Node)
	assert.Equal(t, "# Hi", sel.Node.Content)

	d := decode[NodeDetail](t, do(t, router, http.MethodGet, "/nodes/"+file.ID, nil))
	assert.Equal(t, "# Hi", d.Node.Content)
	assert.Equal(t, "Hi", d.Title)
	assert.True(t, d.Selected)
}

func TestCreateNode_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/nodes", map[string]string{"parentId": "root", "type": "widget"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown type")

	req := httptest.NewRequest(http.MethodPost, "/nodes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad json")

	w = do(t, router, http.MethodPost, "/nodes", CreateNodeRequest{ParentID: "missing", Type: models.KindFile})
	assert.Equal(t, http.StatusNotFound, w.Code, "missing parent")

	w = do(t, router, http.MethodPost, "/nodes", CreateNodeRequest{ParentID: "5", Type: models.KindFile})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "file parent")
}

func TestRenameNode(t *testing.T) {
	ed, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/nodes/5", RenameRequest{Name: ptr("done.md")})
	require.Equal(t, http.StatusOK, w.Code)
	n, _ := ed.Lookup("5")
	assert.Equal(t, "done.md", n.Name)

	w = do(t, router, http.MethodPatch, "/nodes/nope", RenameRequest{Name: ptr("x")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPatch, "/nodes/5", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing name")
}

// Names are free-form: empty and long names are accepted as given.
func TestRenameNode_AnyName(t *testing.T) {
	ed, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/nodes/5", RenameRequest{Name: ptr("")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "", decode[models.Node](t, w).Name)
	n, _ := ed.Lookup("5")
	assert.Equal(t, "", n.Name)

	long := strings.Repeat("n", 300)
	w = do(t, router, http.MethodPatch, "/nodes/5", RenameRequest{Name: &long})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n, _ = ed.Lookup("5")
	assert.Equal(t, long, n.Name)
}

func TestDeleteNode(t *testing.T) {
	ed, router := testEnv(t, "")

	w := do(t, router, http.MethodDelete, "/nodes/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	for _, id := range []string{"1", "2", "3", "4"} {
		_, ok := ed.Lookup(id)
		assert.False(t, ok, "node %s survived subtree delete", id)
	}

	w = do(t, router, http.MethodDelete, "/nodes/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "second delete")
}

func TestDeleteClearsSelection(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/selection", SelectRequest{ID: "4"})
	do(t, router, http.MethodDelete, "/nodes/3", nil)

	sel := decode[SelectionResponse](t, do(t, router, http.MethodGet, "/selection", nil))
	assert.Nil(t, sel.Node)
}

func TestMoveNode(t *testing.T) {
	ed, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/nodes/5/move", MoveRequest{TargetID: "3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	drafts, _ := ed.Lookup("3")
	require.Len(t, drafts.Children, 2)
	assert.Equal(t, "5", drafts.Children[1].ID)

	before := ed.Revision()
	w = do(t, router, http.MethodPost, "/nodes/1/move", MoveRequest{TargetID: "3"})
	assert.Equal(t, http.StatusConflict, w.Code, "move into own subtree")
	assert.Equal(t, before, ed.Revision(), "rejected move must not commit")

	w = do(t, router, http.MethodPost, "/nodes/1/move", MoveRequest{TargetID: "2"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "move under file")

	w = do(t, router, http.MethodPost, "/nodes/1/move", MoveRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing target")
}

func TestUpdateContent(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/nodes/5/content", ContentRequest{Content: ptr("")})
	assert.Equal(t, http.StatusOK, w.Code, "empty content")
	w = do(t, router, http.MethodPut, "/nodes/5/content", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing content")
	w = do(t, router, http.MethodPut, "/nodes/1/content", ContentRequest{Content: ptr("")})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "folder content")
}

func TestPreview(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/nodes/2/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[PreviewResponse](t, w).HTML, "Readme")
}

func TestOpenFile_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusUnprocessableEntity,
		do(t, router, http.MethodPut, "/selection", SelectRequest{ID: "1"}).Code, "open folder")
	assert.Equal(t, http.StatusNotFound,
		do(t, router, http.MethodPut, "/selection", SelectRequest{ID: "nope"}).Code, "open missing")
	assert.Equal(t, http.StatusNoContent,
		do(t, router, http.MethodDelete, "/selection", nil).Code, "close")
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search?q=unfinished", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"4"`)

	w = do(t, router, http.MethodGet, "/search?q=zzzz", nil)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/search", nil).Code)
}

func TestTaggedEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/tags/handbook", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"path":"docs/readme.md"`)

	w = do(t, router, http.MethodGet, "/tags/none", nil)
	assert.Contains(t, w.Body.String(), `"nodes":[]`)
}

func TestStatusEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "saved_revision")
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/tree", nil, "Authorization", "Bearer secret123")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/tree", nil).Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/tree", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, router := testEnvFull(t, RouterConfig{AuthEnabled: true, Token: "tok", Events: events})

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/events", nil).Code)
	assert.Equal(t, http.StatusOK,
		do(t, router, http.MethodGet, "/events", nil, "Authorization", "Bearer tok").Code)
}

func TestCORS_Preflight(t *testing.T) {
	_, router := testEnvFull(t, RouterConfig{
		AuthEnabled: true,
		Token:       "tok",
		CORSOrigins: []string{"http://localhost:5173"},
	})
	w := do(t, router, http.MethodOptions, "/nodes", nil,
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", http.MethodPost)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, w.Code, "preflight must not require auth")

	w = do(t, router, http.MethodGet, "/tree", nil, "Origin", "http://evil.example", "Authorization", "Bearer tok")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "unknown origin allowed")
}
