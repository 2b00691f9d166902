// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Arbor forest to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/nodeservice"
)

const (
	treeURI       = "arbor://tree"
	treeFormatURI = "arbor://tree-format"
)

// Server wraps the MCP server with Arbor tools.
type Server struct {
	mcp *server.MCPServer
	svc *nodeservice.Service
}

// New creates a new MCP server with all Arbor tools registered.
func New(svc *nodeservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Arbor",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Return the whole document forest with its revision. "+
			"Read the tree format via get_tree_contract or the arbor://tree-format resource."),
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a node by id: its path, title, tags and, for files, the Markdown content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("add_folder",
		mcp.WithDescription("Add an empty folder under a parent folder (\"root\" or empty for the top level)."),
		mcp.WithString("parent_id", mcp.Description("Parent folder id")),
		mcp.WithString("name", mcp.Description("Optional name; defaults to \"New Folder\"")),
	), s.addFolder)

	s.mcp.AddTool(mcp.NewTool("add_file",
		mcp.WithDescription("Add a Markdown file under a parent folder (\"root\" or empty for the top level)."),
		mcp.WithString("parent_id", mcp.Description("Parent folder id")),
		mcp.WithString("name", mcp.Description("Optional name; defaults to \"New File.md\"")),
		mcp.WithString("content", mcp.Description("Optional initial Markdown content")),
	), s.addFile)

	s.mcp.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Rename a folder or file. The id does not change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
	), s.renameNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node. Deleting a folder deletes its whole subtree."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node under another folder, appended after its children. "+
			"Moving a node into itself or its own subtree is rejected."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target folder id, or \"root\" for the top level")),
	), s.moveNode)

	s.mcp.AddTool(mcp.NewTool("update_content",
		mcp.WithDescription("Replace the Markdown content of a file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateContent)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Search node names, paths and file content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("get_tree_contract",
		mcp.WithDescription("Returns the Arbor tree layout and Markdown conventions."),
	), s.getTreeContract)

	s.mcp.AddResource(
		mcp.NewResource(treeURI, "Document Tree",
			mcp.WithResourceDescription("The current forest in its persisted JSON layout."),
			mcp.WithMIMEType("application/json"),
		),
		s.readTreeResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(treeFormatURI, "Tree Format Contract",
			mcp.WithResourceDescription("Layout of the forest and Markdown conventions for files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTreeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Tree(ctx))
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetNode(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) addFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.add(ctx, req, models.KindFolder)
}

func (s *Server) addFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.add(ctx, req, models.KindFile)
}

// add creates the node with the optional name and content in one revision.
func (s *Server) add(ctx context.Context, req mcp.CallToolRequest, kind models.Kind) (*mcp.CallToolResult, error) {
	spec := editor.NewNode{Kind: kind}
	if name := req.GetString("name", ""); name != "" {
		spec.Name = &name
	}
	if kind == models.KindFile {
		spec.Content = req.GetString("content", "")
	}
	n, err := s.svc.CreateNode(ctx, req.GetString("parent_id", ""), spec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) renameNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Rename(ctx, id, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) moveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Move(ctx, id, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) updateContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.UpdateContent(ctx, id, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results)
}

func (s *Server) getTreeContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TreeFormatContract), nil
}

func (s *Server) readTreeResource(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.svc.Tree(ctx).Forest)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode tree: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      treeURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readTreeFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      treeFormatURI,
			MIMEType: "text/markdown",
			Text:     TreeFormatContract,
		},
	}, nil
}
