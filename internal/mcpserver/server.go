// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Mindweaver tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/treggify/mindweaver/internal/checksum"
	"github.com/treggify/mindweaver/internal/index"
	"github.com/treggify/mindweaver/internal/parser"
	"github.com/treggify/mindweaver/internal/storage"
	"github.com/treggify/mindweaver/internal/weave"
)

// Server wraps the MCP server with Mindweaver tools.
type Server struct {
	mcp    *server.MCPServer
	store  storage.Provider
	db     index.NoteIndex
	engine *weave.Engine
}

// New creates a new MCP server with all Mindweaver tools registered.
func New(store storage.Provider, db index.NoteIndex, engine *weave.Engine) *Server {
	s := &Server{store: store, db: db, engine: engine}

	s.mcp = server.NewMCPServer(
		"Mindweaver",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_connections",
		mcp.WithDescription("Discover related notes for a note and return a formatted links section. "+
			"Set apply to write the section into the note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithBoolean("apply", mcp.Description("Append the section to the note when connections are found")),
	), s.findConnections)

	s.mcp.AddTool(mcp.NewTool("weave_tags",
		mcp.WithDescription("Suggest tags for a note from the vault's existing tag vocabulary. "+
			"Only tags already in use (or configured) are ever suggested."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.weaveTags)

	s.mcp.AddTool(mcp.NewTool("reindex_concepts",
		mcp.WithDescription("Rebuild the cached one-line concept summaries for every note. "+
			"Summaries sharpen connection discovery; the run makes one model call per five notes."),
	), s.reindexConcepts)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a Markdown note from the vault."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note to delete")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename or move a Markdown note within the vault. "+
			"Wikilinks in other notes are not rewritten."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current relative path of the note")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New relative path (must end with .md)")),
	), s.renameNote)

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

func (s *Server) findConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	apply := false
	if b, bErr := req.RequireBool("apply"); bErr == nil {
		apply = b
	}

	section, err := s.engine.Connect(ctx, path, apply)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if section == "" {
		return mcp.NewToolResultText("no connections found"), nil
	}
	return mcp.NewToolResultText(section), nil
}

func (s *Server) weaveTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tags, err := s.engine.WeaveTagsForNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no new tags to add"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, ", ")), nil
}

func (s *Server) reindexConcepts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.ReindexConcepts(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("concept index rebuilt"), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, fErr := req.RequireString("folder"); fErr == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete %s: %v", path, err)), nil
	}
	if err := s.db.DeleteNote(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unindex %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", path)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Move(from, to); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("move %s to %s: %v", from, to, err)), nil
	}

	// Reindex under the new path so the cache keeps up with disk.
	if err := s.db.DeleteNote(from); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unindex %s: %v", from, err)), nil
	}
	data, err := s.store.Read(to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", to, err)), nil
	}
	res, err := parser.Parse(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse %s: %v", to, err)), nil
	}
	if err := s.db.UpsertNote(index.NoteRow{
		Path:      to,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: time.Now(),
	}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index %s: %v", to, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed %s to %s", from, to)), nil
}
